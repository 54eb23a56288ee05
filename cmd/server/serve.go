package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"taskflow/internal/auth"
	"taskflow/internal/config"
	"taskflow/internal/database"
	"taskflow/internal/handlers"
	"taskflow/internal/presence"
	"taskflow/internal/ratelimit"
	"taskflow/internal/services"
	"taskflow/internal/websocket"
	"taskflow/pkg/logger"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and websocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		migrate, _ := cmd.Flags().GetBool("migrate")
		return serve(cmd.Context(), cfg, migrate)
	},
}

func init() {
	serveCmd.Flags().Bool("migrate", false, "apply pending migrations before serving")
}

func serve(parent context.Context, cfg *config.Config, migrate bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.NewPostgresDB(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	if migrate {
		applied, err := db.ApplyMigrations(ctx)
		if err != nil {
			return err
		}
		logger.Info("Applied %d migrations", len(applied))
	}

	limiter, closeLimiter, err := newLimiter(cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	// Initialize services
	authService := auth.NewService(db, cfg.JWT)
	hub := websocket.NewHub(presence.NewRegistry(), db)
	access := services.NewAccessService(db)
	tasks := services.NewTaskService(db, access, hub)
	notifications := services.NewNotificationService(db, hub)
	messages := services.NewMessageService(db, access, notifications, hub)
	router := websocket.NewRouter(hub, websocket.NewCoordinator(hub, access), tasks, messages, notifications)

	routes := &handlers.Routes{
		AuthService:    authService,
		Limiter:        limiter,
		TrustedProxies: cfg.RateLimit.TrustedProxies,
		Auth:           handlers.NewAuthHandlers(authService),
		WebSocket:      handlers.NewWebSocketHandlers(authService, hub, router, cfg.WebSocket, cfg.Server.FrontendURL),
		Tasks:          handlers.NewTaskHandlers(tasks),
		Messages:       handlers.NewMessageHandlers(messages),
		Notifications:  handlers.NewNotificationHandlers(notifications),
		Health:         handlers.NewHealthHandlers(db, hub),
		FrontendURL:    cfg.Server.FrontendURL,
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      routes.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	logger.Info("Server started on http://localhost%s", cfg.Server.Port)
	logger.Info("WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)
	logger.Info("API endpoints:")
	for _, endpoint := range routes.Endpoints() {
		logger.Info("   %s", endpoint)
	}

	select {
	case err := <-serverErr:
		stop()
		<-hubDone
		return err
	case <-ctx.Done():
	}

	logger.Info("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown: %v", err)
	}
	<-hubDone
	logger.Info("Server stopped")
	return nil
}

// newLimiter uses Redis when REDIS_URL is set, otherwise an in-process
// limiter.
func newLimiter(cfg *config.Config) (ratelimit.Limiter, func(), error) {
	if cfg.Redis.URL == "" {
		return ratelimit.NewMemoryLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window), func() {}, nil
	}

	limiter, err := ratelimit.NewRedisLimiter(cfg.Redis.URL, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Rate limiting backed by Redis")
	return limiter, func() { limiter.Close() }, nil
}
