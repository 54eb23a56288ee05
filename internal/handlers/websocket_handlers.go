package handlers

import (
	"net/http"

	"taskflow/internal/auth"
	"taskflow/internal/config"
	"taskflow/internal/metrics"
	ws "taskflow/internal/websocket"
	"taskflow/pkg/logger"

	"github.com/gorilla/websocket"
)

type WebSocketHandlers struct {
	authService *auth.Service
	hub         *ws.Hub
	router      *ws.Router
	cfg         config.WebSocketConfig
	upgrader    websocket.Upgrader
}

func NewWebSocketHandlers(authService *auth.Service, hub *ws.Hub, router *ws.Router, cfg config.WebSocketConfig, frontendURL string) *WebSocketHandlers {
	return &WebSocketHandlers{
		authService: authService,
		hub:         hub,
		router:      router,
		cfg:         cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == frontendURL
			},
		},
	}
}

// HandleWebSocket authenticates the handshake before upgrading. A rejected
// handshake never reaches the hub and gets a 401 carrying the reason.
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.AuthenticateHandshake(r)
	if err != nil {
		code := auth.Code(err)
		metrics.WSAuthRejections.WithLabelValues(code).Inc()
		logger.Debug("Websocket handshake rejected from %s: %v", r.RemoteAddr, err)
		writeError(w, http.StatusUnauthorized, code, auth.Reason(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn, user, h.cfg)
	h.hub.Connect(client)

	go client.WritePump()
	go client.ReadPump(h.router)
}
