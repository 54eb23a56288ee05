package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"taskflow/internal/config"
	"taskflow/internal/database"
	"taskflow/pkg/logger"

	"github.com/spf13/cobra"
)

// Version is set via ldflags during build.
var Version = "dev"

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "taskflow",
	Short:   "Taskflow realtime collaboration server",
	Version: Version,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		db, err := database.NewPostgresDB(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()

		applied, err := db.ApplyMigrations(ctx)
		for _, version := range applied {
			logger.Info("Applied migration %s", version)
		}
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			logger.Info("Database is up to date")
		}
		return nil
	},
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(logger.Config{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	return cfg, nil
}
