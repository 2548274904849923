// chatd - conversation session manager and completion proxy
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatd/internal/config"
	"chatd/internal/orchestrator"
	"chatd/internal/provider"
	"chatd/internal/server"
	"chatd/internal/session"
	"chatd/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load(os.Getenv("CHATD_CONFIG_PATH"))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("Starting chatd", "addr", cfg.Server.Addr, "model", cfg.Provider.Model)

	store, err := storage.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "error", err, "path", cfg.Storage.DBPath)
		os.Exit(1)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	migrated, err := storage.MigrateFromJSON(cfg.Storage.LegacyPath, store)
	if err != nil {
		slog.Warn("Legacy session import failed", "error", err, "path", cfg.Storage.LegacyPath)
	} else if migrated {
		slog.Info("Imported legacy sessions", "path", cfg.Storage.LegacyPath)
	}

	sessions := session.NewStore(store)
	sessions.Load()
	slog.Info("Conversations loaded", "count", sessions.Len(), "active", sessions.ActiveID())

	gateway := provider.New(cfg.Provider)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	models := session.ResolveModels(startupCtx, gateway, cfg.Provider.Models)
	cancelStartup()
	slog.Info("Model catalog resolved", "count", len(models))

	orch := orchestrator.New(sessions, gateway)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.New(gateway, sessions, orch).Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped")
}
