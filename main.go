package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wozniakbe/ecolife-prefs/i18n"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	if cfg.DevBypassAuth {
		logger.Warn("authentication bypass enabled, do not use in production")
	}

	backends, err := NewBackendFactory(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create preference backend", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}

	var bundle *i18n.Bundle
	if cfg.I18nDir != "" {
		bundle = i18n.NewBundle(os.DirFS(cfg.I18nDir), logger)
	}

	profiles := NewProfileSet(backends.Open, cfg, bundle, logger)
	handler := NewPreferencesHandler(profiles, logger)
	router := NewRouter(handler, cfg, logger)

	// Event streams only end when their client disconnects or this context
	// is cancelled at shutdown.
	baseCtx, stopStreams := context.WithCancel(context.Background())
	defer stopStreams()

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(stopStreams)

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.ServerPort, "backend", cfg.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	profiles.Close()
	if err := backends.Close(); err != nil {
		logger.Error("closing backend failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
