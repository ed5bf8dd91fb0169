package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/open-tech-stack/mitic-web-sub002/internal/app"
	"github.com/open-tech-stack/mitic-web-sub002/internal/config"
	"github.com/open-tech-stack/mitic-web-sub002/internal/logging"
	"github.com/open-tech-stack/mitic-web-sub002/internal/transport/web"
)

// main is the application entry point / Point d'entrée de l'application
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run initializes and starts the HTTP server / Initialise et démarre le serveur HTTP
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger, closeLogs := logging.New(cfg.Logging, cfg.IsProduction(), os.Stdout)
	slog.SetDefault(logger)
	defer closeLogs()

	logStartupInfo(cfg)

	container, err := app.NewContainer(cfg)
	if err != nil {
		return err
	}
	defer container.Close()
	container.Start()

	handler, stopLimiters := web.NewMux(web.NewHandler(container), cfg, container)
	defer stopLimiters()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr, "version", web.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("shutting down server gracefully")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("server stopped")
	return nil
}

// logStartupInfo displays startup information / Affiche les informations de démarrage
func logStartupInfo(conf *config.Config) {
	slog.Info("starting gestion-peages",
		"environment", conf.Environment,
		"port", conf.Server.Port,
		"database", conf.Database.Type,
	)

	if conf.RateLimiter.Enabled {
		slog.Info("rate limiter enabled", "rps", conf.RateLimiter.RPS, "burst", conf.RateLimiter.Burst)
	} else {
		slog.Warn("rate limiter is disabled")
	}

	slog.Info("token durations",
		"access_token", conf.Auth.AccessTokenDuration,
		"refresh_token", conf.Auth.RefreshTokenDuration,
	)
	slog.Info("background jobs", "enabled", conf.Jobs.Enabled, "redis", conf.Redis.Enabled, "websocket", conf.Websocket.Enabled)
}
