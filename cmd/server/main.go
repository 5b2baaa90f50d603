package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/hashpulse/internal/adapter/httpserver"
	"github.com/pscheid92/hashpulse/internal/app"
	"github.com/pscheid92/hashpulse/internal/platform/config"
	"github.com/pscheid92/hashpulse/internal/platform/logging"
	"github.com/pscheid92/hashpulse/internal/platform/version"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func runGracefulShutdown(srv *httpserver.Server, rt *app.Runtime) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		rt.Close()
		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().Version)

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	rt, err := app.Bootstrap(ctx, cfg, clock)
	cancel()
	if err != nil {
		slog.Error("Failed to bootstrap runtime", "error", err)
		os.Exit(1)
	}

	healthChecks := []httpserver.HealthCheck{
		{Name: "kv", Check: rt.Service.Ping},
	}
	srv := httpserver.NewServer(cfg, rt.Service, rt.Registry, clock, healthChecks)

	done := runGracefulShutdown(srv, rt)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		rt.Close()
		os.Exit(1)
	}

	<-done
}
