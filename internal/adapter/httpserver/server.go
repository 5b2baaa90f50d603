package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/hashpulse/internal/adapter/metrics"
	"github.com/pscheid92/hashpulse/internal/app"
	"github.com/pscheid92/hashpulse/internal/platform/config"
)

type appService interface {
	Run(ctx context.Context, req app.RunRequest) (app.RunResult, error)
	TaskTypes() []string
	ReadBlob(ctx context.Context, uri string) ([]byte, error)
	GetKV(ctx context.Context, namespace, key string) (string, error)
	PutKV(ctx context.Context, namespace, key, value string) error
	DeleteKV(ctx context.Context, namespace, key string) error
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app          appService
	registry     *prometheus.Registry
	httpMetrics  *metrics.HTTPMetrics
	healthChecks []HealthCheck
	clock        clockwork.Clock
	startTime    time.Time
}

// NewServer registers the HTTP metrics on reg and wires every route.
func NewServer(cfg *config.Config, app appService, reg *prometheus.Registry, clock clockwork.Clock, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		app:          app,
		registry:     reg,
		httpMetrics:  metrics.NewHTTPMetrics(reg),
		healthChecks: healthChecks,
		clock:        clock,
		startTime:    clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
