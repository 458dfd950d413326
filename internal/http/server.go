// Package http serves the scancap capture API.
//
// A daemon hosts one capture session at a time. Clients drive the session
// through acknowledgements and upload each finished recording, which is
// probed and handed to the orchestrator as the outcome of the armed
// attempt.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/fyrsmithlabs/scancap/internal/logging"
	"github.com/fyrsmithlabs/scancap/internal/telemetry"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds HTTP server configuration.
type Config struct {
	Host           string
	Port           int
	MaxUploadBytes int64
	UploadRate     float64 // uploads per second
	UploadBurst    int
}

// DefaultConfig returns local defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:           "localhost",
		Port:           9190,
		MaxUploadBytes: 512 << 20,
		UploadRate:     1,
		UploadBurst:    3,
	}
}

// Server provides the capture HTTP API.
type Server struct {
	echo     *echo.Echo
	sessions *Sessions
	prober   capture.MetadataProber
	logger   *logging.Logger
	config   *Config
	limiter  *rate.Limiter

	metrics        *HTTPMetrics
	metricsHandler http.Handler
	telemetry      func() telemetry.HealthStatus
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// WithHTTPMetrics records OTEL request metrics.
func WithHTTPMetrics(m *HTTPMetrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithTelemetryHealth includes exporter health in GET /health.
func WithTelemetryHealth(fn func() telemetry.HealthStatus) Option {
	return func(s *Server) {
		s.telemetry = fn
	}
}

// NewServer creates the server. prober reads metadata from uploads.
func NewServer(sessions *Sessions, prober capture.MetadataProber, cfg *Config, opts ...Option) (*Server, error) {
	if sessions == nil {
		return nil, errors.New("sessions cannot be nil")
	}
	if prober == nil {
		return nil, errors.New("prober cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}
	if cfg.UploadRate <= 0 || cfg.UploadBurst < 1 {
		return nil, fmt.Errorf("upload rate and burst must be positive")
	}

	s := &Server{
		sessions: sessions,
		prober:   prober,
		logger:   logging.NewNop(),
		config:   cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.UploadRate), cfg.UploadBurst),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if s.metrics != nil {
		e.Use(s.metrics.MetricsMiddleware())
	}
	e.Use(s.requestLogger())

	s.echo = e
	s.registerRoutes()
	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	if s.metricsHandler != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metricsHandler))
	}

	session := s.echo.Group("/api/v1/session")
	session.POST("", s.handleStart)
	session.GET("", s.handleSnapshot)
	session.DELETE("", s.handleAbandon)
	session.POST("/tutorial/ack", s.handleTutorialAck)
	session.POST("/retry/ack", s.handleRetryAck)
	session.POST("/assembly/retry", s.handleAssemblyRetry)
	session.POST("/recording/cancel", s.handleCancelRecording)
	session.PUT("/segments/:angle", s.handleUpload, bodyLimit(s.config.MaxUploadBytes))
	session.GET("/artifact", s.handleArtifact)
	session.POST("/deliver", s.handleDeliver)
}

// Echo returns the underlying router.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests, then closes the active session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	err := s.echo.Shutdown(ctx)
	return errors.Join(err, s.sessions.Close())
}
