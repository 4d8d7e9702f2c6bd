// Package http provides the admin API server for the event delivery pipeline.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/ederbit/fanout/internal/config"
	"github.com/ederbit/fanout/internal/metrics"
	outboxHTTP "github.com/ederbit/fanout/internal/outbox/http"
	webhookHTTP "github.com/ederbit/fanout/internal/webhook/http"
)

// Handlers groups the route handlers mounted by the server.
type Handlers struct {
	Event      *outboxHTTP.EventHandler
	DeadLetter *outboxHTTP.DeadLetterHandler
	Webhook    *webhookHTTP.WebhookHandler
}

// Server represents the admin API HTTP server.
type Server struct {
	config        *config.Config
	db            *sql.DB
	router        *gin.Engine
	server        *http.Server
	handlers      Handlers
	meterProvider metric.MeterProvider
	logger        *slog.Logger
}

// NewServer creates a new HTTP server. The meter provider may be nil when
// metrics are disabled.
func NewServer(
	cfg *config.Config,
	db *sql.DB,
	handlers Handlers,
	meterProvider metric.MeterProvider,
	logger *slog.Logger,
) *Server {
	s := &Server{
		config:        cfg,
		db:            db,
		handlers:      handlers,
		meterProvider: meterProvider,
		logger:        logger,
	}
	s.router = s.setupRouter()
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupRouter builds the gin router with middleware and all routes.
func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(
		s.config.CORSEnabled,
		s.config.CORSAllowOrigins,
		s.logger,
	); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if s.config.MetricsEnabled && s.meterProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(s.meterProvider, s.config.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")
	v1.Use(APIKeyAuthMiddleware(s.config.AdminAPIKeyHash, s.logger))

	// Ingestion is the only caller-facing hot path; it alone is rate limited.
	ingest := v1.Group("/events")
	if s.config.RateLimitEnabled {
		ingest.Use(RateLimitMiddleware(
			s.config.RateLimitRequestsPerSec,
			s.config.RateLimitBurst,
			s.logger,
		))
	}
	ingest.POST("", s.handlers.Event.IngestHandler)
	ingest.POST("/batch", s.handlers.Event.IngestBatchHandler)

	v1.GET("/outbox/stats", s.handlers.Event.StatsHandler)
	v1.GET("/sync-status", s.handlers.Event.SyncStatusHandler)

	v1.GET("/dead-letters", s.handlers.DeadLetter.ListHandler)
	v1.POST("/dead-letters/:id/resolve", s.handlers.DeadLetter.ResolveHandler)
	v1.POST("/dead-letters/:id/retry", s.handlers.DeadLetter.RetryHandler)

	v1.POST("/webhooks", s.handlers.Webhook.CreateHandler)
	v1.GET("/webhooks", s.handlers.Webhook.ListHandler)
	v1.GET("/webhooks/:id", s.handlers.Webhook.GetHandler)
	v1.PUT("/webhooks/:id", s.handlers.Webhook.UpdateHandler)
	v1.DELETE("/webhooks/:id", s.handlers.Webhook.DeleteHandler)
	v1.POST("/webhooks/:id/regenerate-secret", s.handlers.Webhook.RegenerateSecretHandler)
	v1.GET("/webhooks/:id/deliveries", s.handlers.Webhook.ListDeliveriesHandler)
	v1.POST("/webhooks/:id/test", s.handlers.Webhook.TestHandler)

	return router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// healthHandler reports process liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports readiness, including database connectivity.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{"database": "ok"}
	status := "ready"
	code := http.StatusOK

	if s.db == nil {
		components["database"] = "error"
		status = "not_ready"
		code = http.StatusServiceUnavailable
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			components["database"] = "error"
			status = "not_ready"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, gin.H{"status": status, "components": components})
}
