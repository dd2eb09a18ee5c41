// Package server provides the HTTP API for agentd.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/agentforge/agentd/internal/agent"
)

// Server exposes the agent pipeline over HTTP.
type Server struct {
	echo    *echo.Echo
	service *agent.Service
	logger  *zap.Logger
	config  *Config
	metrics *httpMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// MaxUploadBytes caps document upload size.
	MaxUploadBytes int64

	// AllowedExtensions narrows the upload allow-list. Empty means every
	// extractable type.
	AllowedExtensions []string
}

// NewServer creates a new HTTP server.
func NewServer(service *agent.Service, logger *zap.Logger, cfg *Config) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Port: 8000}
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 10 << 20
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	m := newHTTPMetrics()

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			m.observe(c, duration)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		service: service,
		logger:  logger,
		config:  cfg,
		metrics: m,
	}
	s.registerRoutes()
	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")
	api.POST("/agents", s.handleCreateAgent)
	api.GET("/agents", s.handleListAgents)
	api.GET("/agents/:id", s.handleGetAgent)
	api.PUT("/agents/:id", s.handleUpdateAgent)
	api.DELETE("/agents/:id", s.handleDeleteAgent)

	api.POST("/agents/:id/chat", s.handleChat)
	api.POST("/agents/:id/documents", s.handleUploadDocument)
	api.GET("/agents/:id/documents", s.handleListDocuments)
	api.DELETE("/agents/:id/documents", s.handleDeleteDocuments)

	api.GET("/agents/:id/conversations", s.handleListConversations)
	api.GET("/conversations/:conversation_id/messages", s.handleConversationMessages)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
