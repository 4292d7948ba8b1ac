// Package server provides the HTTP API for docrag.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/pipeline"
)

// Answerer is the query pipeline surface the server depends on.
type Answerer interface {
	Ask(ctx context.Context, question string) (*pipeline.Answer, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server provides HTTP endpoints for docrag.
type Server struct {
	echo     *echo.Echo
	answerer Answerer
	metrics  *Metrics
	logger   *zap.Logger
	config   *Config
}

// NewServer creates a new HTTP server.
func NewServer(answerer Answerer, logger *zap.Logger, cfg *Config) (*Server, error) {
	if answerer == nil {
		return nil, fmt.Errorf("answerer cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8000,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	metrics := NewMetrics(logger)

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(metrics.Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

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
		echo:     e,
		answerer: answerer,
		metrics:  metrics,
		logger:   logger,
		config:   cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/chat", s.handleChat)
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", s.metrics.Handler())

	s.echo.POST("/ask", s.handleAsk)
}

// AskRequest is the request body for POST /ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the response body for POST /ask. Sources carries the
// retrieved chunk texts in descending similarity order.
type AskResponse struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
}

// WelcomeResponse is the response body for GET /.
type WelcomeResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the response body for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleRoot returns a welcome message.
func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, WelcomeResponse{
		Message: "Welcome to the HubSpot docs assistant. POST a question to /ask.",
	})
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleAsk answers a question against the indexed documentation.
//
// Status mapping: malformed or empty question is 400, no indexed chunks
// is 404, everything else (embedding, store, generation failures) is 500.
func (s *Server) handleAsk(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ask request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	answer, err := s.answerer.Ask(c.Request().Context(), req.Question)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrEmptyQuestion):
			return echo.NewHTTPError(http.StatusBadRequest, "question field is required")
		case errors.Is(err, pipeline.ErrNoMatches):
			return echo.NewHTTPError(http.StatusNotFound, "no relevant documentation found")
		default:
			s.logger.Error("ask failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to answer question")
		}
	}

	sources := make([]string, len(answer.Sources))
	for i, source := range answer.Sources {
		sources[i] = source.Text
	}

	return c.JSON(http.StatusOK, AskResponse{
		Question: answer.Question,
		Answer:   answer.Answer,
		Sources:  sources,
	})
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
