// Package server exposes the retrieval and match-scoring engine over HTTP.
package server

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"partimatch/internal/retrieval"
	"partimatch/internal/scoring"
)

// Server wires the core engine into an echo HTTP API.
type Server struct {
	echo       *echo.Echo
	retriever  *retrieval.Retriever
	aggregator *scoring.Aggregator
	weights    map[string]float64
	defaultK   int
	logger     *slog.Logger
}

// New creates the API server. weights is the topic weighting used when a
// request does not supply its own.
func New(retriever *retrieval.Retriever, aggregator *scoring.Aggregator, weights map[string]float64, defaultK int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultK <= 0 {
		defaultK = retrieval.DefaultK
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request", "uri", v.URI, "status", v.Status)
			return nil
		},
	}))

	s := &Server{
		echo:       e,
		retriever:  retriever,
		aggregator: aggregator,
		weights:    weights,
		defaultK:   defaultK,
		logger:     logger,
	}

	e.GET("/healthz", s.handleHealth)
	e.GET("/api/retrieve", s.handleRetrieve)
	e.POST("/api/match/compute", s.handleMatchCompute)
	e.GET("/api/match/preview", s.handleMatchPreview)

	return s
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
