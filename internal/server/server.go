package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/visionone/internal/common"
	"github.com/ternarybob/visionone/internal/handlers"
	"github.com/ternarybob/visionone/internal/services/report"
)

// Server manages the dashboard HTTP server and routes
type Server struct {
	config *common.Config
	logger arbor.ILogger

	store          *report.Store
	apiHandler     *handlers.APIHandler
	reportsHandler *handlers.ReportsHandler
	wsHandler      *handlers.WebSocketHandler

	router *http.ServeMux
	server *http.Server
}

// New creates the reporting server over cfg.Reports.Dir
func New(cfg *common.Config, logger arbor.ILogger) *Server {
	store := report.NewStore(cfg.Reports.Dir, logger)

	s := &Server{
		config:         cfg,
		logger:         logger,
		store:          store,
		apiHandler:     handlers.NewAPIHandler(logger),
		reportsHandler: handlers.NewReportsHandler(store, report.NewExporter(logger), logger),
		wsHandler:      handlers.NewWebSocketHandler(store, logger),
	}

	// Setup routes
	s.router = s.setupRoutes()

	// WriteTimeout stays zero so websocket connections are not cut off
	s.server = &http.Server{
		Addr:        s.addr(),
		Handler:     s.withConditionalMiddleware(s.router),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

func (s *Server) addr() string {
	return fmt.Sprintf("%s:%d", s.config.Dashboard.Host, s.config.Dashboard.Port)
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the latest-report broadcaster and serves until Shutdown
func (s *Server) Start(ctx context.Context) error {
	s.wsHandler.StartLatestBroadcaster(ctx, s.config.Dashboard.PollInterval)

	s.logger.Info().
		Str("address", s.addr()).
		Str("reports_dir", s.store.Dir()).
		Msg("HTTP server starting")

	s.logger.Info().
		Str("url", fmt.Sprintf("http://%s", s.addr())).
		Msg("Dashboard API available")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}
