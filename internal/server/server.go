// Package server wires the HTTP API: trace queries, correlation timelines,
// endpoint management and outage/uptime reporting.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"skywatch/internal/analyzer"
	"skywatch/internal/config"
	"skywatch/internal/correlation"
	"skywatch/internal/db"
	"skywatch/internal/models"
	"skywatch/internal/store/clickhouse"
	"skywatch/pkg/llm"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg     *config.Config
	srv     *http.Server
	db      *db.DB
	handler *Handler
	logger  *slog.Logger
}

// New creates a new server instance
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	telemetry := clickhouse.NewClient(cfg.ClickHouse.URL, cfg.ClickHouse.Username,
		cfg.ClickHouse.Password, cfg.ClickHouse.GetTimeoutDuration(), logger)

	engine := correlation.NewEngine(telemetry, logger)

	// The LLM analyzer is optional; without it the diagnose endpoint
	// reports 503 and everything else works.
	var anlz *analyzer.Analyzer
	if cfg.LLM.Enabled {
		provider, err := llm.NewProvider(cfg.LLM)
		if err != nil {
			logger.Warn("LLM provider unavailable, trace diagnosis disabled", "error", err)
		} else {
			anlz = analyzer.New(provider)
			logger.Info("LLM provider initialized", "provider", provider.Name())
		}
	}

	traceCache := correlation.NewCache[[]models.TraceSummary](
		cfg.Cache.GetTTLDuration(), cfg.Cache.MaxEntries)

	handler := NewHandler(database, telemetry, engine, anlz, traceCache, logger)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		cfg:     cfg,
		srv:     srv,
		db:      database,
		handler: handler,
		logger:  logger,
	}, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server and closes the database.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	err := s.srv.Shutdown(ctx)
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}
