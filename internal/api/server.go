// Package api serves quotes and operational endpoints over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/swapquote/internal/core/domain"
	"github.com/vietddude/swapquote/internal/health"
	"github.com/vietddude/swapquote/internal/infra/storage"
)

// Quoter prices a quote request.
type Quoter interface {
	Quote(ctx context.Context, req domain.QuoteRequest) (*domain.QuoteResult, error)
}

// RunLister lists persisted quote runs.
type RunLister interface {
	List(ctx context.Context, filter storage.RunFilter) ([]*storage.QuoteRun, error)
}

// Config holds server settings.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	QuoteTimeout time.Duration
}

// Server provides the HTTP endpoints.
type Server struct {
	cfg    Config
	quoter Quoter
	runs   RunLister
	log    *slog.Logger
	server *http.Server
}

// NewServer creates a new server. runs and monitor may be nil.
func NewServer(cfg Config, quoter Quoter, runs RunLister, monitor *health.Monitor) *Server {
	mux := http.NewServeMux()
	s := &Server{
		cfg:    cfg,
		quoter: quoter,
		runs:   runs,
		log:    slog.Default().With("component", "api"),
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      mux,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}

	mux.HandleFunc("POST /quote", s.handleQuote)
	if runs != nil {
		mux.HandleFunc("GET /runs", s.handleRuns)
	}
	if monitor != nil {
		health.Register(mux, monitor)
	}
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server. It returns nil after Stop.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
