// Package web provides the HTTP API and minimal browser UI for the pipeline.
//
// Endpoints:
//
//	GET  /                     single-page UI
//	POST /api/v1/plan          full pipeline on free text
//	POST /api/v1/lookup        variant lookup (steps 1-2, explicit gene/variant)
//	POST /api/v1/recommend     treatment pathway for one identified syndrome
//	GET  /health               liveness probe
//	GET  /ready                readiness probe (pings the database)
package web

import (
	"context"
	"embed"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/epiguide/epiguide/internal/log"
	"github.com/epiguide/epiguide/internal/planner"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 30 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response. Pipeline
	// runs chain several model calls, so this is generous.
	WriteTimeout = 2 * time.Minute

	// IdleTimeout is the maximum time to wait for the next request on
	// keep-alive connections.
	IdleTimeout = 2 * time.Minute
)

//go:embed static
var staticFS embed.FS

// Pipeline is the planner surface the HTTP handlers need.
type Pipeline interface {
	Run(ctx context.Context, text string) (planner.State, error)
	Lookup(ctx context.Context, gene, variant string) (planner.State, error)
	Recommend(ctx context.Context, gene, variant, syndrome string, known []string) (string, error)
}

// Server is the HTTP server for the pipeline API.
type Server struct {
	mux      *http.ServeMux
	pipeline Pipeline
	pool     *pgxpool.Pool
	logger   log.Logger
	version  string
}

// Config holds Server dependencies. Pool may be nil; /ready then reports
// unavailable.
type Config struct {
	Pipeline Pipeline
	Pool     *pgxpool.Pool
	Logger   log.Logger
	Version  string
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}

	s := &Server{
		mux:      http.NewServeMux(),
		pipeline: cfg.Pipeline,
		pool:     cfg.Pool,
		logger:   cfg.Logger,
		version:  cfg.Version,
	}

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /api/v1/plan", s.handlePlan)
	s.mux.HandleFunc("POST /api/v1/lookup", s.handleLookup)
	s.mux.HandleFunc("POST /api/v1/recommend", s.handleRecommend)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery, logging, security headers, handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, s.recoveryMiddleware, s.loggingMiddleware, s.securityHeadersMiddleware)
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr, "version", s.version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// handleIndex serves the embedded single-page UI.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		s.logger.Error("embedded index missing", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(data)
}

// handleHealth is the liveness probe. Returns 200 OK if the process is alive.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady is the readiness probe. Pings the database.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pool == nil {
		http.Error(w, "database pool not configured", http.StatusServiceUnavailable)
		return
	}
	if err := s.pool.Ping(r.Context()); err != nil {
		s.logger.Error("readiness check failed", "error", err)
		http.Error(w, "database not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
