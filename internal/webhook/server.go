package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mattjoyce/intake-gw/internal/intake"
)

// Server represents the intake HTTP server.
type Server struct {
	config   Config
	schema   *intake.Schema
	notifier Notifier
	ledger   Ledger
	logger   *slog.Logger
	server   *http.Server
	started  time.Time
	now      func() time.Time

	// inflight holds fingerprints whose dispatch has not finished yet.
	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// New creates a server. ledger may be nil, which disables recording and
// duplicate suppression.
func New(config Config, schema *intake.Schema, notifier Notifier, ledger Ledger, logger *slog.Logger) *Server {
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	if config.SignatureHeader == "" {
		config.SignatureHeader = DefaultSignatureHeader
	}
	if schema == nil {
		schema = intake.DefaultSchema()
	}

	switch {
	case config.DevMode:
		logger.Warn("dev mode enabled: webhook signatures are not verified")
	case config.Secret == "":
		logger.Warn("no webhook secret configured: webhook signatures are not verified")
	}
	if config.DedupeTTL > 0 && ledger == nil {
		logger.Warn("dedupe_ttl set but no ledger configured: duplicates are not suppressed")
	}

	return &Server{
		config:   config,
		schema:   schema,
		notifier: notifier,
		ledger:   ledger,
		logger:   logger,
		started:  time.Now(),
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}
}

// Start starts the HTTP server (blocking) until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("intake server starting",
		"listen", s.config.Listen,
		"path", s.config.Path,
		"email_path", s.config.EmailPath,
		"channel", s.notifier.Channel(),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("intake server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("intake server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("intake server error: %w", err)
	}
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.config.MetricsPath != "" {
		r.Handle(s.config.MetricsPath, promhttp.Handler())
	}

	r.Post(s.config.Path, s.handleWebhook)
	r.Get(s.config.Path, s.handleReady)
	if s.config.EmailPath != "" {
		r.Post(s.config.EmailPath, s.handleEmail)
		r.Get(s.config.EmailPath, s.handleReady)
	}

	return r
}

// loggingMiddleware logs HTTP requests (excludes payloads).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		UptimeSeconds: int64(s.now().Sub(s.started).Seconds()),
		Channel:       s.notifier.Channel(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, Response{Status: StatusReady})
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, Response{Status: StatusError, Message: message})
}
