// Package server exposes the question-answering pipeline over HTTP with
// health endpoints and graceful shutdown.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/raglinehq/ragline/internal/answer"
	"github.com/raglinehq/ragline/internal/observability"
	"github.com/raglinehq/ragline/internal/retrieve"
)

// MinQueryLength is the shortest accepted /ask query.
const MinQueryLength = 3

// Config configures the HTTP server.
type Config struct {
	Addr            string
	DefaultK        int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible server defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		DefaultK:        retrieve.DefaultK,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// Server serves /ask plus health and metrics endpoints.
type Server struct {
	cfg      Config
	composer *answer.Composer
	health   *Health
	metrics  *observability.RequestMetrics
	log      *slog.Logger
	httpSrv  *http.Server
}

// New creates a Server. A nil metrics registry disables /metrics.
func New(cfg Config, composer *answer.Composer, health *Health, metrics *observability.RequestMetrics, log *slog.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.DefaultK < 1 {
		cfg.DefaultK = retrieve.DefaultK
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	if health == nil {
		health = NewHealth("")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{cfg: cfg, composer: composer, health: health, metrics: metrics, log: log}
}

// Routes builds the full handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ask", s.handleAsk)
	s.health.Register(mux)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

// ListenAndServe runs the server until ctx is canceled, then drains
// in-flight requests within the shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.cfg.Addr)
		errCh <- s.httpSrv.ListenAndServe()
	}()
	s.health.SetReady(true)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.health.SetReady(false)
		s.log.Info("http server draining", "timeout", s.cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "use GET"})
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(q) < MinQueryLength {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("query parameter q must be at least %d characters", MinQueryLength),
		})
		return
	}

	k := s.cfg.DefaultK
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "k must be a positive integer"})
			return
		}
		k = parsed
	}

	start := time.Now()
	ans, err := s.composer.Ask(r.Context(), q, k)
	if s.metrics != nil {
		s.metrics.Record("ask", time.Since(start), err)
	}
	if err != nil {
		s.log.Error("ask failed", "error", err)
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: "answer pipeline failed"})
		return
	}

	s.writeJSON(w, http.StatusOK, ans)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("write response", "error", err)
	}
}
