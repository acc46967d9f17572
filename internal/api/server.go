package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/knowledge-sync/internal/coordinator"
	"github.com/JakeFAU/knowledge-sync/internal/metrics"
)

const probeTimeout = 5 * time.Second

// Runner executes one sync run.
type Runner interface {
	Run(ctx context.Context, pageSize, maxItems int) (coordinator.Summary, error)
}

// Options configures a Server.
type Options struct {
	// APIKey protects the /v1 routes when non-empty.
	APIKey     string
	RunTimeout time.Duration
	PageSize   int
	MaxItems   int
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	Logger     *zap.Logger
}

// RunResult is the outcome of one triggered run.
type RunResult struct {
	Summary coordinator.Summary `json:"summary"`
	Error   string              `json:"error,omitempty"`
}

// Server wires HTTP handlers to the sync runner.
type Server struct {
	router chi.Router
	runner Runner
	opts   Options
	logger *zap.Logger

	// running is set for the duration of a run; a second trigger is rejected.
	running atomic.Bool

	mu     sync.RWMutex
	latest *RunResult
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner Runner, opts Options) (*Server, error) {
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.NewRegistry()
	}
	if opts.Gatherer == nil {
		if g, ok := opts.Registerer.(prometheus.Gatherer); ok {
			opts.Gatherer = g
		} else {
			opts.Gatherer = prometheus.DefaultGatherer
		}
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 10 * time.Minute
	}
	httpMetrics, err := metrics.NewHTTP(opts.Registerer)
	if err != nil {
		return nil, err
	}

	s := &Server{runner: runner, opts: opts, logger: opts.Logger.Named("api")}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(httpMetrics.Middleware)

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(probeTimeout))
		r.Get("/healthz", s.healthz)
		r.Get("/readyz", s.readyz)
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	})

	r.Route("/v1", func(r chi.Router) {
		if opts.APIKey != "" {
			r.Use(apiKeyMiddleware(opts.APIKey))
		}
		r.Post("/runs", s.triggerRun)
		r.Get("/runs/latest", s.latestRun)
	})

	s.router = r
	return s, nil
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "run_in_progress": s.running.Load()})
}

type runRequest struct {
	PageSize *int `json:"page_size"`
	MaxItems *int `json:"max_items"`
}

func (s *Server) triggerRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	pageSize := valueOrDefault(req.PageSize, s.opts.PageSize)
	maxItems := valueOrDefault(req.MaxItems, s.opts.MaxItems)
	if pageSize <= 0 {
		writeError(w, http.StatusBadRequest, "page_size must be > 0")
		return
	}
	if maxItems < 0 {
		writeError(w, http.StatusBadRequest, "max_items must be >= 0")
		return
	}

	if !s.running.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	defer s.running.Store(false)

	// The run outlives a disconnecting client; only the run timeout bounds it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.opts.RunTimeout)
	defer cancel()

	summary, err := s.runner.Run(ctx, pageSize, maxItems)
	result := RunResult{Summary: summary}
	if err != nil {
		result.Error = err.Error()
	}
	s.mu.Lock()
	s.latest = &result
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("triggered run aborted", zap.String("run_id", summary.RunID), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) latestRun(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest == nil {
		writeError(w, http.StatusNotFound, "no run has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			reqID, _ := r.Context().Value(requestIDKey{}).(string)
			logger.Info("request completed",
				zap.String("request_id", reqID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("panic", rec), zap.String("path", r.URL.Path))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-Key") != expected {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
