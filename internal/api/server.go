package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/firmlight-worker/internal/inflight"
	"github.com/JakeFAU/firmlight-worker/internal/metrics"
)

// TaskLister exposes in-flight bookkeeping.
type TaskLister interface {
	List() []inflight.Entry
	Completed() uint64
}

// QueueDepth reports how many tasks wait for a worker.
type QueueDepth interface {
	Pending() int
}

// Readiness reports whether the control channel is connected.
type Readiness interface {
	Ready() bool
}

// Server wires ops handlers to the node's runtime state.
type Server struct {
	router  chi.Router
	tasks   TaskLister
	queue   QueueDepth
	ready   Readiness
	nodeID  string
	workers int
	logger  *zap.Logger
}

// TasksResponse is the body of GET /v1/tasks.
type TasksResponse struct {
	Node      string           `json:"node"`
	Workers   int              `json:"workers"`
	Queued    int              `json:"queued"`
	Completed uint64           `json:"completed"`
	InFlight  []inflight.Entry `json:"inFlight"`
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	tasks TaskLister,
	queue QueueDepth,
	ready Readiness,
	nodeID string,
	workers int,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		tasks:   tasks,
		queue:   queue,
		ready:   ready,
		nodeID:  nodeID,
		workers: workers,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/v1/tasks", s.listTasks)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.ready == nil || !s.ready.Ready() {
		s.writeError(w, http.StatusServiceUnavailable, "control channel not connected")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listTasks(w http.ResponseWriter, _ *http.Request) {
	entries := s.tasks.List()
	if entries == nil {
		entries = []inflight.Entry{}
	}
	s.writeJSON(w, http.StatusOK, TasksResponse{
		Node:      s.nodeID,
		Workers:   s.workers,
		Queued:    s.queue.Pending(),
		Completed: s.tasks.Completed(),
		InFlight:  entries,
	})
}

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

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Debug("request completed",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
