// Package api exposes the operational HTTP surface: health, Prometheus
// metrics, and a JSON snapshot of the current run.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/peterkacmarik/course-scraper/internal/progress"
)

// RunStatus is the JSON shape served at /v1/run.
type RunStatus struct {
	RunID     string    `json:"run_id"`
	State     string    `json:"state"`
	Stage     string    `json:"stage,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	Fetches   int64     `json:"fetches"`
	Failures  int64     `json:"failures"`
	Note      string    `json:"note,omitempty"`
}

// StatusTracker folds progress events into the latest run snapshot. It
// implements progress.Sink so the hub can feed it directly.
type StatusTracker struct {
	mu     sync.RWMutex
	status RunStatus
}

// NewStatusTracker returns a tracker in the "idle" state.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{status: RunStatus{State: "idle"}}
}

// Consume applies a batch of events to the snapshot.
func (t *StatusTracker) Consume(_ context.Context, batch []progress.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, evt := range batch {
		t.status.UpdatedAt = evt.TS
		switch evt.Kind {
		case progress.KindRunStart:
			t.status = RunStatus{
				RunID:     evt.RunID,
				State:     "running",
				StartedAt: evt.TS,
				UpdatedAt: evt.TS,
			}
		case progress.KindRunDone:
			t.status.State = "done"
		case progress.KindRunError:
			t.status.State = "failed"
			t.status.Note = evt.Note
		case progress.KindStageStart:
			t.status.Stage = string(evt.Stage)
		case progress.KindFetchDone:
			t.status.Fetches++
			if evt.Status == progress.FetchFailed {
				t.status.Failures++
			}
		}
	}
	return nil
}

// Close implements progress.Sink.
func (t *StatusTracker) Close(context.Context) error { return nil }

// Snapshot returns a copy of the current status.
func (t *StatusTracker) Snapshot() RunStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Server serves the operational endpoints.
type Server struct {
	http    *http.Server
	logger  *zap.Logger
	tracker *StatusTracker
}

// New builds a Server on the given port. The gatherer backs /metrics; pass
// the registry the progress Prometheus sink was registered with.
func New(port int, gatherer prometheus.Gatherer, tracker *StatusTracker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/v1/run", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(tracker.Snapshot()); err != nil {
			logger.Warn("encode run status failed", zap.Error(err))
		}
	})

	return &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger:  logger,
		tracker: tracker,
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Start serves until Shutdown is called. It returns nil on graceful close.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
