package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/quietriver/waveplan/internal/pipeline"
	"github.com/quietriver/waveplan/internal/plan"
	"github.com/quietriver/waveplan/internal/shared"
)

// StatusHandler serves the persisted plan snapshot. Implements [Handler].
type StatusHandler struct {
	planPath string
	logger   *log.Logger
}

// NewStatusHandler creates a StatusHandler reading snapshots from planPath.
func NewStatusHandler(planPath string, logger *log.Logger) *StatusHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &StatusHandler{planPath: planPath, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *StatusHandler) Routes() []string {
	return []string{"/health", "/api/plan", "/api/plan/stats"}
}

// ServeHTTP dispatches on path. Every endpoint is read-only GET.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case "/health":
		h.health(w)
	case "/api/plan":
		h.plan(w)
	case "/api/plan/stats":
		h.planStats(w)
	default:
		http.NotFound(w, r)
	}
}

func (h *StatusHandler) health(w http.ResponseWriter) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// plan serves the full snapshot: items plus run metadata.
func (h *StatusHandler) plan(w http.ResponseWriter) {
	p, err := h.load(w)
	if err != nil {
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"items":      p.Items,
		"created_at": p.CreatedAt,
		"metadata":   p.Metadata,
	})
}

// planStats serves the track tally plus the run phase.
func (h *StatusHandler) planStats(w http.ResponseWriter) {
	p, err := h.load(w)
	if err != nil {
		return
	}

	counts := p.CountByStatus(plan.TypeTrack)
	stats := pipeline.Stats{
		Completed:  counts[plan.StatusCompleted],
		Failed:     counts[plan.StatusFailed],
		Pending:    counts[plan.StatusPending],
		InProgress: counts[plan.StatusInProgress],
	}
	stats.Total = stats.Completed + stats.Failed + stats.Pending + stats.InProgress

	phase, _ := p.Metadata["phase"].(string)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"stats": stats,
		"phase": phase,
	})
}

// load reads the snapshot from disk, writing the error response itself so
// handlers can bail with a bare return.
func (h *StatusHandler) load(w http.ResponseWriter) (*plan.Plan, error) {
	p, err := plan.Load(h.planPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "No plan has been generated yet", http.StatusNotFound)
		} else {
			h.logger.Error("failed to load plan snapshot", "path", h.planPath, "err", err)
			http.Error(w, "Failed to load plan", http.StatusInternalServerError)
		}
		return nil, err
	}
	return p, nil
}

func (h *StatusHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := shared.MarshalJSON(v, false)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// LoggingMiddleware logs method, path, and elapsed time per request.
func LoggingMiddleware(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
		})
	}
}

// Serve runs the status server on addr until ctx is cancelled, then shuts it
// down gracefully.
func Serve(ctx context.Context, addr, planPath string, logger *log.Logger) error {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	router := NewBasicRouter()
	router.Use(LoggingMiddleware(logger))
	router.Handler(NewStatusHandler(planPath, logger))

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("status server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
