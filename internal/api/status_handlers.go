package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/trustswarm/prophetrank/internal/leaderboard"
	"github.com/trustswarm/prophetrank/internal/middleware"
	"github.com/trustswarm/prophetrank/internal/store"
)

// StatusResponse represents the response for the status endpoint.
type StatusResponse struct {
	Status           string             `json:"status"`
	Events           int                `json:"events"`
	Predictions      int                `json:"predictions"`
	Snapshots        int                `json:"snapshots"`
	Models           int                `json:"models"`
	RecomputeRunning bool               `json:"recompute_running"`
	Weights          map[string]float64 `json:"weights"`
	UptimeSeconds    int64              `json:"uptime_seconds"`
	Timestamp        string             `json:"timestamp"`
}

// StatusHandlers holds dependencies for the service status endpoint.
type StatusHandlers struct {
	stats     store.StatsProvider
	engine    *leaderboard.Engine
	job       *leaderboard.RecomputeJob
	startedAt time.Time
}

// NewStatusHandlers creates a new StatusHandlers instance. The job may be nil
// when the recompute loop is not running in this process.
func NewStatusHandlers(stats store.StatsProvider, engine *leaderboard.Engine, job *leaderboard.RecomputeJob) *StatusHandlers {
	return &StatusHandlers{
		stats:     stats,
		engine:    engine,
		job:       job,
		startedAt: time.Now().UTC(),
	}
}

// Status handles GET /status - reports store counts and job state.
func (h *StatusHandlers) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to collect store stats", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to collect stats")
		return
	}

	response := StatusResponse{
		Status:        "ok",
		Events:        stats.Events,
		Predictions:   stats.Predictions,
		Snapshots:     stats.Snapshots,
		Models:        stats.Models,
		Weights:       h.engine.Weights().Map(),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	if h.job != nil {
		response.RecomputeRunning = h.job.IsRunning()
	}

	WriteJSON(w, r.Context(), http.StatusOK, response)
}
