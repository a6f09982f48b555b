package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/trustswarm/prophetrank/internal/leaderboard"
	"github.com/trustswarm/prophetrank/internal/middleware"
	"github.com/trustswarm/prophetrank/internal/store"
)

// ModelListResponse represents the response for the model listing endpoint.
type ModelListResponse struct {
	Models []string `json:"models"`
}

// ModelHandlers holds dependencies for model HTTP handlers.
type ModelHandlers struct {
	engine *leaderboard.Engine
	store  store.PredictionStore
}

// NewModelHandlers creates a new ModelHandlers instance.
func NewModelHandlers(engine *leaderboard.Engine, st store.PredictionStore) *ModelHandlers {
	return &ModelHandlers{
		engine: engine,
		store:  st,
	}
}

// ListModels handles GET /models - lists model names with recorded predictions.
// Optional query parameter: category.
func (h *ModelHandlers) ListModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	category := r.URL.Query().Get("category")

	models, err := h.store.ListModelNames(r.Context(), category)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list models", "error", err, "category", category)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list models")
		return
	}
	if models == nil {
		models = []string{}
	}

	WriteJSON(w, r.Context(), http.StatusOK, ModelListResponse{Models: models})
}

// ModelRoutes handles GET /models/{name}/trust and GET /models/{name}/analysis,
// dispatching on the trailing path segment.
func (h *ModelHandlers) ModelRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/models/"), "/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Model name is required")
		return
	}
	modelName := pathParts[0]

	if len(pathParts) != 2 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
		return
	}

	switch pathParts[1] {
	case "trust":
		h.getTrust(w, r, modelName)
	case "analysis":
		h.getAnalysis(w, r, modelName)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
	}
}

// getTrust returns the latest trust snapshot for a model. A category query
// parameter scopes the lookup, falling back to the all-categories snapshot
// when the category has none.
func (h *ModelHandlers) getTrust(w http.ResponseWriter, r *http.Request, modelName string) {
	category := r.URL.Query().Get("category")

	snapshot, err := h.engine.LatestSnapshot(r.Context(), modelName, category)
	if err != nil {
		if errors.Is(err, leaderboard.ErrNoSnapshots) {
			slog.DebugContext(r.Context(), "no snapshots for model", "model_name", modelName, "category", category)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeModelNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeModelNotFound, "No trust snapshots for model")
			return
		}
		slog.ErrorContext(r.Context(), "failed to retrieve trust snapshot", "error", err, "model_name", modelName)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve trust snapshot")
		return
	}

	WriteJSON(w, r.Context(), http.StatusOK, snapshot)
}

// getAnalysis returns a fresh per-category performance breakdown for a model.
func (h *ModelHandlers) getAnalysis(w http.ResponseWriter, r *http.Request, modelName string) {
	analysis, err := h.engine.Analyze(r.Context(), modelName, time.Now().UTC())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to analyze model", "error", err, "model_name", modelName)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to analyze model")
		return
	}

	WriteJSON(w, r.Context(), http.StatusOK, analysis)
}
