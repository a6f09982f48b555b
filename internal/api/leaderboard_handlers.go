// Package api provides HTTP handlers for the ProphetRank API.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/trustswarm/prophetrank/internal/leaderboard"
	"github.com/trustswarm/prophetrank/internal/middleware"
)

// LeaderboardResponse represents the response for the leaderboard endpoint.
type LeaderboardResponse struct {
	Category    string              `json:"category"`
	Entries     []leaderboard.Entry `json:"entries"`
	GeneratedAt string              `json:"generated_at"`
}

// LeaderboardHandlers holds dependencies for leaderboard HTTP handlers.
type LeaderboardHandlers struct {
	engine       *leaderboard.Engine
	defaultLimit int
}

// NewLeaderboardHandlers creates a new LeaderboardHandlers instance.
func NewLeaderboardHandlers(engine *leaderboard.Engine, defaultLimit int) *LeaderboardHandlers {
	if defaultLimit <= 0 {
		defaultLimit = leaderboard.DefaultHistoryLimit
	}
	return &LeaderboardHandlers{
		engine:       engine,
		defaultLimit: defaultLimit,
	}
}

// GetLeaderboard handles GET /leaderboard - returns ranked models by trust score.
// Optional query parameters: category (defaults to all categories), limit.
func (h *LeaderboardHandlers) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	category := r.URL.Query().Get("category")

	limit := h.defaultLimit
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed <= 0 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := h.engine.Leaderboard(r.Context(), category, limit)
	if err != nil {
		if errors.Is(err, leaderboard.ErrNoSnapshots) {
			// An empty board is not an error condition for callers
			entries = []leaderboard.Entry{}
		} else {
			slog.ErrorContext(r.Context(), "failed to build leaderboard", "error", err, "category", category)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to build leaderboard")
			return
		}
	}

	response := LeaderboardResponse{
		Category:    category,
		Entries:     entries,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}

	WriteJSON(w, r.Context(), http.StatusOK, response)
}
