package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/trustswarm/prophetrank/internal/auth"
	"github.com/trustswarm/prophetrank/internal/leaderboard"
	"github.com/trustswarm/prophetrank/internal/middleware"
	"github.com/trustswarm/prophetrank/internal/scoring"
)

// WeightsResponse represents the response for weight endpoints.
type WeightsResponse struct {
	Weights map[string]float64 `json:"weights"`
}

// WeightsHandlers holds dependencies for weight configuration HTTP handlers.
type WeightsHandlers struct {
	engine *leaderboard.Engine
	jwt    *auth.JWTService
}

// NewWeightsHandlers creates a new WeightsHandlers instance.
func NewWeightsHandlers(engine *leaderboard.Engine, jwtService *auth.JWTService) *WeightsHandlers {
	return &WeightsHandlers{
		engine: engine,
		jwt:    jwtService,
	}
}

// Weights handles /weights: GET returns the active scoring weights,
// PUT replaces them. PUT requires an admin bearer token.
func (h *WeightsHandlers) Weights(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getWeights(w, r)
	case http.MethodPut:
		h.updateWeights(w, r)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

func (h *WeightsHandlers) getWeights(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, r.Context(), http.StatusOK, WeightsResponse{Weights: h.engine.Weights().Map()})
}

// updateWeights replaces the active weights. The body is a flat JSON object
// of component name to weight, and must name all four components with a
// sum of 1.0. Invalid updates leave the active weights untouched.
func (h *WeightsHandlers) updateWeights(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var body map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Request body must be a JSON object of component weights")
		return
	}

	weights, err := scoring.WeightsFromMap(body)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidWeights)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidWeights, err.Error())
		return
	}

	if err := h.engine.UpdateWeights(weights); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidWeights)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidWeights, err.Error())
		return
	}

	slog.InfoContext(r.Context(), "scoring weights updated",
		"admin_subject", subject,
		"weights", weights.Map(),
	)

	WriteJSON(w, r.Context(), http.StatusOK, WeightsResponse{Weights: weights.Map()})
}

// authorize validates the admin bearer token and stores the admin subject on
// the request context for logging. Writes the error response on failure.
func (h *WeightsHandlers) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Missing bearer token")
		return "", false
	}

	claims, err := h.jwt.ValidateAdminToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		slog.WarnContext(r.Context(), "admin token rejected", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid or expired token")
		return "", false
	}

	*r = *r.WithContext(middleware.SetAdminSubject(r.Context(), claims.Subject))
	return claims.Subject, true
}
