package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/trustswarm/prophetrank/internal/scoring"
)

// DefaultHistoryLimit bounds the trend history in a performance analysis.
const DefaultHistoryLimit = 30

// PerformanceAnalysis is a per-model breakdown: overall metrics, metrics per
// category the model has predicted in, and the recent snapshot history for
// trend inspection.
type PerformanceAnalysis struct {
	ModelName  string                      `json:"model_name"`
	Overall    scoring.Snapshot            `json:"overall"`
	Categories map[string]scoring.Snapshot `json:"categories,omitempty"`
	History    []scoring.Snapshot          `json:"history,omitempty"`
}

// Analyze computes a fresh performance analysis for one model with the
// active weights. The overall and per-category metrics are computed from
// the predictions directly rather than read from stored snapshots, so the
// analysis reflects the data as of the given time even between recompute
// runs. The history comes from the stored snapshot trail.
func (e *Engine) Analyze(ctx context.Context, modelName string, asOf time.Time) (PerformanceAnalysis, error) {
	weights := e.Weights()

	records, err := e.store.GetPredictions(ctx, modelName, "")
	if err != nil {
		return PerformanceAnalysis{}, fmt.Errorf("load predictions for %s: %w", modelName, err)
	}

	overall, err := e.calc.Compute(modelName, "", records, weights, asOf)
	if err != nil {
		return PerformanceAnalysis{}, err
	}

	analysis := PerformanceAnalysis{
		ModelName: modelName,
		Overall:   overall,
	}

	byCategory := make(map[string][]scoring.PredictionRecord)
	for _, r := range records {
		if r.Category != "" {
			byCategory[r.Category] = append(byCategory[r.Category], r)
		}
	}
	if len(byCategory) > 0 {
		analysis.Categories = make(map[string]scoring.Snapshot, len(byCategory))
		categories := make([]string, 0, len(byCategory))
		for category := range byCategory {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		for _, category := range categories {
			snap, err := e.calc.Compute(modelName, category, byCategory[category], weights, asOf)
			if err != nil {
				return PerformanceAnalysis{}, err
			}
			analysis.Categories[category] = snap
		}
	}

	history, err := e.store.SnapshotHistory(ctx, modelName, "", DefaultHistoryLimit)
	if err != nil {
		return PerformanceAnalysis{}, fmt.Errorf("load history for %s: %w", modelName, err)
	}
	analysis.History = history

	return analysis, nil
}
