// Package leaderboard computes trust snapshots for every known model and
// ranks them into leaderboards.
package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/trustswarm/prophetrank/internal/scoring"
	"github.com/trustswarm/prophetrank/internal/store"
)

// ErrNoSnapshots is returned when a leaderboard or model query finds no
// snapshot history at all.
var ErrNoSnapshots = errors.New("no trust snapshots computed yet")

// DefaultComputeWorkers bounds the per-model concurrency of a computation run.
const DefaultComputeWorkers = 4

// EngineConfig configures an Engine. Store and Calculator are required;
// everything else has a default.
type EngineConfig struct {
	Store      store.Store
	Calculator *scoring.Calculator
	Weights    scoring.Weights
	Workers    int
	Logger     *slog.Logger
}

// Engine owns the active weight configuration and runs full computation
// passes over all known models. It is safe for concurrent use: reads of the
// active weights and weight updates are serialized, and each computation run
// captures the weights once so every model in the run is scored identically.
type Engine struct {
	store   store.Store
	calc    *scoring.Calculator
	workers int
	logger  *slog.Logger

	mu      sync.RWMutex
	weights scoring.Weights
}

// NewEngine creates an Engine. The initial weights must be valid.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("leaderboard engine requires a store")
	}
	if cfg.Calculator == nil {
		return nil, errors.New("leaderboard engine requires a calculator")
	}
	if err := cfg.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("leaderboard engine weights: %w", err)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultComputeWorkers
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   cfg.Store,
		calc:    cfg.Calculator,
		workers: workers,
		logger:  logger,
		weights: cfg.Weights,
	}, nil
}

// Weights returns the active weight configuration.
func (e *Engine) Weights() scoring.Weights {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.weights
}

// UpdateWeights replaces the active weights after validating them. Invalid
// weights leave the previous configuration untouched. Snapshots already
// persisted keep the weights they were computed with; only future runs see
// the new configuration.
func (e *Engine) UpdateWeights(w scoring.Weights) error {
	if err := w.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	old := e.weights
	e.weights = w
	e.mu.Unlock()

	e.logger.Info("trust weights updated",
		"old", old.Map(),
		"new", w.Map())
	return nil
}

// ComputeAll scores every model with at least one prediction in the given
// category scope and appends the resulting snapshots. Models are scored
// concurrently with a bounded worker pool; one model failing does not stop
// the others, and the snapshots of the models that succeeded are still
// persisted. The joined per-model errors are returned alongside them.
func (e *Engine) ComputeAll(ctx context.Context, category string, asOf time.Time) ([]scoring.Snapshot, error) {
	models, err := e.store.ListModelNames(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	if len(models) == 0 {
		return nil, nil
	}

	weights := e.Weights()

	type result struct {
		snapshot scoring.Snapshot
		err      error
	}

	results := make([]result, len(models))
	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup

	for i, model := range models {
		wg.Add(1)
		go func(i int, model string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			snap, err := e.computeModel(ctx, model, category, weights, asOf)
			if err != nil {
				results[i] = result{err: fmt.Errorf("model %s: %w", model, err)}
				return
			}
			results[i] = result{snapshot: snap}
		}(i, model)
	}
	wg.Wait()

	var (
		snapshots []scoring.Snapshot
		errs      []error
	)
	for _, r := range results {
		if r.err != nil {
			e.logger.Error("failed to compute trust score",
				"error", r.err,
				"category", category)
			errs = append(errs, r.err)
			continue
		}
		snapshots = append(snapshots, r.snapshot)
	}

	if len(snapshots) > 0 {
		if err := e.store.AppendSnapshots(ctx, snapshots); err != nil {
			errs = append(errs, fmt.Errorf("persist snapshots: %w", err))
		}
	}

	e.logger.Info("trust computation run finished",
		"category", category,
		"models", len(models),
		"succeeded", len(snapshots),
		"failed", len(errs))

	return snapshots, errors.Join(errs...)
}

// ComputeModel scores a single model on demand with the active weights and
// appends the snapshot.
func (e *Engine) ComputeModel(ctx context.Context, modelName, category string, asOf time.Time) (scoring.Snapshot, error) {
	snap, err := e.computeModel(ctx, modelName, category, e.Weights(), asOf)
	if err != nil {
		return scoring.Snapshot{}, err
	}
	if err := e.store.AppendSnapshots(ctx, []scoring.Snapshot{snap}); err != nil {
		return scoring.Snapshot{}, fmt.Errorf("persist snapshot for %s: %w", modelName, err)
	}
	return snap, nil
}

func (e *Engine) computeModel(ctx context.Context, modelName, category string, weights scoring.Weights, asOf time.Time) (scoring.Snapshot, error) {
	records, err := e.store.GetPredictions(ctx, modelName, category)
	if err != nil {
		return scoring.Snapshot{}, fmt.Errorf("load predictions: %w", err)
	}
	return e.calc.Compute(modelName, category, records, weights, asOf)
}

// Entry is one leaderboard row: the latest snapshot of a model plus its
// 1-indexed rank.
type Entry struct {
	Rank int `json:"rank"`
	scoring.Snapshot
}

// MarshalJSON flattens the snapshot fields and adds the rank. The embedded
// snapshot's own marshaler would otherwise be promoted and drop the rank.
func (e Entry) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(e.Snapshot)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	rank, err := json.Marshal(e.Rank)
	if err != nil {
		return nil, err
	}
	fields["rank"] = rank
	return json.Marshal(fields)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *Entry) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &e.Snapshot); err != nil {
		return err
	}
	var aux struct {
		Rank int `json:"rank"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.Rank = aux.Rank
	return nil
}

// Leaderboard returns the ranked leaderboard for a category scope, built
// from the latest snapshot of each model. A category board considers both
// the category's own snapshots and the all-categories scope, so a model
// scored only overall still appears on every category board. limit <= 0
// means no limit.
func (e *Engine) Leaderboard(ctx context.Context, category string, limit int) ([]Entry, error) {
	snapshots, err := e.store.ListSnapshots(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	if category != "" {
		overall, err := e.store.ListSnapshots(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("load overall snapshots: %w", err)
		}
		snapshots = append(snapshots, overall...)
	}
	if len(snapshots) == 0 {
		return nil, ErrNoSnapshots
	}

	latest := latestPerModel(snapshots, category)
	sortEntries(latest)

	if limit > 0 && len(latest) > limit {
		latest = latest[:limit]
	}

	entries := make([]Entry, len(latest))
	for i, snap := range latest {
		entries[i] = Entry{Rank: i + 1, Snapshot: snap}
	}
	return entries, nil
}

// LatestSnapshot returns the most recent snapshot for one model in a
// category scope, falling back to the all-categories scope like Leaderboard.
func (e *Engine) LatestSnapshot(ctx context.Context, modelName, category string) (scoring.Snapshot, error) {
	history, err := e.store.SnapshotHistory(ctx, modelName, category, 1)
	if err != nil {
		return scoring.Snapshot{}, fmt.Errorf("load snapshot for %s: %w", modelName, err)
	}
	if len(history) == 0 && category != "" {
		history, err = e.store.SnapshotHistory(ctx, modelName, "", 1)
		if err != nil {
			return scoring.Snapshot{}, fmt.Errorf("load fallback snapshot for %s: %w", modelName, err)
		}
	}
	if len(history) == 0 {
		return scoring.Snapshot{}, fmt.Errorf("model %s: %w", modelName, ErrNoSnapshots)
	}
	return history[0], nil
}

// latestPerModel reduces a snapshot list to the newest snapshot of each
// model. On equal dates a snapshot in the requested category wins over the
// all-categories one. The grouping happens here rather than in SQL so both
// backends share one definition of "current".
func latestPerModel(snapshots []scoring.Snapshot, category string) []scoring.Snapshot {
	latest := make(map[string]scoring.Snapshot)
	for _, snap := range snapshots {
		cur, ok := latest[snap.ModelName]
		switch {
		case !ok:
			latest[snap.ModelName] = snap
		case snap.CalculationDate.After(cur.CalculationDate):
			latest[snap.ModelName] = snap
		case snap.CalculationDate.Equal(cur.CalculationDate) &&
			snap.Category == category && cur.Category != category:
			latest[snap.ModelName] = snap
		}
	}

	out := make([]scoring.Snapshot, 0, len(latest))
	for _, snap := range latest {
		out = append(out, snap)
	}
	return out
}

// sortEntries orders snapshots by trust score descending, breaking ties by
// prediction volume descending and then model name ascending so equal-score
// models always appear in the same order.
func sortEntries(snapshots []scoring.Snapshot) {
	sort.Slice(snapshots, func(i, j int) bool {
		a, b := snapshots[i], snapshots[j]
		if a.TrustScore != b.TrustScore {
			return a.TrustScore > b.TrustScore
		}
		if a.TotalPredictions != b.TotalPredictions {
			return a.TotalPredictions > b.TotalPredictions
		}
		return a.ModelName < b.ModelName
	})
}
