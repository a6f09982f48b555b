package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/trustswarm/prophetrank/internal/scoring"
)

// InMemoryStore implements Store with maps and a mutex. It backs tests and
// local development without a database.
type InMemoryStore struct {
	mu          sync.RWMutex
	events      map[string]scoring.Event
	predictions map[string]scoring.PredictionRecord // keyed model \x00 event
	snapshots   []scoring.Snapshot
	logger      *slog.Logger
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore(logger *slog.Logger) *InMemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryStore{
		events:      make(map[string]scoring.Event),
		predictions: make(map[string]scoring.PredictionRecord),
		logger:      logger,
	}
}

// SaveEvent records or overwrites a resolved event.
func (s *InMemoryStore) SaveEvent(ctx context.Context, event *scoring.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("save event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *event
	copied.Options = append([]string(nil), event.Options...)
	s.events[event.EventID] = copied
	return nil
}

// SavePrediction records one model's prediction for an existing event.
func (s *InMemoryStore) SavePrediction(ctx context.Context, record *scoring.PredictionRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("save prediction: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[record.EventID]; !ok {
		return fmt.Errorf("save prediction for event %s: %w", record.EventID, ErrEventNotFound)
	}

	key := record.ModelName + "\x00" + record.EventID
	if _, ok := s.predictions[key]; ok {
		return fmt.Errorf("save prediction %s/%s: %w", record.ModelName, record.EventID, ErrDuplicatePrediction)
	}
	s.predictions[key] = *record
	return nil
}

// GetPredictions returns a model's predictions joined with event fields.
func (s *InMemoryStore) GetPredictions(ctx context.Context, modelName, category string) ([]scoring.PredictionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []scoring.PredictionRecord
	for _, p := range s.predictions {
		if p.ModelName != modelName {
			continue
		}
		event, ok := s.events[p.EventID]
		if !ok {
			continue
		}
		if category != "" && event.Category != category {
			continue
		}
		p.Category = event.Category
		p.ResolvedDate = event.ResolvedDate
		out = append(out, p)
	}

	// Stable order keeps results deterministic across runs.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].EventID < out[j].EventID
	})
	return out, nil
}

// ListModelNames returns distinct model names sorted ascending.
func (s *InMemoryStore) ListModelNames(ctx context.Context, category string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	for _, p := range s.predictions {
		if category != "" {
			event, ok := s.events[p.EventID]
			if !ok || event.Category != category {
				continue
			}
		}
		seen[p.ModelName] = true
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// AppendSnapshots appends snapshots, skipping duplicate keys.
func (s *InMemoryStore) AppendSnapshots(ctx context.Context, snapshots []scoring.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range snapshots {
		dup := false
		for _, existing := range s.snapshots {
			if existing.Key() == snap.Key() && existing.CalculationDate.Equal(snap.CalculationDate) {
				dup = true
				break
			}
		}
		if dup {
			s.logger.Debug("skipping duplicate snapshot",
				slog.String("model", snap.ModelName),
				slog.String("category", snap.Category))
			continue
		}
		s.snapshots = append(s.snapshots, snap)
	}
	return nil
}

// ListSnapshots returns all snapshots for a category, newest first.
func (s *InMemoryStore) ListSnapshots(ctx context.Context, category string) ([]scoring.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []scoring.Snapshot
	for _, snap := range s.snapshots {
		if snap.Category == category {
			out = append(out, snap)
		}
	}
	sortSnapshotsNewestFirst(out)
	return out, nil
}

// SnapshotHistory returns up to limit snapshots for a model and category,
// newest first.
func (s *InMemoryStore) SnapshotHistory(ctx context.Context, modelName, category string, limit int) ([]scoring.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []scoring.Snapshot
	for _, snap := range s.snapshots {
		if snap.ModelName == modelName && snap.Category == category {
			out = append(out, snap)
		}
	}
	sortSnapshotsNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats reports stored row counts.
func (s *InMemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	models := make(map[string]bool)
	for _, p := range s.predictions {
		models[p.ModelName] = true
	}
	return Stats{
		Events:      len(s.events),
		Predictions: len(s.predictions),
		Snapshots:   len(s.snapshots),
		Models:      len(models),
	}, nil
}

func sortSnapshotsNewestFirst(snapshots []scoring.Snapshot) {
	sort.Slice(snapshots, func(i, j int) bool {
		if !snapshots[i].CalculationDate.Equal(snapshots[j].CalculationDate) {
			return snapshots[i].CalculationDate.After(snapshots[j].CalculationDate)
		}
		return snapshots[i].ModelName < snapshots[j].ModelName
	})
}
