// Package store persists resolved events, model predictions and trust
// snapshot history, behind interfaces with PostgreSQL and in-memory
// implementations.
package store

import (
	"context"
	"errors"

	"github.com/trustswarm/prophetrank/internal/scoring"
)

var (
	// ErrEventNotFound is returned when a referenced event does not exist.
	ErrEventNotFound = errors.New("event not found")

	// ErrSnapshotNotFound is returned when no snapshot matches the query.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrDuplicatePrediction is returned when a model already has a
	// prediction recorded for an event.
	ErrDuplicatePrediction = errors.New("prediction already recorded for event")
)

// PredictionStore provides read and write access to resolved events and the
// predictions made against them. Predictions are immutable once written.
type PredictionStore interface {
	// SaveEvent records a resolved event. Saving the same event ID again
	// overwrites the resolution fields, which covers late corrections.
	SaveEvent(ctx context.Context, event *scoring.Event) error

	// SavePrediction records one model's prediction for an event. The event
	// must already exist. A second prediction by the same model for the same
	// event returns ErrDuplicatePrediction.
	SavePrediction(ctx context.Context, record *scoring.PredictionRecord) error

	// GetPredictions returns all predictions by a model against resolved
	// events, joined with event category and resolution date. An empty
	// category means all categories.
	GetPredictions(ctx context.Context, modelName, category string) ([]scoring.PredictionRecord, error)

	// ListModelNames returns the distinct model names with at least one
	// prediction, optionally restricted to a category, sorted ascending.
	ListModelNames(ctx context.Context, category string) ([]string, error)
}

// SnapshotStore provides append-only persistence of trust snapshots.
// Snapshots are never updated or deleted; recomputation appends.
type SnapshotStore interface {
	// AppendSnapshots persists a batch of snapshots atomically. A snapshot
	// whose (model, category, calculation date) key already exists is
	// skipped, so replaying a computation run is harmless.
	AppendSnapshots(ctx context.Context, snapshots []scoring.Snapshot) error

	// ListSnapshots returns every snapshot for a category (empty means the
	// all-categories scope), newest first. Grouping to the latest snapshot
	// per model is the caller's job.
	ListSnapshots(ctx context.Context, category string) ([]scoring.Snapshot, error)

	// SnapshotHistory returns up to limit snapshots for one model and
	// category, newest first. limit <= 0 means no limit.
	SnapshotHistory(ctx context.Context, modelName, category string, limit int) ([]scoring.Snapshot, error)
}

// Stats summarizes the stored data volume, for health and status reporting.
type Stats struct {
	Events      int `json:"events"`
	Predictions int `json:"predictions"`
	Snapshots   int `json:"snapshots"`
	Models      int `json:"models"`
}

// StatsProvider reports row counts for status endpoints.
type StatsProvider interface {
	Stats(ctx context.Context) (Stats, error)
}

// Store is the full persistence surface the engine and API consume.
type Store interface {
	PredictionStore
	SnapshotStore
	StatsProvider
}
