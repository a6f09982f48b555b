package api

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/trustswarm/prophetrank/internal/leaderboard"
	"github.com/trustswarm/prophetrank/internal/scoring"
	"github.com/trustswarm/prophetrank/internal/store"
)

var testAsOf = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEngine builds an engine over an in-memory store for handler tests.
func newTestEngine(t *testing.T) (*leaderboard.Engine, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore(testLogger())
	engine, err := leaderboard.NewEngine(leaderboard.EngineConfig{
		Store:      st,
		Calculator: scoring.NewCalculator(scoring.CalculatorConfig{Logger: testLogger()}),
		Weights:    scoring.DefaultWeights(),
		Logger:     testLogger(),
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine, st
}

// seedModel records n predictions for a model, correct of them right, against
// resolved events in the given category.
func seedModel(t *testing.T, st store.Store, model, category string, n, correct int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		eventID := model + "-" + category + "-" + string(rune('a'+i))
		err := st.SaveEvent(ctx, &scoring.Event{
			EventID:         eventID,
			Category:        category,
			Options:         []string{"yes", "no"},
			ResolvedOutcome: "yes",
			ResolvedDate:    testAsOf,
		})
		if err != nil {
			t.Fatalf("SaveEvent() error = %v", err)
		}
		err = st.SavePrediction(ctx, &scoring.PredictionRecord{
			ModelName:   model,
			EventID:     eventID,
			Probability: 0.8,
			Correct:     i < correct,
			Confidence:  0.9,
			CreatedAt:   testAsOf,
		})
		if err != nil {
			t.Fatalf("SavePrediction() error = %v", err)
		}
	}
}

// computeAll runs a full scoring pass so snapshot-backed endpoints have data.
func computeAll(t *testing.T, engine *leaderboard.Engine, category string) {
	t.Helper()
	if _, err := engine.ComputeAll(context.Background(), category, testAsOf); err != nil {
		t.Fatalf("ComputeAll() error = %v", err)
	}
}
