package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/trustswarm/prophetrank/internal/scoring"
	"github.com/trustswarm/prophetrank/internal/store"
)

var testAsOf = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, st store.Store) *Engine {
	t.Helper()
	engine, err := NewEngine(EngineConfig{
		Store:      st,
		Calculator: scoring.NewCalculator(scoring.CalculatorConfig{Logger: testLogger()}),
		Weights:    scoring.DefaultWeights(),
		Logger:     testLogger(),
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine
}

// seedModel records n predictions for a model, correct of them right, all
// created at testAsOf against events in the given category.
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

func TestNewEngineValidation(t *testing.T) {
	st := store.NewInMemoryStore(testLogger())
	calc := scoring.NewCalculator(scoring.CalculatorConfig{Logger: testLogger()})

	if _, err := NewEngine(EngineConfig{Calculator: calc, Weights: scoring.DefaultWeights()}); err == nil {
		t.Error("NewEngine() without store succeeded, want error")
	}
	if _, err := NewEngine(EngineConfig{Store: st, Weights: scoring.DefaultWeights()}); err == nil {
		t.Error("NewEngine() without calculator succeeded, want error")
	}
	_, err := NewEngine(EngineConfig{Store: st, Calculator: calc, Weights: scoring.Weights{Accuracy: 2}})
	if !errors.Is(err, scoring.ErrInvalidWeights) {
		t.Errorf("NewEngine() error = %v, want ErrInvalidWeights", err)
	}
}

func TestComputeAllAndLeaderboard(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore(testLogger())
	engine := newTestEngine(t, st)

	seedModel(t, st, "strong", "", 4, 4)
	seedModel(t, st, "weak", "", 4, 1)

	snapshots, err := engine.ComputeAll(ctx, "", testAsOf)
	if err != nil {
		t.Fatalf("ComputeAll() error = %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("len(snapshots) = %d, want 2", len(snapshots))
	}

	entries, err := engine.Leaderboard(ctx, "", 0)
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].ModelName != "strong" || entries[0].Rank != 1 {
		t.Errorf("entries[0] = %s rank %d, want strong rank 1", entries[0].ModelName, entries[0].Rank)
	}
	if entries[1].ModelName != "weak" || entries[1].Rank != 2 {
		t.Errorf("entries[1] = %s rank %d, want weak rank 2", entries[1].ModelName, entries[1].Rank)
	}
	if entries[0].TrustScore <= entries[1].TrustScore {
		t.Errorf("scores not descending: %v <= %v", entries[0].TrustScore, entries[1].TrustScore)
	}
}

func TestLeaderboardTieBreaks(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore(testLogger())
	engine := newTestEngine(t, st)

	// Identical scores, different volume: more predictions ranks first.
	snaps := []scoring.Snapshot{
		{ModelName: "busy", TrustScore: 0.5, TotalPredictions: 10, CalculationDate: testAsOf},
		{ModelName: "quiet", TrustScore: 0.5, TotalPredictions: 2, CalculationDate: testAsOf},
		{ModelName: "alpha", TrustScore: 0.5, TotalPredictions: 2, CalculationDate: testAsOf},
	}
	if err := st.AppendSnapshots(ctx, snaps); err != nil {
		t.Fatalf("AppendSnapshots() error = %v", err)
	}

	entries, err := engine.Leaderboard(ctx, "", 0)
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	got := []string{entries[0].ModelName, entries[1].ModelName, entries[2].ModelName}
	want := []string{"busy", "alpha", "quiet"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestLeaderboardUsesLatestSnapshotPerModel(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore(testLogger())
	engine := newTestEngine(t, st)

	day1 := testAsOf
	day2 := testAsOf.Add(24 * time.Hour)
	snaps := []scoring.Snapshot{
		{ModelName: "m1", TrustScore: 0.9, CalculationDate: day1},
		{ModelName: "m1", TrustScore: 0.2, CalculationDate: day2},
		{ModelName: "m2", TrustScore: 0.5, CalculationDate: day1},
	}
	if err := st.AppendSnapshots(ctx, snaps); err != nil {
		t.Fatalf("AppendSnapshots() error = %v", err)
	}

	entries, err := engine.Leaderboard(ctx, "", 0)
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2 (one row per model)", len(entries))
	}
	// m1's old high score must not be used.
	if entries[0].ModelName != "m2" {
		t.Errorf("entries[0] = %s, want m2", entries[0].ModelName)
	}
	if entries[1].ModelName != "m1" || entries[1].TrustScore != 0.2 {
		t.Errorf("entries[1] = %s/%v, want m1 at its latest 0.2", entries[1].ModelName, entries[1].TrustScore)
	}
}

func TestLeaderboardCategoryFallback(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore(testLogger())
	engine := newTestEngine(t, st)

	if err := st.AppendSnapshots(ctx, []scoring.Snapshot{
		{ModelName: "m1", TrustScore: 0.7, CalculationDate: testAsOf},
	}); err != nil {
		t.Fatalf("AppendSnapshots() error = %v", err)
	}

	// No "sports" snapshots exist, so the all-categories board is served.
	entries, err := engine.Leaderboard(ctx, "sports", 0)
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if len(entries) != 1 || entries[0].ModelName != "m1" {
		t.Errorf("entries = %+v, want fallback to all-categories board", entries)
	}
}

func TestLeaderboardCategoryIncludesOverallScope(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore(testLogger())
	engine := newTestEngine(t, st)

	// m2 has no sports snapshot; its overall snapshot must still place it
	// on the sports board.
	if err := st.AppendSnapshots(ctx, []scoring.Snapshot{
		{ModelName: "m1", Category: "sports", TrustScore: 0.9, CalculationDate: testAsOf},
		{ModelName: "m2", TrustScore: 0.8, CalculationDate: testAsOf},
	}); err != nil {
		t.Fatalf("AppendSnapshots() error = %v", err)
	}

	entries, err := engine.Leaderboard(ctx, "sports", 0)
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].ModelName != "m1" || entries[1].ModelName != "m2" {
		t.Errorf("order = [%s %s], want [m1 m2]", entries[0].ModelName, entries[1].ModelName)
	}
}

func TestLeaderboardCategorySnapshotWinsOnEqualDate(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore(testLogger())
	engine := newTestEngine(t, st)

	if err := st.AppendSnapshots(ctx, []scoring.Snapshot{
		{ModelName: "m1", TrustScore: 0.9, CalculationDate: testAsOf},
		{ModelName: "m1", Category: "sports", TrustScore: 0.6, CalculationDate: testAsOf},
	}); err != nil {
		t.Fatalf("AppendSnapshots() error = %v", err)
	}

	entries, err := engine.Leaderboard(ctx, "sports", 0)
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].Category != "sports" || entries[0].TrustScore != 0.6 {
		t.Errorf("entry = %+v, want same-date sports snapshot preferred", entries[0])
	}
}

func TestLeaderboardEmpty(t *testing.T) {
	st := store.NewInMemoryStore(testLogger())
	engine := newTestEngine(t, st)

	_, err := engine.Leaderboard(context.Background(), "", 0)
	if !errors.Is(err, ErrNoSnapshots) {
		t.Errorf("Leaderboard() error = %v, want ErrNoSnapshots", err)
	}
}

func TestLeaderboardLimit(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore(testLogger())
	engine := newTestEngine(t, st)

	for _, m := range []string{"a", "b", "c"} {
		if err := st.AppendSnapshots(ctx, []scoring.Snapshot{
			{ModelName: m, TrustScore: 0.5, CalculationDate: testAsOf},
		}); err != nil {
			t.Fatalf("AppendSnapshots() error = %v", err)
		}
	}

	entries, err := engine.Leaderboard(ctx, "", 2)
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("len = %d, want 2", len(entries))
	}
}

func TestUpdateWeights(t *testing.T) {
	st := store.NewInMemoryStore(testLogger())
	engine := newTestEngine(t, st)

	bad := scoring.Weights{Accuracy: 0.9, Calibration: 0.9}
	if err := engine.UpdateWeights(bad); !errors.Is(err, scoring.ErrInvalidWeights) {
		t.Errorf("UpdateWeights(bad) error = %v, want ErrInvalidWeights", err)
	}
	if engine.Weights() != scoring.DefaultWeights() {
		t.Errorf("weights changed after rejected update: %+v", engine.Weights())
	}

	uniform := scoring.Weights{Accuracy: 0.25, Calibration: 0.25, Confidence: 0.25, Recency: 0.25}
	if err := engine.UpdateWeights(uniform); err != nil {
		t.Fatalf("UpdateWeights() error = %v", err)
	}
	if engine.Weights() != uniform {
		t.Errorf("weights = %+v, want %+v", engine.Weights(), uniform)
	}
}

func TestUpdateWeightsDoesNotRewriteHistory(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore(testLogger())
	engine := newTestEngine(t, st)

	seedModel(t, st, "m1", "", 2, 1)
	if _, err := engine.ComputeAll(ctx, "", testAsOf); err != nil {
		t.Fatalf("ComputeAll() error = %v", err)
	}

	uniform := scoring.Weights{Accuracy: 0.25, Calibration: 0.25, Confidence: 0.25, Recency: 0.25}
	if err := engine.UpdateWeights(uniform); err != nil {
		t.Fatalf("UpdateWeights() error = %v", err)
	}
	if _, err := engine.ComputeAll(ctx, "", testAsOf.Add(24*time.Hour)); err != nil {
		t.Fatalf("ComputeAll() error = %v", err)
	}

	history, err := st.SnapshotHistory(ctx, "m1", "", 0)
	if err != nil {
		t.Fatalf("SnapshotHistory() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(history))
	}
	if history[0].WeightsUsed != uniform {
		t.Errorf("newest WeightsUsed = %+v, want %+v", history[0].WeightsUsed, uniform)
	}
	if history[1].WeightsUsed != scoring.DefaultWeights() {
		t.Errorf("old WeightsUsed = %+v, want the weights in force at compute time", history[1].WeightsUsed)
	}
}

// failingStore wraps a store and fails prediction loads for one model.
type failingStore struct {
	store.Store
	failModel string
}

func (f *failingStore) GetPredictions(ctx context.Context, modelName, category string) ([]scoring.PredictionRecord, error) {
	if modelName == f.failModel {
		return nil, errors.New("storage unavailable")
	}
	return f.Store.GetPredictions(ctx, modelName, category)
}

func TestComputeAllIsolatesModelFailures(t *testing.T) {
	ctx := context.Background()
	mem := store.NewInMemoryStore(testLogger())
	seedModel(t, mem, "good", "", 2, 2)
	seedModel(t, mem, "broken", "", 2, 2)

	engine := newTestEngine(t, &failingStore{Store: mem, failModel: "broken"})

	snapshots, err := engine.ComputeAll(ctx, "", testAsOf)
	if err == nil {
		t.Fatal("ComputeAll() error = nil, want joined failure for broken model")
	}
	if len(snapshots) != 1 || snapshots[0].ModelName != "good" {
		t.Fatalf("snapshots = %+v, want only the good model", snapshots)
	}

	// The good model's snapshot must still have been persisted.
	history, err := mem.SnapshotHistory(ctx, "good", "", 0)
	if err != nil {
		t.Fatalf("SnapshotHistory() error = %v", err)
	}
	if len(history) != 1 {
		t.Errorf("len(history) = %d, want 1", len(history))
	}
}

func TestComputeModelWithNoPredictionsYieldsSentinel(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore(testLogger())
	engine := newTestEngine(t, st)

	snap, err := engine.ComputeModel(ctx, "newcomer", "", testAsOf)
	if err != nil {
		t.Fatalf("ComputeModel() error = %v", err)
	}
	if snap.TrustScore != 0 || snap.TotalPredictions != 0 || snap.BrierScore != 1.0 {
		t.Errorf("sentinel snapshot = %+v", snap)
	}

	got, err := engine.LatestSnapshot(ctx, "newcomer", "")
	if err != nil {
		t.Fatalf("LatestSnapshot() error = %v", err)
	}
	if got.ModelName != "newcomer" {
		t.Errorf("LatestSnapshot() = %+v, want persisted sentinel", got)
	}
}

func TestEntryJSONKeepsRank(t *testing.T) {
	entry := Entry{
		Rank: 3,
		Snapshot: scoring.Snapshot{
			ModelName:  "oracle",
			TrustScore: 0.75,
			LogLoss:    0.4,
		},
	}

	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded Entry
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Rank != 3 {
		t.Errorf("Rank = %d, want 3", decoded.Rank)
	}
	if decoded.ModelName != "oracle" || decoded.TrustScore != 0.75 {
		t.Errorf("snapshot fields lost in round trip: %+v", decoded)
	}
}
