package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/trustswarm/prophetrank/internal/store"
)

func TestRecomputeJobStartStop(t *testing.T) {
	st := store.NewInMemoryStore(testLogger())
	engine := newTestEngine(t, st)

	job := NewRecomputeJob(RecomputeJobConfig{
		Interval: time.Hour,
		Logger:   testLogger(),
	}, engine)

	if job.IsRunning() {
		t.Error("job running before Start")
	}
	if err := job.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !job.IsRunning() {
		t.Error("job not running after Start")
	}

	// Second Start is a no-op.
	if err := job.Start(context.Background()); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	job.Stop()
	if job.IsRunning() {
		t.Error("job still running after Stop")
	}

	// Second Stop is a no-op.
	job.Stop()
}

func TestRecomputeNow(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore(testLogger())
	engine := newTestEngine(t, st)

	seedModel(t, st, "m1", "politics", 3, 2)

	metrics := NewMetrics()
	job := NewRecomputeJob(RecomputeJobConfig{
		Categories: []string{"politics"},
		Logger:     testLogger(),
		Metrics:    metrics,
	}, engine)

	job.RecomputeNow()

	// One snapshot in the all-categories scope and one in politics.
	overall, err := st.SnapshotHistory(ctx, "m1", "", 0)
	if err != nil {
		t.Fatalf("SnapshotHistory() error = %v", err)
	}
	if len(overall) != 1 {
		t.Errorf("overall snapshots = %d, want 1", len(overall))
	}

	scoped, err := st.SnapshotHistory(ctx, "m1", "politics", 0)
	if err != nil {
		t.Fatalf("SnapshotHistory() error = %v", err)
	}
	if len(scoped) != 1 {
		t.Errorf("politics snapshots = %d, want 1", len(scoped))
	}
	if scoped[0].TotalPredictions != 3 || scoped[0].CorrectPredictions != 2 {
		t.Errorf("politics snapshot counts = %d/%d, want 2/3",
			scoped[0].CorrectPredictions, scoped[0].TotalPredictions)
	}
}

func TestRecomputeJobStopsOnContextCancel(t *testing.T) {
	st := store.NewInMemoryStore(testLogger())
	engine := newTestEngine(t, st)

	job := NewRecomputeJob(RecomputeJobConfig{
		Interval: time.Millisecond,
		Logger:   testLogger(),
	}, engine)

	ctx, cancel := context.WithCancel(context.Background())
	if err := job.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	// The run loop exits on its own; Stop must not hang.
	done := make(chan struct{})
	go func() {
		job.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() did not return after context cancellation")
	}
}
