package leaderboard

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultRecomputeInterval is the default interval between computation runs.
const DefaultRecomputeInterval = 15 * time.Minute

// DefaultRecomputeTimeout is the default timeout for a single run.
const DefaultRecomputeTimeout = 2 * time.Minute

// RecomputeJobConfig configures the periodic trust recompute job.
type RecomputeJobConfig struct {
	// Interval is the duration between computation runs.
	Interval time.Duration
	// Timeout bounds each run.
	Timeout time.Duration
	// Categories to compute in addition to the all-categories scope.
	Categories []string
	// Logger for job activity.
	Logger *slog.Logger
	// Metrics for run tracking. May be nil.
	Metrics *Metrics
	// Cache is refreshed with the new leaderboard after each run. May be nil.
	Cache RankCache
}

// RecomputeJob periodically recomputes trust scores for all models and
// refreshes the leaderboard cache.
type RecomputeJob struct {
	config RecomputeJobConfig
	engine *Engine

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRecomputeJob creates a recompute job over an engine.
func NewRecomputeJob(config RecomputeJobConfig, engine *Engine) *RecomputeJob {
	if config.Interval == 0 {
		config.Interval = DefaultRecomputeInterval
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultRecomputeTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &RecomputeJob{
		config: config,
		engine: engine,
	}
}

// Start begins the periodic job. Returns immediately; the job runs in a
// background goroutine.
func (j *RecomputeJob) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	go j.run(ctx)
	return nil
}

// Stop signals the job to stop and waits for it to finish.
func (j *RecomputeJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	stopCh := j.stopCh
	doneCh := j.doneCh
	j.mu.Unlock()

	close(stopCh)
	<-doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()
}

// IsRunning returns whether the job is currently running.
func (j *RecomputeJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// run is the main loop for the job.
func (j *RecomputeJob) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.config.Logger.Info("trust recompute job stopping due to context cancellation")
			return
		case <-j.stopCh:
			j.config.Logger.Info("trust recompute job stopping due to stop signal")
			return
		case <-ticker.C:
			j.recompute(ctx)
		}
	}
}

// recompute runs one full computation pass over every configured scope and
// refreshes the leaderboard cache.
func (j *RecomputeJob) recompute(parentCtx context.Context) {
	ctx, cancel := context.WithTimeout(parentCtx, j.config.Timeout)
	defer cancel()

	startTime := time.Now()
	asOf := startTime.UTC()
	var scored, failed int

	scopes := append([]string{""}, j.config.Categories...)
	for _, category := range scopes {
		snapshots, err := j.engine.ComputeAll(ctx, category, asOf)
		scored += len(snapshots)
		if err != nil {
			failed++
			j.config.Logger.Error("trust computation run had failures",
				"category", category,
				"error", err)
			if j.config.Metrics != nil {
				j.config.Metrics.IncComputeErrors()
			}
		}
		if ctx.Err() != nil {
			j.config.Logger.Error("trust recompute timeout exceeded",
				"timeout", j.config.Timeout)
			break
		}
	}

	j.refreshCache(ctx)

	duration := time.Since(startTime).Seconds()
	if j.config.Metrics != nil {
		j.config.Metrics.IncComputeRunsTotal()
		j.config.Metrics.ObserveComputeDuration(duration)
		j.config.Metrics.SetLastComputeTimestamp(float64(time.Now().Unix()))
		j.config.Metrics.SetLastComputeModelCount(float64(scored))
	}

	j.config.Logger.Info("trust recompute completed",
		"duration_seconds", duration,
		"models_scored", scored,
		"scopes_failed", failed)
}

// refreshCache pushes the current all-categories leaderboard into the rank
// cache. Cache failures are logged and otherwise ignored; the database
// remains the source of truth.
func (j *RecomputeJob) refreshCache(ctx context.Context) {
	if j.config.Cache == nil {
		return
	}
	entries, err := j.engine.Leaderboard(ctx, "", 0)
	if err != nil {
		if err != ErrNoSnapshots {
			j.config.Logger.Warn("failed to build leaderboard for cache refresh",
				"error", err)
		}
		return
	}
	if err := j.config.Cache.Refresh(ctx, entries); err != nil {
		j.config.Logger.Warn("failed to refresh leaderboard cache",
			"error", err)
	}
}

// RecomputeNow immediately runs one computation pass without waiting for the
// ticker. Useful for testing or forcing updates.
func (j *RecomputeJob) RecomputeNow() {
	j.recompute(context.Background())
}
