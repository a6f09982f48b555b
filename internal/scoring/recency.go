package scoring

import (
	"math"
	"time"
)

// DefaultRecencyWindow bounds how far back the recency score looks.
const DefaultRecencyWindow = 30 * 24 * time.Hour

// RecencyScore measures recent-window accuracy with exponential decay:
// records created within window of asOf are weighted exp(-age/window) and
// the score is the weighted mean of their correctness. A model that has been
// right lately scores near its recent hit rate; one with no activity in the
// window scores 0.0.
func RecencyScore(records []PredictionRecord, window time.Duration, asOf time.Time) float64 {
	if window <= 0 {
		window = DefaultRecencyWindow
	}
	cutoff := asOf.Add(-window)

	var weightSum, hitSum float64
	for _, r := range records {
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		age := asOf.Sub(r.CreatedAt)
		if age < 0 {
			age = 0
		}
		w := math.Exp(-age.Seconds() / window.Seconds())
		weightSum += w
		if r.Correct {
			hitSum += w
		}
	}
	if weightSum == 0 {
		return 0.0
	}
	return hitSum / weightSum
}
