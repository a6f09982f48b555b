package scoring

import "math"

// logLossEpsilon clips probabilities away from 0 and 1 before taking logs,
// so a single hard-wrong prediction yields a large finite penalty instead of
// an infinite one.
const logLossEpsilon = 1e-15

// DefaultCalibrationBins is the number of equal-width probability bins used
// by the reliability diagram behind CalibrationScore.
const DefaultCalibrationBins = 10

// BrierScore returns the mean squared error between stated probabilities and
// binary outcomes. 0 is perfect, 1 is maximally wrong. With no records it
// returns 1.0, the worst-case sentinel.
func BrierScore(records []PredictionRecord) float64 {
	if len(records) == 0 {
		return 1.0
	}
	var sum float64
	for _, r := range records {
		y := 0.0
		if r.Correct {
			y = 1.0
		}
		d := clampProbability(r.Probability) - y
		sum += d * d
	}
	return sum / float64(len(records))
}

// LogLoss returns the mean negative log likelihood of the outcomes under the
// stated probabilities. Lower is better. With no records it returns +Inf,
// which callers must map to null on JSON boundaries.
func LogLoss(records []PredictionRecord) float64 {
	if len(records) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for _, r := range records {
		p := clampProbability(r.Probability)
		if p < logLossEpsilon {
			p = logLossEpsilon
		} else if p > 1-logLossEpsilon {
			p = 1 - logLossEpsilon
		}
		if r.Correct {
			sum += -math.Log(p)
		} else {
			sum += -math.Log(1 - p)
		}
	}
	return sum / float64(len(records))
}

// CalibrationScore measures how well stated probabilities match observed
// frequencies, via a reliability diagram with bins equal-width probability
// bins. Each non-empty bin contributes |empirical accuracy - mean predicted
// probability| weighted by its share of the records; the score is
// 1 - weighted error, floored at 0. A perfectly calibrated model scores 1.0
// even if its accuracy is low. With no records it returns 0.0.
//
// The last bin is closed on both ends so that probability 1.0 lands in it
// rather than overflowing.
func CalibrationScore(records []PredictionRecord, bins int) float64 {
	if len(records) == 0 {
		return 0.0
	}
	if bins <= 0 {
		bins = DefaultCalibrationBins
	}

	counts := make([]int, bins)
	probSums := make([]float64, bins)
	hitCounts := make([]int, bins)
	for _, r := range records {
		p := clampProbability(r.Probability)
		idx := int(p * float64(bins))
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
		probSums[idx] += p
		if r.Correct {
			hitCounts[idx]++
		}
	}

	total := float64(len(records))
	var weightedErr float64
	for i := 0; i < bins; i++ {
		if counts[i] == 0 {
			continue
		}
		n := float64(counts[i])
		empirical := float64(hitCounts[i]) / n
		predicted := probSums[i] / n
		weightedErr += (n / total) * math.Abs(empirical-predicted)
	}

	score := 1.0 - weightedErr
	if score < 0 {
		score = 0
	}
	return score
}

// clampProbability forces a probability into [0, 1]. NaN maps to 0.
func clampProbability(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
