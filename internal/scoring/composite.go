package scoring

import (
	"fmt"
	"log/slog"
	"math"
	"time"
)

// AnomalyRecorder receives data-quality anomalies observed during scoring,
// such as out-of-range probabilities. Implementations must be safe for
// concurrent use; the job metrics counter satisfies this.
type AnomalyRecorder interface {
	RecordAnomaly(kind string)
}

// CalculatorConfig carries the tunables and dependencies of a Calculator.
// Zero values fall back to the defaults, so CalculatorConfig{} is usable.
type CalculatorConfig struct {
	CalibrationBins int
	RecencyWindow   time.Duration
	Logger          *slog.Logger
	Anomalies       AnomalyRecorder
}

// Calculator turns a model's prediction history into trust snapshots.
// It is stateless apart from its configuration and safe for concurrent use.
type Calculator struct {
	bins      int
	window    time.Duration
	logger    *slog.Logger
	anomalies AnomalyRecorder
}

// NewCalculator builds a Calculator from cfg, applying defaults for unset
// fields.
func NewCalculator(cfg CalculatorConfig) *Calculator {
	bins := cfg.CalibrationBins
	if bins <= 0 {
		bins = DefaultCalibrationBins
	}
	window := cfg.RecencyWindow
	if window <= 0 {
		window = DefaultRecencyWindow
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{
		bins:      bins,
		window:    window,
		logger:    logger,
		anomalies: cfg.Anomalies,
	}
}

// Compute calculates all trust metrics for one model (optionally restricted
// to one category) from its resolved predictions, as of the given time.
// An empty record slice is not an error: it yields the sentinel snapshot
// with every score at zero, Brier at 1.0 and log loss at +Inf, so that a
// model with no history appears at the bottom of rankings instead of
// vanishing. The only error is an invalid weight set.
func (c *Calculator) Compute(modelName, category string, records []PredictionRecord, weights Weights, asOf time.Time) (Snapshot, error) {
	if err := weights.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("compute trust for %s: %w", modelName, err)
	}

	if len(records) == 0 {
		return Snapshot{
			ModelName:       modelName,
			Category:        category,
			BrierScore:      1.0,
			LogLoss:         math.Inf(1),
			CalculationDate: asOf,
			WeightsUsed:     weights,
		}, nil
	}

	records = c.sanitize(modelName, records)

	var (
		correct       int
		confidenceSum float64
		weightedHit   float64
		weightedTotal float64
	)
	for _, r := range records {
		if r.Correct {
			correct++
		}
		confidenceSum += r.Confidence
		weightedTotal += r.Confidence
		if r.Correct {
			weightedHit += r.Confidence
		}
	}

	total := len(records)
	accuracy := float64(correct) / float64(total)
	confidence := confidenceSum / float64(total)

	// Diagnostic only: confidence-weighted accuracy never feeds the
	// composite. Falls back to plain accuracy when every confidence is zero.
	weightedAccuracy := accuracy
	if weightedTotal > 0 {
		weightedAccuracy = weightedHit / weightedTotal
	}

	calibration := CalibrationScore(records, c.bins)
	recency := RecencyScore(records, c.window, asOf)

	trust := weights.Accuracy*accuracy +
		weights.Calibration*calibration +
		weights.Confidence*confidence +
		weights.Recency*recency

	return Snapshot{
		ModelName:          modelName,
		Category:           category,
		TrustScore:         trust,
		Accuracy:           accuracy,
		CalibrationScore:   calibration,
		ConfidenceScore:    confidence,
		RecencyScore:       recency,
		BrierScore:         BrierScore(records),
		LogLoss:            LogLoss(records),
		WeightedAccuracy:   weightedAccuracy,
		TotalPredictions:   total,
		CorrectPredictions: correct,
		CalculationDate:    asOf,
		WeightsUsed:        weights,
	}, nil
}

// sanitize clamps out-of-range probabilities and confidences, logging and
// counting each occurrence. It copies the slice before the first repair so
// callers never see their inputs mutated.
func (c *Calculator) sanitize(modelName string, records []PredictionRecord) []PredictionRecord {
	repaired := records
	copied := false
	for i, r := range records {
		p := clampProbability(r.Probability)
		conf := clampProbability(r.Confidence)
		if p == r.Probability && conf == r.Confidence {
			continue
		}
		if !copied {
			repaired = make([]PredictionRecord, len(records))
			copy(repaired, records)
			copied = true
		}
		c.logger.Warn("clamped out-of-range prediction values",
			"model", modelName,
			"event_id", r.EventID,
			"probability", r.Probability,
			"confidence", r.Confidence,
		)
		if c.anomalies != nil {
			c.anomalies.RecordAnomaly("out_of_range_probability")
		}
		repaired[i].Probability = p
		repaired[i].Confidence = conf
	}
	return repaired
}
