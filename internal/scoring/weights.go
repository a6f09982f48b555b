package scoring

import (
	"errors"
	"fmt"
	"math"
)

// WeightTolerance is the allowed deviation of the weight sum from 1.0.
// Weights outside the tolerance are rejected, never silently renormalized.
const WeightTolerance = 1e-6

// ErrInvalidWeights is returned when a weight set fails validation.
var ErrInvalidWeights = errors.New("invalid weight configuration")

// Weights controls the linear combination of component scores into the
// composite trust score. Each weight must be in [0, 1] and the four must
// sum to 1.0 within WeightTolerance.
type Weights struct {
	Accuracy    float64 `json:"accuracy" koanf:"accuracy"`
	Calibration float64 `json:"calibration" koanf:"calibration"`
	Confidence  float64 `json:"confidence" koanf:"confidence"`
	Recency     float64 `json:"recency" koanf:"recency"`
}

// DefaultWeights returns the standard weighting: accuracy dominates, with
// calibration, confidence and recency contributing in decreasing order.
func DefaultWeights() Weights {
	return Weights{
		Accuracy:    0.4,
		Calibration: 0.3,
		Confidence:  0.2,
		Recency:     0.1,
	}
}

// Validate checks that every weight lies in [0, 1] and that the sum is
// within WeightTolerance of 1.0.
func (w Weights) Validate() error {
	for _, c := range []struct {
		name string
		val  float64
	}{
		{"accuracy", w.Accuracy},
		{"calibration", w.Calibration},
		{"confidence", w.Confidence},
		{"recency", w.Recency},
	} {
		if math.IsNaN(c.val) || c.val < 0 || c.val > 1 {
			return fmt.Errorf("%w: %s weight %v out of range [0, 1]", ErrInvalidWeights, c.name, c.val)
		}
	}
	sum := w.Accuracy + w.Calibration + w.Confidence + w.Recency
	if math.Abs(sum-1.0) > WeightTolerance {
		return fmt.Errorf("%w: weights sum to %v, want 1.0 within %v", ErrInvalidWeights, sum, WeightTolerance)
	}
	return nil
}

// weightKeys is the exact key set a weight map must carry.
var weightKeys = []string{"accuracy", "calibration", "confidence", "recency"}

// WeightsFromMap builds a validated weight set from a string-keyed map, as
// delivered by the weight update API. Missing or unknown keys are rejected so
// a typo cannot silently zero a component.
func WeightsFromMap(m map[string]float64) (Weights, error) {
	for k := range m {
		known := false
		for _, want := range weightKeys {
			if k == want {
				known = true
				break
			}
		}
		if !known {
			return Weights{}, fmt.Errorf("%w: unknown weight key %q", ErrInvalidWeights, k)
		}
	}
	for _, want := range weightKeys {
		if _, ok := m[want]; !ok {
			return Weights{}, fmt.Errorf("%w: missing weight key %q", ErrInvalidWeights, want)
		}
	}
	w := Weights{
		Accuracy:    m["accuracy"],
		Calibration: m["calibration"],
		Confidence:  m["confidence"],
		Recency:     m["recency"],
	}
	if err := w.Validate(); err != nil {
		return Weights{}, err
	}
	return w, nil
}

// Map returns the weights as a string-keyed map, the inverse of
// WeightsFromMap. Used by API responses and exports.
func (w Weights) Map() map[string]float64 {
	return map[string]float64{
		"accuracy":    w.Accuracy,
		"calibration": w.Calibration,
		"confidence":  w.Confidence,
		"recency":     w.Recency,
	}
}
