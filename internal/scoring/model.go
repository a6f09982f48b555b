// Package scoring computes trust metrics for forecasting models from their
// history of probabilistic predictions against resolved events.
package scoring

import (
	"encoding/json"
	"errors"
	"math"
	"time"
)

// Validation errors for record and event construction.
var (
	ErrMissingModelName  = errors.New("model name is required")
	ErrMissingEventID    = errors.New("event ID is required")
	ErrUnresolvedOutcome = errors.New("resolved outcome must be one of the event options")
)

// PredictionRecord is one model's probability estimate for one option of a
// resolved event, joined with the event fields the scoring engine needs.
// Records are read-only inputs: the engine never mutates stored predictions.
type PredictionRecord struct {
	ModelName       string    `json:"model_name"`
	EventID         string    `json:"event_id"`
	PredictedOption string    `json:"predicted_option"`
	Probability     float64   `json:"probability"`
	Correct         bool      `json:"is_correct"`
	Confidence      float64   `json:"confidence_score"`
	CreatedAt       time.Time `json:"created_at"`

	// Joined from the resolved event.
	Category     string    `json:"category,omitempty"`
	ResolvedDate time.Time `json:"resolved_date,omitempty"`
}

// Validate checks the identifying fields of a prediction record.
// Out-of-range probabilities are not an error here: they are clamped at
// computation time and counted as a data-quality anomaly instead, so one
// malformed record never blocks scoring of the rest.
func (r *PredictionRecord) Validate() error {
	if r.ModelName == "" {
		return ErrMissingModelName
	}
	if r.EventID == "" {
		return ErrMissingEventID
	}
	return nil
}

// Event is a resolved real-world question. Events are created by the
// ingestion boundary once the outcome is known and are immutable from the
// engine's point of view.
type Event struct {
	EventID         string    `json:"event_id"`
	Category        string    `json:"category,omitempty"`
	Options         []string  `json:"options"`
	ResolvedOutcome string    `json:"resolved_outcome"`
	ResolvedDate    time.Time `json:"resolved_date"`
}

// Validate checks that the event is well formed: it has an ID and its
// resolved outcome is a member of the option set.
func (e *Event) Validate() error {
	if e.EventID == "" {
		return ErrMissingEventID
	}
	for _, opt := range e.Options {
		if opt == e.ResolvedOutcome {
			return nil
		}
	}
	return ErrUnresolvedOutcome
}

// Snapshot is an immutable, timestamped record of the computed trust metrics
// for one model, optionally restricted to one category. An empty Category
// means "all categories combined". Recomputation appends a new snapshot; a
// persisted snapshot is never mutated. The "current" snapshot for a
// (model, category) key is the one with the greatest CalculationDate.
type Snapshot struct {
	ModelName          string    `json:"model_name"`
	Category           string    `json:"category,omitempty"`
	TrustScore         float64   `json:"trust_score"`
	Accuracy           float64   `json:"accuracy"`
	CalibrationScore   float64   `json:"calibration_score"`
	ConfidenceScore    float64   `json:"confidence_score"`
	RecencyScore       float64   `json:"recency_score"`
	BrierScore         float64   `json:"brier_score"`
	LogLoss            float64   `json:"log_loss"`
	WeightedAccuracy   float64   `json:"weighted_accuracy"`
	TotalPredictions   int       `json:"total_predictions"`
	CorrectPredictions int       `json:"correct_predictions"`
	CalculationDate    time.Time `json:"calculation_date"`
	WeightsUsed        Weights   `json:"weights_used"`
}

// Key returns the (model, category) identity of the snapshot. Snapshots with
// the same key form the trust history of that model/category pair.
func (s *Snapshot) Key() string {
	return s.ModelName + "\x00" + s.Category
}

// snapshotJSON mirrors Snapshot with a nullable log loss so that the
// +Inf sentinel for "no predictions" survives JSON encoding (encoding/json
// rejects infinities).
type snapshotJSON struct {
	ModelName          string    `json:"model_name"`
	Category           string    `json:"category,omitempty"`
	TrustScore         float64   `json:"trust_score"`
	Accuracy           float64   `json:"accuracy"`
	CalibrationScore   float64   `json:"calibration_score"`
	ConfidenceScore    float64   `json:"confidence_score"`
	RecencyScore       float64   `json:"recency_score"`
	BrierScore         float64   `json:"brier_score"`
	LogLoss            *float64  `json:"log_loss"`
	WeightedAccuracy   float64   `json:"weighted_accuracy"`
	TotalPredictions   int       `json:"total_predictions"`
	CorrectPredictions int       `json:"correct_predictions"`
	CalculationDate    time.Time `json:"calculation_date"`
	WeightsUsed        Weights   `json:"weights_used"`
}

// MarshalJSON encodes the snapshot, emitting null for an infinite log loss.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := snapshotJSON{
		ModelName:          s.ModelName,
		Category:           s.Category,
		TrustScore:         s.TrustScore,
		Accuracy:           s.Accuracy,
		CalibrationScore:   s.CalibrationScore,
		ConfidenceScore:    s.ConfidenceScore,
		RecencyScore:       s.RecencyScore,
		BrierScore:         s.BrierScore,
		WeightedAccuracy:   s.WeightedAccuracy,
		TotalPredictions:   s.TotalPredictions,
		CorrectPredictions: s.CorrectPredictions,
		CalculationDate:    s.CalculationDate,
		WeightsUsed:        s.WeightsUsed,
	}
	if !math.IsInf(s.LogLoss, 0) {
		ll := s.LogLoss
		out.LogLoss = &ll
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a snapshot, mapping a null log loss back to +Inf.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var in snapshotJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	s.ModelName = in.ModelName
	s.Category = in.Category
	s.TrustScore = in.TrustScore
	s.Accuracy = in.Accuracy
	s.CalibrationScore = in.CalibrationScore
	s.ConfidenceScore = in.ConfidenceScore
	s.RecencyScore = in.RecencyScore
	s.BrierScore = in.BrierScore
	s.WeightedAccuracy = in.WeightedAccuracy
	s.TotalPredictions = in.TotalPredictions
	s.CorrectPredictions = in.CorrectPredictions
	s.CalculationDate = in.CalculationDate
	s.WeightsUsed = in.WeightsUsed
	if in.LogLoss != nil {
		s.LogLoss = *in.LogLoss
	} else {
		s.LogLoss = math.Inf(1)
	}
	return nil
}
