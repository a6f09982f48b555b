// Package ingest loads scraped prediction-market documents into the store.
package ingest

import (
	"errors"
	"fmt"
	"time"

	"github.com/trustswarm/prophetrank/internal/scoring"
	"github.com/trustswarm/prophetrank/internal/validate"
)

// Mapper errors
var (
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidFieldValue    = errors.New("invalid field value")
)

// EventDocument is the wire structure of one scraped market event with the
// model predictions recorded against it.
type EventDocument struct {
	EventID         string               `json:"event_id"`
	EventTitle      string               `json:"event_title,omitempty"`
	Category        string               `json:"category,omitempty"`
	EventDate       string               `json:"event_date,omitempty"`
	ResolvedDate    string               `json:"resolved_date"`
	ResolvedOutcome string               `json:"resolved_outcome"`
	Options         []string             `json:"options"`
	Predictions     []PredictionDocument `json:"predictions,omitempty"`
}

// PredictionDocument is the wire structure of one model prediction.
type PredictionDocument struct {
	ModelName       string  `json:"model_name"`
	PredictedOption string  `json:"predicted_option,omitempty"`
	Probability     float64 `json:"probability"`
	IsCorrect       bool    `json:"is_correct"`
	ConfidenceScore float64 `json:"confidence_score"`
	CreatedAt       string  `json:"created_at,omitempty"`
}

// mapEvent converts a wire document into a domain event.
func mapEvent(doc EventDocument) (*scoring.Event, error) {
	eventID, err := validate.EventID(doc.EventID)
	if err != nil {
		return nil, fmt.Errorf("%w: event_id: %v", ErrMissingRequiredField, err)
	}
	category, err := validate.Category(doc.Category)
	if err != nil {
		return nil, fmt.Errorf("%w: category: %v", ErrInvalidFieldValue, err)
	}
	if doc.ResolvedOutcome == "" {
		return nil, fmt.Errorf("%w: resolved_outcome", ErrMissingRequiredField)
	}
	if len(doc.Options) == 0 {
		return nil, fmt.Errorf("%w: options", ErrMissingRequiredField)
	}

	resolvedDate, err := parseTimestamp(doc.ResolvedDate)
	if err != nil {
		return nil, fmt.Errorf("%w: resolved_date: %v", ErrInvalidFieldValue, err)
	}

	event := &scoring.Event{
		EventID:         eventID,
		Category:        category,
		Options:         doc.Options,
		ResolvedOutcome: doc.ResolvedOutcome,
		ResolvedDate:    resolvedDate,
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return event, nil
}

// mapPrediction converts a wire prediction into a domain record. A missing
// created_at falls back to the event's resolved date so recency scoring has
// a usable timestamp.
func mapPrediction(doc PredictionDocument, event *scoring.Event) (*scoring.PredictionRecord, error) {
	modelName, err := validate.ModelName(doc.ModelName)
	if err != nil {
		return nil, fmt.Errorf("%w: model_name: %v", ErrMissingRequiredField, err)
	}

	createdAt := event.ResolvedDate
	if doc.CreatedAt != "" {
		parsed, err := parseTimestamp(doc.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: created_at: %v", ErrInvalidFieldValue, err)
		}
		createdAt = parsed
	}

	record := &scoring.PredictionRecord{
		ModelName:       modelName,
		EventID:         event.EventID,
		PredictedOption: doc.PredictedOption,
		Probability:     doc.Probability,
		Correct:         doc.IsCorrect,
		Confidence:      doc.ConfidenceScore,
		CreatedAt:       createdAt,
		Category:        event.Category,
		ResolvedDate:    event.ResolvedDate,
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}
	return record, nil
}

// parseTimestamp accepts RFC 3339 timestamps and bare dates, the two shapes
// the scrapers emit.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
