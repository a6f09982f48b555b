package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/trustswarm/prophetrank/internal/store"
)

// Summary reports the outcome of one import run.
type Summary struct {
	Events      int `json:"events"`
	Predictions int `json:"predictions"`
	Duplicates  int `json:"duplicates"`
	Skipped     int `json:"skipped"`
}

// Importer loads event documents into the prediction store. Documents that
// fail to map are skipped and counted, one bad record does not abort the run.
type Importer struct {
	store  store.PredictionStore
	logger *slog.Logger
}

// NewImporter creates an Importer.
func NewImporter(st store.PredictionStore, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: st, logger: logger}
}

// ImportFile imports a JSON file containing an array of event documents.
func (i *Importer) ImportFile(ctx context.Context, path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	return i.Import(ctx, f)
}

// Import reads an array of event documents and saves the events and their
// predictions. Replayed predictions are skipped as duplicates, so importing
// the same file twice is harmless.
func (i *Importer) Import(ctx context.Context, r io.Reader) (Summary, error) {
	var docs []EventDocument
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return Summary{}, fmt.Errorf("decode import data: %w", err)
	}

	var summary Summary
	for _, doc := range docs {
		event, err := mapEvent(doc)
		if err != nil {
			i.logger.Warn("skipping unmappable event", "event_id", doc.EventID, "error", err)
			summary.Skipped++
			continue
		}
		if err := i.store.SaveEvent(ctx, event); err != nil {
			return summary, fmt.Errorf("save event %s: %w", event.EventID, err)
		}
		summary.Events++

		for _, p := range doc.Predictions {
			record, err := mapPrediction(p, event)
			if err != nil {
				i.logger.Warn("skipping unmappable prediction",
					"event_id", event.EventID,
					"model_name", p.ModelName,
					"error", err)
				summary.Skipped++
				continue
			}
			err = i.store.SavePrediction(ctx, record)
			if errors.Is(err, store.ErrDuplicatePrediction) {
				summary.Duplicates++
				continue
			}
			if err != nil {
				return summary, fmt.Errorf("save prediction %s/%s: %w", record.ModelName, record.EventID, err)
			}
			summary.Predictions++
		}
	}

	i.logger.Info("import complete",
		"events", summary.Events,
		"predictions", summary.Predictions,
		"duplicates", summary.Duplicates,
		"skipped", summary.Skipped)
	return summary, nil
}
