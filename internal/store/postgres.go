package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/trustswarm/prophetrank/internal/scoring"
)

// PostgresStore implements Store on PostgreSQL with transactional writes.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a PostgresStore over an open connection pool.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// SaveEvent upserts a resolved event. Re-saving an event ID overwrites the
// resolution fields so late corrections propagate.
func (s *PostgresStore) SaveEvent(ctx context.Context, event *scoring.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("save event: %w", err)
	}

	query := `
		INSERT INTO events (event_id, category, options, resolved_outcome, resolved_date)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO UPDATE SET
			category = EXCLUDED.category,
			options = EXCLUDED.options,
			resolved_outcome = EXCLUDED.resolved_outcome,
			resolved_date = EXCLUDED.resolved_date
	`
	_, err := s.db.ExecContext(ctx, query,
		event.EventID, event.Category, pq.Array(event.Options),
		event.ResolvedOutcome, event.ResolvedDate)
	if err != nil {
		return fmt.Errorf("save event %s: %w", event.EventID, err)
	}
	return nil
}

// SavePrediction inserts one model's prediction for an existing event.
func (s *PostgresStore) SavePrediction(ctx context.Context, record *scoring.PredictionRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("save prediction: %w", err)
	}

	query := `
		INSERT INTO predictions (id, model_name, event_id, predicted_option, probability, is_correct, confidence_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.New().String(), record.ModelName, record.EventID,
		record.PredictedOption, record.Probability, record.Correct,
		record.Confidence, record.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return fmt.Errorf("save prediction %s/%s: %w", record.ModelName, record.EventID, ErrDuplicatePrediction)
			case "foreign_key_violation":
				return fmt.Errorf("save prediction for event %s: %w", record.EventID, ErrEventNotFound)
			}
		}
		return fmt.Errorf("save prediction %s/%s: %w", record.ModelName, record.EventID, err)
	}
	return nil
}

// GetPredictions returns a model's predictions joined with event fields,
// oldest first.
func (s *PostgresStore) GetPredictions(ctx context.Context, modelName, category string) ([]scoring.PredictionRecord, error) {
	query := `
		SELECT p.model_name, p.event_id, p.predicted_option, p.probability,
		       p.is_correct, p.confidence_score, p.created_at,
		       e.category, e.resolved_date
		FROM predictions p
		JOIN events e ON e.event_id = p.event_id
		WHERE p.model_name = $1
		  AND ($2 = '' OR e.category = $2)
		ORDER BY p.created_at ASC, p.event_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, modelName, category)
	if err != nil {
		return nil, fmt.Errorf("get predictions for %s: %w", modelName, err)
	}
	defer rows.Close()

	var out []scoring.PredictionRecord
	for rows.Next() {
		var r scoring.PredictionRecord
		if err := rows.Scan(&r.ModelName, &r.EventID, &r.PredictedOption,
			&r.Probability, &r.Correct, &r.Confidence, &r.CreatedAt,
			&r.Category, &r.ResolvedDate); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate predictions: %w", err)
	}
	return out, nil
}

// ListModelNames returns distinct model names sorted ascending.
func (s *PostgresStore) ListModelNames(ctx context.Context, category string) ([]string, error) {
	query := `
		SELECT DISTINCT p.model_name
		FROM predictions p
		JOIN events e ON e.event_id = p.event_id
		WHERE ($1 = '' OR e.category = $1)
		ORDER BY p.model_name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("list model names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan model name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate model names: %w", err)
	}
	return names, nil
}

// AppendSnapshots persists a batch atomically. Snapshots whose
// (model, category, calculation_date) key already exists are skipped via
// ON CONFLICT DO NOTHING, so replaying a run never errors or mutates history.
func (s *PostgresStore) AppendSnapshots(ctx context.Context, snapshots []scoring.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin snapshot transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			s.logger.Warn("failed to rollback snapshot transaction",
				slog.String("error", err.Error()))
		}
	}()

	query := `
		INSERT INTO trust_snapshots (
			id, model_name, category, trust_score, accuracy, calibration_score,
			confidence_score, recency_score, brier_score, log_loss,
			weighted_accuracy, total_predictions, correct_predictions,
			calculation_date, weights_used
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (model_name, category, calculation_date) DO NOTHING
	`
	for _, snap := range snapshots {
		weightsJSON, err := json.Marshal(snap.WeightsUsed)
		if err != nil {
			return fmt.Errorf("encode weights for %s: %w", snap.ModelName, err)
		}

		// +Inf log loss is stored as NULL; DOUBLE PRECISION rejects it.
		logLoss := sql.NullFloat64{Float64: snap.LogLoss, Valid: !math.IsInf(snap.LogLoss, 0)}

		_, err = tx.ExecContext(ctx, query,
			uuid.New().String(), snap.ModelName, snap.Category,
			snap.TrustScore, snap.Accuracy, snap.CalibrationScore,
			snap.ConfidenceScore, snap.RecencyScore, snap.BrierScore, logLoss,
			snap.WeightedAccuracy, snap.TotalPredictions, snap.CorrectPredictions,
			snap.CalculationDate, weightsJSON)
		if err != nil {
			return fmt.Errorf("insert snapshot %s/%s: %w", snap.ModelName, snap.Category, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot transaction: %w", err)
	}

	s.logger.Info("snapshots appended",
		slog.Int("count", len(snapshots)))
	return nil
}

const snapshotColumns = `
	model_name, category, trust_score, accuracy, calibration_score,
	confidence_score, recency_score, brier_score, log_loss,
	weighted_accuracy, total_predictions, correct_predictions,
	calculation_date, weights_used
`

// ListSnapshots returns all snapshots for a category, newest first.
func (s *PostgresStore) ListSnapshots(ctx context.Context, category string) ([]scoring.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM trust_snapshots
		WHERE category = $1
		ORDER BY calculation_date DESC, model_name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

// SnapshotHistory returns up to limit snapshots for a model and category,
// newest first.
func (s *PostgresStore) SnapshotHistory(ctx context.Context, modelName, category string, limit int) ([]scoring.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM trust_snapshots
		WHERE model_name = $1 AND category = $2
		ORDER BY calculation_date DESC
	`
	args := []any{modelName, category}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("snapshot history for %s: %w", modelName, err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

// Stats reports stored row counts for status endpoints.
func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM events),
			(SELECT COUNT(*) FROM predictions),
			(SELECT COUNT(*) FROM trust_snapshots),
			(SELECT COUNT(DISTINCT model_name) FROM predictions)
	`
	var st Stats
	err := s.db.QueryRowContext(ctx, query).Scan(&st.Events, &st.Predictions, &st.Snapshots, &st.Models)
	if err != nil {
		return Stats{}, fmt.Errorf("store stats: %w", err)
	}
	return st, nil
}

func scanSnapshots(rows *sql.Rows) ([]scoring.Snapshot, error) {
	var out []scoring.Snapshot
	for rows.Next() {
		var (
			snap        scoring.Snapshot
			logLoss     sql.NullFloat64
			weightsJSON []byte
		)
		if err := rows.Scan(&snap.ModelName, &snap.Category, &snap.TrustScore,
			&snap.Accuracy, &snap.CalibrationScore, &snap.ConfidenceScore,
			&snap.RecencyScore, &snap.BrierScore, &logLoss,
			&snap.WeightedAccuracy, &snap.TotalPredictions, &snap.CorrectPredictions,
			&snap.CalculationDate, &weightsJSON); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if logLoss.Valid {
			snap.LogLoss = logLoss.Float64
		} else {
			snap.LogLoss = math.Inf(1)
		}
		if len(weightsJSON) > 0 {
			if err := json.Unmarshal(weightsJSON, &snap.WeightsUsed); err != nil {
				return nil, fmt.Errorf("decode weights for %s: %w", snap.ModelName, err)
			}
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}
