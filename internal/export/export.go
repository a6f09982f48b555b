// Package export renders leaderboards and snapshot histories into report
// files for offline analysis.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/trustswarm/prophetrank/internal/leaderboard"
	"github.com/trustswarm/prophetrank/internal/scoring"
)

// ExportFormat defines supported export formats.
type ExportFormat string

const (
	// ExportFormatCSV exports reports as comma-separated values.
	ExportFormatCSV ExportFormat = "csv"
	// ExportFormatJSON exports reports as a JSON document.
	ExportFormatJSON ExportFormat = "json"
)

// ParseFormat converts a format string into an ExportFormat.
func ParseFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case ExportFormatCSV:
		return ExportFormatCSV, nil
	case ExportFormatJSON:
		return ExportFormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// LeaderboardReport is the JSON export document for a leaderboard.
type LeaderboardReport struct {
	Category    string              `json:"category"`
	GeneratedAt time.Time           `json:"generated_at"`
	Entries     []leaderboard.Entry `json:"entries"`
}

// ExportLeaderboard renders a ranked leaderboard in the given format.
func ExportLeaderboard(category string, entries []leaderboard.Entry, format ExportFormat, generatedAt time.Time) ([]byte, error) {
	switch format {
	case ExportFormatCSV:
		return leaderboardToCSV(entries)
	case ExportFormatJSON:
		report := LeaderboardReport{
			Category:    category,
			GeneratedAt: generatedAt.UTC(),
			Entries:     entries,
		}
		return json.MarshalIndent(report, "", "  ")
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// ExportSnapshots renders a snapshot history in the given format. The
// history is written as-is, newest first the way the stores return it.
func ExportSnapshots(snapshots []scoring.Snapshot, format ExportFormat) ([]byte, error) {
	switch format {
	case ExportFormatCSV:
		return snapshotsToCSV(snapshots)
	case ExportFormatJSON:
		return json.MarshalIndent(snapshots, "", "  ")
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// WriteReport writes rendered report data into dir with a timestamped file
// name, creating the directory if needed. Returns the written path.
func WriteReport(dir, name string, format ExportFormat, data []byte, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}

	filename := fmt.Sprintf("%s_%s.%s", name, now.UTC().Format("20060102T150405Z"), format)
	path := filepath.Join(dir, filename)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

var snapshotCSVHeader = []string{
	"model_name",
	"category",
	"trust_score",
	"accuracy",
	"weighted_accuracy",
	"calibration_score",
	"confidence_score",
	"recency_score",
	"brier_score",
	"log_loss",
	"total_predictions",
	"correct_predictions",
	"calculation_date",
}

func leaderboardToCSV(entries []leaderboard.Entry) ([]byte, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	header := append([]string{"rank"}, snapshotCSVHeader...)
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("write CSV header: %w", err)
	}

	for _, entry := range entries {
		row := append([]string{strconv.Itoa(entry.Rank)}, snapshotRow(entry.Snapshot)...)
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

func snapshotsToCSV(snapshots []scoring.Snapshot) ([]byte, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	if err := writer.Write(snapshotCSVHeader); err != nil {
		return nil, fmt.Errorf("write CSV header: %w", err)
	}

	for _, snap := range snapshots {
		if err := writer.Write(snapshotRow(snap)); err != nil {
			return nil, fmt.Errorf("write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

func snapshotRow(snap scoring.Snapshot) []string {
	// An infinite log loss has no finite representation, leave the cell empty
	logLoss := ""
	if !math.IsInf(snap.LogLoss, 1) {
		logLoss = formatScore(snap.LogLoss)
	}

	return []string{
		snap.ModelName,
		snap.Category,
		formatScore(snap.TrustScore),
		formatScore(snap.Accuracy),
		formatScore(snap.WeightedAccuracy),
		formatScore(snap.CalibrationScore),
		formatScore(snap.ConfidenceScore),
		formatScore(snap.RecencyScore),
		formatScore(snap.BrierScore),
		logLoss,
		strconv.Itoa(snap.TotalPredictions),
		strconv.Itoa(snap.CorrectPredictions),
		snap.CalculationDate.UTC().Format(time.RFC3339),
	}
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
