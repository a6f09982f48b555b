package scoring

import (
	"math"
	"testing"
)

func TestBrierScore(t *testing.T) {
	tests := []struct {
		name    string
		records []PredictionRecord
		want    float64
	}{
		{
			name:    "no records returns worst case",
			records: nil,
			want:    1.0,
		},
		{
			name: "perfect confident predictions",
			records: []PredictionRecord{
				{Probability: 1.0, Correct: true},
				{Probability: 0.0, Correct: false},
			},
			want: 0.0,
		},
		{
			name: "maximally wrong predictions",
			records: []PredictionRecord{
				{Probability: 1.0, Correct: false},
				{Probability: 0.0, Correct: true},
			},
			want: 1.0,
		},
		{
			name: "mixed predictions",
			// (0.7-1)^2 = 0.09, (0.3-0)^2 = 0.09, mean = 0.09
			records: []PredictionRecord{
				{Probability: 0.7, Correct: true},
				{Probability: 0.3, Correct: false},
			},
			want: 0.09,
		},
		{
			name: "hedged coin flip",
			records: []PredictionRecord{
				{Probability: 0.5, Correct: true},
				{Probability: 0.5, Correct: false},
			},
			want: 0.25,
		},
		{
			name: "out of range probability is clamped",
			// 1.4 clamps to 1.0, correct, contributes 0
			records: []PredictionRecord{
				{Probability: 1.4, Correct: true},
			},
			want: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BrierScore(tt.records)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("BrierScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogLoss(t *testing.T) {
	t.Run("no records returns positive infinity", func(t *testing.T) {
		got := LogLoss(nil)
		if !math.IsInf(got, 1) {
			t.Errorf("LogLoss(nil) = %v, want +Inf", got)
		}
	})

	t.Run("certain wrong prediction is large but finite", func(t *testing.T) {
		got := LogLoss([]PredictionRecord{{Probability: 1.0, Correct: false}})
		if math.IsInf(got, 0) || math.IsNaN(got) {
			t.Fatalf("LogLoss() = %v, want finite", got)
		}
		// -ln(1e-15) is roughly 34.5
		if got < 30 {
			t.Errorf("LogLoss() = %v, want a large penalty", got)
		}
	})

	t.Run("known value", func(t *testing.T) {
		// -ln(0.8) for a correct prediction at p=0.8
		got := LogLoss([]PredictionRecord{{Probability: 0.8, Correct: true}})
		want := -math.Log(0.8)
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("LogLoss() = %v, want %v", got, want)
		}
	})

	t.Run("lower for better calibrated predictions", func(t *testing.T) {
		good := LogLoss([]PredictionRecord{
			{Probability: 0.9, Correct: true},
			{Probability: 0.1, Correct: false},
		})
		bad := LogLoss([]PredictionRecord{
			{Probability: 0.6, Correct: true},
			{Probability: 0.4, Correct: false},
		})
		if good >= bad {
			t.Errorf("LogLoss good = %v, bad = %v, want good < bad", good, bad)
		}
	})
}

func TestCalibrationScore(t *testing.T) {
	tests := []struct {
		name    string
		records []PredictionRecord
		want    float64
	}{
		{
			name:    "no records returns zero",
			records: nil,
			want:    0.0,
		},
		{
			name: "perfectly calibrated extremes",
			// Bin [0.9, 1.0]: predicted 1.0, empirical 1.0.
			// Bin [0.0, 0.1): predicted 0.0, empirical 0.0.
			records: []PredictionRecord{
				{Probability: 1.0, Correct: true},
				{Probability: 0.0, Correct: false},
			},
			want: 1.0,
		},
		{
			name: "always wrong at zero probability is perfectly calibrated",
			records: []PredictionRecord{
				{Probability: 0.0, Correct: false},
				{Probability: 0.0, Correct: false},
				{Probability: 0.0, Correct: false},
			},
			want: 1.0,
		},
		{
			name: "calibrated seventy percent bucket",
			// 10 records at p=0.7 with 7 hits: empirical matches predicted.
			records: append(
				repeatRecords(0.7, true, 7),
				repeatRecords(0.7, false, 3)...,
			),
			want: 1.0,
		},
		{
			name: "overconfident model",
			// All at p=0.9 but only half correct: error = |0.5 - 0.9| = 0.4.
			records: append(
				repeatRecords(0.9, true, 5),
				repeatRecords(0.9, false, 5)...,
			),
			want: 0.6,
		},
		{
			name: "maximally miscalibrated",
			// Certain and always wrong: error = |0 - 1| = 1, floored score 0.
			records: repeatRecords(1.0, false, 4),
			want:    0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalibrationScore(tt.records, DefaultCalibrationBins)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CalibrationScore() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("probability one lands in the last bin", func(t *testing.T) {
		// Would panic or score wrong with a half-open last bin.
		got := CalibrationScore([]PredictionRecord{{Probability: 1.0, Correct: true}}, 10)
		if math.Abs(got-1.0) > 1e-9 {
			t.Errorf("CalibrationScore() = %v, want 1.0", got)
		}
	})

	t.Run("non-positive bins falls back to default", func(t *testing.T) {
		records := repeatRecords(0.7, true, 7)
		records = append(records, repeatRecords(0.7, false, 3)...)
		got := CalibrationScore(records, 0)
		want := CalibrationScore(records, DefaultCalibrationBins)
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("CalibrationScore(bins=0) = %v, want %v", got, want)
		}
	})
}

func repeatRecords(p float64, correct bool, n int) []PredictionRecord {
	out := make([]PredictionRecord, n)
	for i := range out {
		out[i] = PredictionRecord{Probability: p, Correct: correct}
	}
	return out
}
