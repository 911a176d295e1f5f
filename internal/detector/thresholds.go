package detector

import (
	"time"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// Thresholds holds the per-market-family trigger levels for all four
// strategies. Line-market knobs are in points, h2h knobs in cents.
type Thresholds struct {
	LineMoveLine      float64 `toml:"line_move_line"`           // spreads/totals/props movement minimum
	LineMoveH2H       float64 `toml:"line_move_h2h"`            // h2h movement minimum, cents
	JuiceImprovement  float64 `toml:"juice_improvement"`        // vig drop minimum, cents
	DivergenceLine    float64 `toml:"divergence_line"`          // soft vs sharp gap minimum
	DivergenceH2H     float64 `toml:"divergence_h2h"`           // soft vs sharp gap minimum, cents
	ReverseMultiple   float64 `toml:"reverse_multiple"`         // multiple of the movement minimum
	ReverseWindow     int     `toml:"reverse_window"`           // snapshots in the reverse-line window
	ReverseMaxSpanMin int     `toml:"reverse_max_span_minutes"` // max age of the window
	MinSnapshots      int     `toml:"min_snapshots"`            // below this an outcome is skipped
}

// ReverseMaxSpan returns the reverse-line window limit as a duration
func (t Thresholds) ReverseMaxSpan() time.Duration {
	return time.Duration(t.ReverseMaxSpanMin) * time.Minute
}

// DefaultThresholds returns the baseline trigger levels
func DefaultThresholds() Thresholds {
	return Thresholds{
		LineMoveLine:      0.5,
		LineMoveH2H:       10,
		JuiceImprovement:  5,
		DivergenceLine:    1.0,
		DivergenceH2H:     15,
		ReverseMultiple:   2.0,
		ReverseWindow:     5,
		ReverseMaxSpanMin: 120,
		MinSnapshots:      2,
	}
}

// MoveThreshold returns the line-movement minimum for a market family
func (t Thresholds) MoveThreshold(mt models.MarketType) float64 {
	if mt.UsesLine() {
		return t.LineMoveLine
	}
	return t.LineMoveH2H
}

// DivergenceThreshold returns the sharp-divergence minimum for a market family
func (t Thresholds) DivergenceThreshold(mt models.MarketType) float64 {
	if mt.UsesLine() {
		return t.DivergenceLine
	}
	return t.DivergenceH2H
}

// Merged returns t with any non-zero field of the override applied. Zero
// means "keep the base" so sport profiles only state what they change.
func (t Thresholds) Merged(o Thresholds) Thresholds {
	if o.LineMoveLine != 0 {
		t.LineMoveLine = o.LineMoveLine
	}
	if o.LineMoveH2H != 0 {
		t.LineMoveH2H = o.LineMoveH2H
	}
	if o.JuiceImprovement != 0 {
		t.JuiceImprovement = o.JuiceImprovement
	}
	if o.DivergenceLine != 0 {
		t.DivergenceLine = o.DivergenceLine
	}
	if o.DivergenceH2H != 0 {
		t.DivergenceH2H = o.DivergenceH2H
	}
	if o.ReverseMultiple != 0 {
		t.ReverseMultiple = o.ReverseMultiple
	}
	if o.ReverseWindow != 0 {
		t.ReverseWindow = o.ReverseWindow
	}
	if o.ReverseMaxSpanMin != 0 {
		t.ReverseMaxSpanMin = o.ReverseMaxSpanMin
	}
	if o.MinSnapshots != 0 {
		t.MinSnapshots = o.MinSnapshots
	}
	return t
}
