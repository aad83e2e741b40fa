package delta

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// ErrNonPositiveValue reports a baseline or observation that violates the
// positive-value invariant. Baselines are positive by construction, so
// hitting this is an internal error, not a condition to default away.
var ErrNonPositiveValue = errors.New("delta: values must be positive")

// Outcome is the result of comparing an observation against a baseline.
// Diff fields are only meaningful when Changed is set.
type Outcome struct {
	Changed bool
	Old     float64
	New     float64
	AbsDiff float64
	PctDiff float64
}

// Evaluate decides whether the move from old to new clears the given
// threshold (a fraction, e.g. 0.01 for 1%).
//
// The relative difference divides by max(old, new), not by old. That is
// asymmetric and not textbook percent-change, but it is the comparison the
// thresholds were tuned against; changing it would shift every user's
// alert sensitivity silently.
func Evaluate(oldVal, newVal, threshold float64) (Outcome, error) {
	if oldVal <= 0 || newVal <= 0 {
		return Outcome{}, ErrNonPositiveValue
	}

	if oldVal == newVal {
		return Outcome{Old: oldVal, New: newVal}, nil
	}

	pct := (newVal - oldVal) / math.Max(oldVal, newVal)

	// The threshold comparison uses the unrounded value; rounding happens
	// only at display time to avoid flapping at rounding boundaries.
	if math.Abs(pct) < threshold {
		return Outcome{Old: oldVal, New: newVal}, nil
	}

	return Outcome{
		Changed: true,
		Old:     oldVal,
		New:     newVal,
		AbsDiff: math.Abs(newVal - oldVal),
		PctDiff: pct,
	}, nil
}

// FormatValue renders an absolute value at display precision.
func FormatValue(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatPct renders a fractional difference as a percentage, widening the
// precision for small moves so they do not display as 0.0%.
func FormatPct(pct float64) string {
	percent := pct * 100

	places := int32(1)
	switch a := math.Abs(percent); {
	case a >= 1:
		places = 1
	case a >= 0.1:
		places = 2
	case a >= 0.01:
		places = 3
	case a >= 0.001:
		places = 4
	case a >= 0.0001:
		places = 5
	default:
		places = 6
	}

	return decimal.NewFromFloat(percent).StringFixed(places) + "%"
}
