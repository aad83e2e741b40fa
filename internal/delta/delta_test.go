package delta

import (
	"errors"
	"math"
	"testing"
)

func TestEvaluateBelowThreshold(t *testing.T) {
	out, err := Evaluate(55.0, 55.3, 0.01)
	if err != nil {
		t.Fatalf("evaluate should succeed: %v", err)
	}
	if out.Changed {
		t.Fatalf("0.3 move on 55.0 is below 1%%; got %+v", out)
	}
}

func TestEvaluateClearsThreshold(t *testing.T) {
	out, err := Evaluate(55.0, 56.0, 0.01)
	if err != nil {
		t.Fatalf("evaluate should succeed: %v", err)
	}
	if !out.Changed {
		t.Fatal("1.0 move on 55.0 should clear a 1% threshold")
	}
	if out.AbsDiff != 1.0 {
		t.Fatalf("expected abs diff 1.0, got %v", out.AbsDiff)
	}

	want := 1.0 / 56.0
	if math.Abs(out.PctDiff-want) > 1e-12 {
		t.Fatalf("expected pct diff %v, got %v", want, out.PctDiff)
	}
}

func TestEvaluateDenominatorIsLargerValue(t *testing.T) {
	up, err := Evaluate(50.0, 55.0, 0.001)
	if err != nil {
		t.Fatal(err)
	}
	down, err := Evaluate(55.0, 50.0, 0.001)
	if err != nil {
		t.Fatal(err)
	}

	// Both directions divide by 55, so the magnitudes match.
	if math.Abs(up.PctDiff) != math.Abs(down.PctDiff) {
		t.Fatalf("expected symmetric magnitude, got %v and %v", up.PctDiff, down.PctDiff)
	}
	if down.PctDiff >= 0 {
		t.Fatalf("a drop should yield a negative pct diff, got %v", down.PctDiff)
	}
}

func TestEvaluateExactThresholdFires(t *testing.T) {
	out, err := Evaluate(99.0, 100.0, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Changed {
		t.Fatal("a move exactly at the threshold should fire")
	}
}

func TestEvaluateEqualValues(t *testing.T) {
	out, err := Evaluate(60.0, 60.0, 0.0001)
	if err != nil {
		t.Fatalf("equal values should not error: %v", err)
	}
	if out.Changed {
		t.Fatal("equal values should never report a change")
	}
}

func TestEvaluateRejectsNonPositive(t *testing.T) {
	if _, err := Evaluate(0, 55.0, 0.01); !errors.Is(err, ErrNonPositiveValue) {
		t.Fatalf("zero baseline should be rejected, got %v", err)
	}
	if _, err := Evaluate(55.0, -1.0, 0.01); !errors.Is(err, ErrNonPositiveValue) {
		t.Fatalf("negative observation should be rejected, got %v", err)
	}
}

func TestFormatValue(t *testing.T) {
	if got := FormatValue(55.0); got != "55.00" {
		t.Fatalf("expected 55.00, got %s", got)
	}
	if got := FormatValue(1234.567); got != "1234.57" {
		t.Fatalf("expected 1234.57, got %s", got)
	}
}

func TestFormatPctWidensForSmallMoves(t *testing.T) {
	cases := []struct {
		pct  float64
		want string
	}{
		{0.05, "5.0%"},
		{0.0178, "1.8%"},
		{-0.0178, "-1.8%"},
		{0.0005, "0.050%"},
		{0.00005, "0.0050%"},
	}
	for _, tc := range cases {
		if got := FormatPct(tc.pct); got != tc.want {
			t.Fatalf("FormatPct(%v): expected %s, got %s", tc.pct, tc.want, got)
		}
	}
}
