package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakePruner struct {
	sampleCutoff time.Time
	alertCutoff  time.Time
	sampleErr    error
	alertCalled  bool
}

func (p *fakePruner) DeleteSamplesBefore(ctx context.Context, olderThan time.Time) error {
	p.sampleCutoff = olderThan
	return p.sampleErr
}

func (p *fakePruner) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	p.alertCalled = true
	p.alertCutoff = olderThan
	return nil
}

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestRetentionSweepPrunesBothTables(t *testing.T) {
	pruner := &fakePruner{}
	keep := 720 * time.Hour
	tick := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sweep := retentionSweep(pruner, keep, noopLogger())
	if err := sweep(context.Background(), tick); err != nil {
		t.Fatalf("sweep should succeed: %v", err)
	}

	want := tick.Add(-keep)
	if !pruner.sampleCutoff.Equal(want) {
		t.Fatalf("expected sample cutoff %v, got %v", want, pruner.sampleCutoff)
	}
	if !pruner.alertCalled || !pruner.alertCutoff.Equal(want) {
		t.Fatalf("expected alert cutoff %v, got %v (called=%v)", want, pruner.alertCutoff, pruner.alertCalled)
	}
}

func TestRetentionSweepStopsOnSampleError(t *testing.T) {
	pruner := &fakePruner{sampleErr: errors.New("boom")}

	sweep := retentionSweep(pruner, time.Hour, noopLogger())
	if err := sweep(context.Background(), time.Now()); err == nil {
		t.Fatal("sample prune failure should surface")
	}
	if pruner.alertCalled {
		t.Fatal("alert prune should not run after a sample prune failure")
	}
}
