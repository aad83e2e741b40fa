package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestGoRestartsFailingLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	var restarts atomic.Int32

	sup := New(noopLogger(), time.Millisecond, func(name string) {
		restarts.Add(1)
	})

	sup.Go(ctx, "flaky", func(ctx context.Context) error {
		if runs.Add(1) < 3 {
			return errors.New("boom")
		}
		<-ctx.Done()
		return ctx.Err()
	})

	deadline := time.After(2 * time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("loop was not restarted enough; runs=%d", runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	sup.Wait()

	if restarts.Load() < 2 {
		t.Fatalf("expected at least 2 restart callbacks, got %d", restarts.Load())
	}
}

func TestGoRecoversPanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	sup := New(noopLogger(), time.Millisecond, nil)

	sup.Go(ctx, "panicky", func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			panic("unexpected state")
		}
		<-ctx.Done()
		return ctx.Err()
	})

	deadline := time.After(2 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("panicking loop was not restarted")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	sup.Wait()
}

func TestGoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	sup := New(noopLogger(), time.Millisecond, nil)
	sup.Go(ctx, "steady", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	cancel()

	done := make(chan struct{})
	go func() {
		sup.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after cancellation")
	}
}
