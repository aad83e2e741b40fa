package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LoopFunc is a long-running background loop. It should only return on
// context cancellation; any other exit is treated as unexpected.
type LoopFunc func(ctx context.Context) error

// Supervisor restarts background loops that exit unexpectedly, so one
// failing iteration or a panic never silently kills a scheduled activity.
type Supervisor struct {
	logger       zerolog.Logger
	restartDelay time.Duration
	onRestart    func(name string)
	wg           sync.WaitGroup
}

// New constructs a supervisor. onRestart may be nil; when set it is called
// with the loop name on every restart (metrics hook).
func New(logger zerolog.Logger, restartDelay time.Duration, onRestart func(name string)) *Supervisor {
	if restartDelay <= 0 {
		restartDelay = 5 * time.Second
	}
	return &Supervisor{
		logger:       logger.With().Str("component", "supervisor").Logger(),
		restartDelay: restartDelay,
		onRestart:    onRestart,
	}
}

// Go runs the loop in a goroutine, restarting it after the configured
// delay whenever it returns or panics while the context is still live.
func (s *Supervisor) Go(ctx context.Context, name string, loop LoopFunc) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			err := runGuarded(ctx, loop)
			if ctx.Err() != nil {
				s.logger.Debug().Str("loop", name).Msg("loop stopped")
				return
			}

			if err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Str("loop", name).Msg("loop exited unexpectedly; restarting")
			} else {
				s.logger.Warn().Str("loop", name).Msg("loop returned without error; restarting")
			}
			if s.onRestart != nil {
				s.onRestart(name)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(s.restartDelay):
			}
		}
	}()
}

// Wait blocks until all supervised loops have stopped.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

func runGuarded(ctx context.Context, loop LoopFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loop panicked: %v", r)
		}
	}()
	return loop(ctx)
}
