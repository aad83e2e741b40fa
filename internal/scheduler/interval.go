package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every interval tick.
type TickFunc func(ctx context.Context, tick time.Time) error

// IntervalOptions tune interval loop behaviour.
type IntervalOptions struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
}

// Interval drives fixed-period work such as the cache refresh.
type Interval struct {
	opts   IntervalOptions
	logger zerolog.Logger
}

// NewInterval constructs an Interval instance.
func NewInterval(opts IntervalOptions, logger zerolog.Logger) *Interval {
	if opts.Interval <= 0 {
		panic("interval must be positive")
	}
	return &Interval{opts: opts, logger: logger.With().Str("component", "interval_loop").Logger()}
}

// Run blocks, invoking the tick function at each interval until ctx is
// cancelled. A failing tick is logged and the loop continues.
func (s *Interval) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	next := s.nextTick(time.Now().UTC())
	for {
		delay := time.Until(next)
		if delay < 0 {
			next = s.nextTick(time.Now().UTC())
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			timer.Stop()
		}

		if err := tick(ctx, next); err != nil {
			s.logger.Error().Err(err).Time("tick", next).Msg("tick execution failed")
		}

		next = next.Add(s.opts.Interval)
	}
}

func (s *Interval) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	tick := now.Truncate(s.opts.Interval)
	if !tick.After(now) {
		tick = tick.Add(s.opts.Interval)
	}
	return tick
}
