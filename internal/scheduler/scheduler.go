package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ratewatch/internal/schedule"
)

// CheckFunc runs one fan-out round for a matched check time.
type CheckFunc func(ctx context.Context, checkTime string)

// CheckTimeLoop watches the wall clock at sub-minute resolution and fires
// once per grid boundary. Polling faster than the minute granularity costs
// a little CPU but survives clock and scheduling jitter that a full-minute
// sleep could skip a boundary over.
type CheckTimeLoop struct {
	grid      schedule.Grid
	poll      time.Duration
	logger    zerolog.Logger
	lastFired string
}

// NewCheckTimeLoop constructs the check-time loop.
func NewCheckTimeLoop(grid schedule.Grid, poll time.Duration, logger zerolog.Logger) *CheckTimeLoop {
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &CheckTimeLoop{
		grid:   grid,
		poll:   poll,
		logger: logger.With().Str("component", "check_time_loop").Logger(),
	}
}

// Run blocks until ctx is cancelled. Each matched boundary spawns a round
// and immediately returns to waiting; a slow round overlaps the next check
// instead of delaying it.
func (l *CheckTimeLoop) Run(ctx context.Context, fire CheckFunc) error {
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	l.logger.Info().Strs("grid", l.grid.Times()).Dur("poll", l.poll).Msg("check-time loop started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			checkTime, ok := l.due(now)
			if !ok {
				continue
			}
			l.logger.Info().Str("check_time", checkTime).Msg("check time reached")
			go fire(ctx, checkTime)
		}
	}
}

// due reports the grid entry when now sits on a grid minute that has not
// fired yet. The minute key debounces the loop's own sub-minute ticks.
func (l *CheckTimeLoop) due(now time.Time) (string, bool) {
	checkTime, ok := l.grid.Match(now)
	if !ok {
		return "", false
	}

	minute := now.UTC().Format("2006-01-02T15:04")
	if minute == l.lastFired {
		return "", false
	}
	l.lastFired = minute
	return checkTime, true
}
