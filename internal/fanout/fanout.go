package fanout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ratewatch/internal/alerting"
	"ratewatch/internal/delta"
	"ratewatch/internal/fetcher"
	"ratewatch/internal/metrics"
	"ratewatch/internal/storage"
)

// ValueSource is the warm-cache contract: the last known value for an
// instrument with a dedicated source.
type ValueSource interface {
	Current(code string) (float64, bool)
}

// FanOut runs one notification round per triggered check time: enumerate
// the users due at that time, evaluate each tracked instrument against its
// baseline, and notify on threshold-clearing moves.
type FanOut struct {
	registry storage.TrackingStore
	values   ValueSource
	pairs    fetcher.PairSource
	notifier alerting.Notifier
	alerts   storage.AlertStore
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	workers  int
}

// New constructs the fan-out engine. alerts may be nil to disable
// auditing.
func New(registry storage.TrackingStore, values ValueSource, pairs fetcher.PairSource, notifier alerting.Notifier, alerts storage.AlertStore, m *metrics.Metrics, workers int, logger zerolog.Logger) *FanOut {
	if workers <= 0 {
		workers = 50
	}
	return &FanOut{
		registry: registry,
		values:   values,
		pairs:    pairs,
		notifier: notifier,
		alerts:   alerts,
		metrics:  m,
		logger:   logger.With().Str("component", "fanout").Logger(),
		workers:  workers,
	}
}

// Run executes one round for a UTC check time. Tasks run concurrently
// under a fixed worker cap; a failing task is logged and dropped without
// cancelling its siblings. Run returns when every task has finished.
func (f *FanOut) Run(ctx context.Context, checkTime string) {
	start := time.Now()
	f.metrics.RoundStarted()

	entries, err := f.registry.EntriesDueAt(ctx, checkTime)
	if err != nil {
		f.logger.Error().Err(err).Str("check_time", checkTime).Msg("failed to enumerate due entries")
		return
	}
	if len(entries) == 0 {
		f.logger.Debug().Str("check_time", checkTime).Msg("no entries due")
		return
	}

	sem := make(chan struct{}, f.workers)
	var wg sync.WaitGroup

	for _, entry := range entries {
		wg.Add(1)
		sem <- struct{}{}
		go func(entry storage.TrackingEntry) {
			defer wg.Done()
			defer func() { <-sem }()
			f.process(ctx, entry)
		}(entry)
	}

	wg.Wait()

	elapsed := time.Since(start)
	f.metrics.ObserveRound(elapsed.Seconds())
	f.logger.Info().
		Str("check_time", checkTime).
		Int("entries", len(entries)).
		Dur("elapsed", elapsed).
		Msg("fan-out round complete")
}

func (f *FanOut) process(ctx context.Context, entry storage.TrackingEntry) {
	defer func() {
		if r := recover(); r != nil {
			f.metrics.TaskFailed()
			f.logger.Error().
				Int64("user_id", entry.UserID).
				Str("instrument", entry.Instrument).
				Any("panic", r).
				Msg("recovered from task panic")
		}
	}()

	f.metrics.TaskDispatched()

	value, ok := f.currentValue(ctx, entry.Instrument)
	if !ok {
		return
	}

	out, err := delta.Evaluate(entry.Baseline, value, entry.PercentDelta)
	if err != nil {
		// Baselines are positive by invariant; this is an internal error,
		// not a condition to default away.
		f.metrics.TaskFailed()
		f.logger.Error().Err(err).
			Int64("user_id", entry.UserID).
			Str("instrument", entry.Instrument).
			Float64("baseline", entry.Baseline).
			Msg("evaluation rejected inputs")
		return
	}

	if !out.Changed {
		f.logger.Debug().
			Int64("user_id", entry.UserID).
			Str("instrument", entry.Instrument).
			Msg("change below threshold")
		return
	}

	// The baseline moves to the presented value before the message goes
	// out, so repeated small moves cannot accumulate into a second alert.
	if err := f.registry.UpdateBaseline(ctx, entry.UserID, entry.Instrument, out.New); err != nil {
		if errors.Is(err, storage.ErrEntryNotFound) {
			f.logger.Debug().
				Int64("user_id", entry.UserID).
				Str("instrument", entry.Instrument).
				Msg("entry removed mid-round; dropping result")
			return
		}
		f.metrics.TaskFailed()
		f.logger.Error().Err(err).
			Int64("user_id", entry.UserID).
			Str("instrument", entry.Instrument).
			Msg("failed to update baseline")
		return
	}

	if f.alerts != nil {
		record := storage.SentAlert{
			UserID:     entry.UserID,
			Instrument: entry.Instrument,
			OldValue:   out.Old,
			NewValue:   out.New,
			PctDiff:    out.PctDiff,
		}
		if _, err := f.alerts.RecordAlert(ctx, record); err != nil {
			f.logger.Error().Err(err).Int64("user_id", entry.UserID).Msg("failed to record alert")
		}
	}

	text := alerting.RenderAlert(entry.Instrument, out, entry.PercentDelta)
	if err := f.notifier.Send(ctx, entry.ChatID, text); err != nil {
		f.metrics.TaskFailed()
		f.logger.Error().Err(err).
			Int64("user_id", entry.UserID).
			Str("instrument", entry.Instrument).
			Msg("failed to deliver notification")
		return
	}

	f.metrics.AlertSent()
}

// currentValue resolves an instrument's present value: pair codes go to
// the on-demand converter, everything else reads the warm cache.
func (f *FanOut) currentValue(ctx context.Context, code string) (float64, bool) {
	from, to, isPair := fetcher.SplitPair(code)
	if !isPair {
		value, ok := f.values.Current(code)
		if !ok {
			f.logger.Warn().Str("instrument", code).Msg("instrument has no source; skipping")
		}
		return value, ok
	}

	value, err := f.pairs.FetchPair(ctx, from, to)
	if err != nil {
		f.metrics.FetchFailure(code)
		f.logger.Warn().Err(err).Str("instrument", code).Msg("pair fetch failed; skipping")
		return 0, false
	}
	return value, true
}
