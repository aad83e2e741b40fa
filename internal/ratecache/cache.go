package ratecache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ratewatch/internal/fetcher"
	"ratewatch/internal/metrics"
	"ratewatch/internal/storage"
)

// Cache holds the last successfully observed value per instrument, seeded
// from the configured defaults. One writer (the refresh loop) per
// instrument, many concurrent readers; values are replaced whole so a
// reader sees either the previous or the new value, never a torn one.
type Cache struct {
	mu     sync.RWMutex
	values map[string]float64

	sources  map[string]fetcher.RateSource
	defaults map[string]float64
	history  storage.HistoryStore
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// New builds a cache seeded with each instrument's static default, so
// Current has an answer before the first successful fetch. history may be
// nil to disable sample recording.
func New(sources map[string]fetcher.RateSource, defaults map[string]float64, history storage.HistoryStore, m *metrics.Metrics, logger zerolog.Logger) *Cache {
	values := make(map[string]float64, len(defaults))
	for code, value := range defaults {
		values[code] = value
	}

	return &Cache{
		values:   values,
		sources:  sources,
		defaults: defaults,
		history:  history,
		metrics:  m,
		logger:   logger.With().Str("component", "rate_cache").Logger(),
	}
}

// Current returns the last known value for an instrument. It never fails:
// before any successful fetch the configured default is returned. The
// second return is false for instruments the cache does not track.
func (c *Cache) Current(code string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.values[code]
	return value, ok
}

// RefreshAll sweeps every tracked instrument once. A failing source keeps
// its last-known value; one unreachable page never stalls the sweep.
func (c *Cache) RefreshAll(ctx context.Context) {
	codes := make([]string, 0, len(c.sources))
	for code := range c.sources {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		if ctx.Err() != nil {
			return
		}
		c.refresh(ctx, code)
	}

	c.metrics.CacheRefresh()
}

func (c *Cache) refresh(ctx context.Context, code string) {
	value, err := c.sources[code].Fetch(ctx)
	if err != nil {
		c.metrics.FetchFailure(code)
		c.logger.Warn().Err(err).Str("instrument", code).Msg("fetch failed; keeping last known value")
		return
	}

	c.mu.Lock()
	c.values[code] = value
	c.mu.Unlock()

	if c.history != nil {
		sample := storage.RateSample{Instrument: code, Value: value, ObservedAt: time.Now().UTC()}
		if err := c.history.RecordSample(ctx, sample); err != nil {
			c.logger.Warn().Err(err).Str("instrument", code).Msg("failed to record sample")
		}
	}
}
