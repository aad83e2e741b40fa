package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"ratewatch/internal/alerting"
	"ratewatch/internal/config"
	"ratewatch/internal/fanout"
	"ratewatch/internal/fetcher"
	"ratewatch/internal/metrics"
	"ratewatch/internal/ratecache"
	"ratewatch/internal/schedule"
	"ratewatch/internal/scheduler"
	"ratewatch/internal/storage"
	"ratewatch/internal/supervisor"
)

// App aggregates configuration and shared dependencies for the CLI
// commands. All dependencies are constructed explicitly at process start;
// nothing is initialised as an import-time side effect.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	a := &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
	}
	return a
}

// buildSources constructs one source adapter per configured instrument and
// collects the static fallback values.
func (a *App) buildSources() (map[string]fetcher.RateSource, map[string]float64) {
	sources := make(map[string]fetcher.RateSource, len(a.Config.Instruments))
	defaults := make(map[string]float64, len(a.Config.Instruments))

	for _, inst := range a.Config.Instruments {
		defaults[inst.Code] = inst.DefaultValue

		switch inst.Kind {
		case config.KindHTML:
			sources[inst.Code] = fetcher.NewHTMLSource(fetcher.HTMLOptions{
				Code:     inst.Code,
				URL:      inst.URL,
				Selector: inst.Selector,
			}, a.Logger)
		case config.KindFeed:
			sources[inst.Code] = fetcher.NewFeed(fetcher.FeedOptions{
				Code:        inst.Code,
				RPCURL:      a.Config.Ethereum.RPCURL,
				FeedAddress: inst.FeedAddress,
				Timeout:     a.Config.Ethereum.RequestTimeout,
			}, a.Logger)
		}
	}

	return sources, defaults
}

func (a *App) newConverter() *fetcher.Converter {
	return fetcher.NewConverter(fetcher.ConverterOptions{
		BaseURL: a.Config.Converter.BaseURL,
		Timeout: a.Config.Converter.RequestTimeout,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Telegram.Enabled {
		cfg := a.Config.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.APIBase, cfg.RequestTimeout, a.Logger)
	}
	return &logNotifier{logger: a.Logger}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running alerting engine: the cache refresh loop,
// the check-time loop, and (optionally) the metrics endpoint, all under
// the loop supervisor.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	grid, err := schedule.ParseGrid(a.Config.Scheduler.CheckTimes)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("database.dsn is required to run the alerting engine")
	}
	defer closeStore()

	if err := storage.RunMigrations(a.Config.Database.DSN, a.Config.Database.MigrationsPath); err != nil {
		return err
	}

	sources, defaults := a.buildSources()
	if len(sources) == 0 {
		a.Logger.Warn().Msg("no instruments configured; only pair lookups will resolve")
	}

	var history storage.HistoryStore
	if a.Config.Cache.RecordHistory {
		history = store
	}

	cache := ratecache.New(sources, defaults, history, a.Metrics, a.Logger)
	engine := fanout.New(store, cache, a.newConverter(), a.newNotifier(), store, a.Metrics, a.Config.FanOut.Workers, a.Logger)

	checkLoop := scheduler.NewCheckTimeLoop(grid, a.Config.Scheduler.PollInterval, a.Logger)
	refreshLoop := scheduler.NewInterval(scheduler.IntervalOptions{
		Interval: a.Config.Cache.RefreshInterval,
	}, a.Logger)

	// Warm the cache once before the first round fires.
	cache.RefreshAll(ctx)

	sup := supervisor.New(a.Logger, 5*time.Second, a.Metrics.LoopRestarted)
	sup.Go(ctx, "check_time_loop", func(ctx context.Context) error {
		return checkLoop.Run(ctx, engine.Run)
	})
	sup.Go(ctx, "cache_refresh", func(ctx context.Context) error {
		return refreshLoop.Run(ctx, func(ctx context.Context, _ time.Time) error {
			cache.RefreshAll(ctx)
			return nil
		})
	})

	if a.Config.Cache.RetentionPeriod > 0 {
		sweepLoop := scheduler.NewInterval(scheduler.IntervalOptions{
			Interval: retentionSweepInterval,
		}, a.Logger)
		sweep := retentionSweep(store, a.Config.Cache.RetentionPeriod, a.Logger)
		sup.Go(ctx, "retention_sweep", func(ctx context.Context) error {
			return sweepLoop.Run(ctx, sweep)
		})
	}

	if a.Config.Metrics.Enabled {
		go func() {
			a.Logger.Info().Int("port", a.Config.Metrics.Port).Msg("serving metrics and health endpoints")
			if err := metrics.Serve(a.Config.Metrics.Port); err != nil {
				a.Logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	a.Logger.Info().Msg("alerting engine started")
	<-ctx.Done()
	sup.Wait()
	a.Logger.Info().Msg("alerting engine stopped")
	return nil
}

const retentionSweepInterval = 24 * time.Hour

// historyPruner is the slice of the store the retention sweep needs.
type historyPruner interface {
	DeleteSamplesBefore(ctx context.Context, olderThan time.Time) error
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// retentionSweep prunes samples and sent alerts older than the configured
// retention period, anchored to each tick.
func retentionSweep(pruner historyPruner, keep time.Duration, logger zerolog.Logger) scheduler.TickFunc {
	return func(ctx context.Context, tick time.Time) error {
		cutoff := tick.Add(-keep).UTC()
		if err := pruner.DeleteSamplesBefore(ctx, cutoff); err != nil {
			return err
		}
		if err := pruner.DeleteAlertsBefore(ctx, cutoff); err != nil {
			return err
		}
		logger.Debug().Time("cutoff", cutoff).Msg("history pruned")
		return nil
	}
}

// logNotifier stands in for Telegram when delivery is disabled, so dev
// environments still show what would have been sent.
type logNotifier struct {
	logger zerolog.Logger
}

func (n *logNotifier) Send(_ context.Context, chatID int64, text string) error {
	n.logger.Info().Int64("chat_id", chatID).Str("text", text).Msg("notification (delivery disabled)")
	return nil
}
