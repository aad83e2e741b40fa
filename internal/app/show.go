package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"ratewatch/internal/delta"
	"ratewatch/internal/storage"
)

// ShowOptions parameterise the show command.
type ShowOptions struct {
	Instrument string
	Limit      int
	Alerts     bool
}

// Show prints recent samples for one instrument, or the recent sent-alert
// audit log.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show history")
	}
	defer closeStore()

	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	if opts.Alerts {
		return a.showAlerts(ctx, store, opts.Limit)
	}

	if opts.Instrument == "" {
		return errors.New("--instrument is required unless --alerts is set")
	}

	samples, err := store.ListRecentSamples(ctx, opts.Instrument, opts.Limit)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		fmt.Fprintln(os.Stdout, "no samples found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tInstrument\tValue")
	for _, sample := range samples {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\n",
			sample.ObservedAt.UTC().Format(time.RFC3339),
			sample.Instrument,
			delta.FormatValue(sample.Value),
		)
	}
	return writer.Flush()
}

func (a *App) showAlerts(ctx context.Context, store *storage.Store, limit int) error {
	alerts, err := store.ListRecentAlerts(ctx, limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tUser\tInstrument\tWas\tNow\tChange")
	for _, alert := range alerts {
		fmt.Fprintf(
			writer,
			"%s\t%d\t%s\t%s\t%s\t%s\n",
			alert.CreatedAt.UTC().Format(time.RFC3339),
			alert.UserID,
			alert.Instrument,
			delta.FormatValue(alert.OldValue),
			delta.FormatValue(alert.NewValue),
			delta.FormatPct(alert.PctDiff),
		)
	}
	return writer.Flush()
}
