package app

import (
	"context"
	"fmt"
	"os"

	"ratewatch/internal/alerting"
	"ratewatch/internal/delta"
)

// SimulateOptions feed a synthetic observation through the evaluate-and-
// notify path without touching the registry.
type SimulateOptions struct {
	Instrument string
	ChatID     int64
	OldValue   float64
	NewValue   float64
	Threshold  float64
}

// SimulateAlert runs one evaluation with the given values and, when the
// move clears the threshold, delivers the rendered message through the
// configured notifier.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if opts.Threshold <= 0 {
		opts.Threshold = 0.01
	}

	out, err := delta.Evaluate(opts.OldValue, opts.NewValue, opts.Threshold)
	if err != nil {
		return err
	}

	if !out.Changed {
		fmt.Fprintf(os.Stdout, "move from %s to %s stays below threshold %s; no alert\n",
			delta.FormatValue(opts.OldValue),
			delta.FormatValue(opts.NewValue),
			delta.FormatPct(opts.Threshold),
		)
		return nil
	}

	text := alerting.RenderAlert(opts.Instrument, out, opts.Threshold)
	if err := a.newNotifier().Send(ctx, opts.ChatID, text); err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "alert delivered:")
	fmt.Fprintln(os.Stdout, text)
	return nil
}
