package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"ratewatch/internal/delta"
	"ratewatch/internal/fetcher"
)

// Check fetches one instrument or currency pair immediately and prints the
// observed value. An unknown currency code is reported as such rather than
// as a source failure.
func (a *App) Check(ctx context.Context, instrument string) error {
	code := strings.ToUpper(strings.TrimSpace(instrument))
	if code == "" {
		return errors.New("instrument code is required")
	}

	if from, to, isPair := fetcher.SplitPair(code); isPair {
		value, err := a.newConverter().FetchPair(ctx, from, to)
		if err != nil {
			if errors.Is(err, fetcher.ErrCurrencyNotFound) {
				return fmt.Errorf("unknown currency in pair %s", code)
			}
			return err
		}
		fmt.Fprintf(os.Stdout, "%s: %s\n", code, delta.FormatValue(value))
		return nil
	}

	sources, _ := a.buildSources()
	source, ok := sources[code]
	if !ok {
		return fmt.Errorf("instrument %s is not configured", code)
	}

	value, err := source.Fetch(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%s: %s\n", code, delta.FormatValue(value))
	return nil
}
