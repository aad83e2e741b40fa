package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// RateSource fetches the current value of one instrument, expressed in USD.
type RateSource interface {
	Fetch(ctx context.Context) (float64, error)
}

// PairSource resolves an arbitrary FROM-TO currency pair on demand and
// returns how much of TO one unit of FROM buys.
type PairSource interface {
	FetchPair(ctx context.Context, from, to string) (float64, error)
}

// SplitPair decomposes a FROM-TO instrument code. Codes without a dash,
// or with an empty side, are not pairs.
func SplitPair(code string) (from, to string, ok bool) {
	from, to, found := strings.Cut(code, "-")
	if !found || from == "" || to == "" {
		return "", "", false
	}
	return from, to, true
}

// ErrCurrencyNotFound reports a currency code the remote converter does not
// know. Unlike *ParseError this is a user input mistake and must surface to
// the caller instead of being defaulted away.
var ErrCurrencyNotFound = errors.New("currency code not found")

// ParseError is the single failure mode of a source adapter: network
// errors, non-2xx responses, selector misses, and unparsable text all
// collapse into it so callers can fall back to a last-known value.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErrf(source, format string, args ...any) error {
	return &ParseError{Source: source, Err: fmt.Errorf(format, args...)}
}

// Rate pages block default Go client identities quickly; requests rotate
// through a small set of browser strings.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

var uaCursor atomic.Uint32

func nextUserAgent() string {
	n := uaCursor.Add(1)
	return userAgents[int(n)%len(userAgents)]
}
