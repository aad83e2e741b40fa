package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

// Selectors on the generic converter page. The page renders either a rate
// node or an unknown-currency notice, never both.
const (
	pairRateSelector     = ".converter-result .rate-value"
	pairNotFoundSelector = ".converter-result .unknown-currency"
)

// ConverterOptions parameterise the generic pair converter.
type ConverterOptions struct {
	BaseURL string
	Timeout time.Duration
}

// Converter resolves arbitrary currency pairs against a generic converter
// page, for currencies without a dedicated source.
type Converter struct {
	baseURL string
	logger  zerolog.Logger
	client  *http.Client
}

// NewConverter constructs a pair converter.
func NewConverter(opts ConverterOptions, logger zerolog.Logger) *Converter {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Converter{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		logger:  logger.With().Str("component", "pair_converter").Logger(),
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchPair returns how much of `to` one unit of `from` buys. An unknown
// code yields ErrCurrencyNotFound, which is a validation error for the
// requesting user; transient page trouble yields *ParseError.
func (c *Converter) FetchPair(ctx context.Context, from, to string) (float64, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	pair := from + "-" + to

	if !isCurrencyCode(from) || !isCurrencyCode(to) {
		return 0, fmt.Errorf("%s: %w", pair, ErrCurrencyNotFound)
	}

	query := url.Values{}
	query.Set("Amount", "1")
	query.Set("From", from)
	query.Set("To", to)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return 0, parseErrf(pair, "create request: %w", err)
	}
	req.Header.Set("User-Agent", nextUserAgent())

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, parseErrf(pair, "fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("%s: %w", pair, ErrCurrencyNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, parseErrf(pair, "unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return 0, parseErrf(pair, "parse html: %w", err)
	}

	text := strings.TrimSpace(doc.Find(pairRateSelector).First().Text())
	if text == "" {
		if doc.Find(pairNotFoundSelector).Length() > 0 {
			return 0, fmt.Errorf("%s: %w", pair, ErrCurrencyNotFound)
		}
		return 0, parseErrf(pair, "rate node missing")
	}

	value, err := parseNumber(text)
	if err != nil {
		return 0, parseErrf(pair, "parse value %q: %w", text, err)
	}
	if value <= 0 {
		return 0, parseErrf(pair, "non-positive value %v", value)
	}

	c.logger.Debug().Str("pair", pair).Float64("value", value).Msg("pair fetched")
	return value, nil
}

func isCurrencyCode(code string) bool {
	if len(code) < 2 || len(code) > 5 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

var _ PairSource = (*Converter)(nil)
