package fetcher

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

// HTMLOptions parameterise a scraped rate page.
type HTMLOptions struct {
	Code     string
	URL      string
	Selector string
	Timeout  time.Duration
}

// HTMLSource extracts one numeric value from a fixed page via a fixed
// selector. Stateless per call.
type HTMLSource struct {
	opts   HTMLOptions
	logger zerolog.Logger
	client *http.Client
}

// NewHTMLSource constructs an HTML scraping source.
func NewHTMLSource(opts HTMLOptions, logger zerolog.Logger) *HTMLSource {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTMLSource{
		opts:   opts,
		logger: logger.With().Str("component", "html_source").Str("instrument", opts.Code).Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves and parses the page. Every failure mode collapses into
// *ParseError so the cache can substitute a last-known value.
func (s *HTMLSource) Fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.URL, nil)
	if err != nil {
		return 0, parseErrf(s.opts.Code, "create request: %w", err)
	}
	req.Header.Set("User-Agent", nextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, parseErrf(s.opts.Code, "fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, parseErrf(s.opts.Code, "unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return 0, parseErrf(s.opts.Code, "parse html: %w", err)
	}

	text := strings.TrimSpace(doc.Find(s.opts.Selector).First().Text())
	if text == "" {
		return 0, parseErrf(s.opts.Code, "selector %q matched nothing", s.opts.Selector)
	}

	value, err := parseNumber(text)
	if err != nil {
		return 0, parseErrf(s.opts.Code, "parse value %q: %w", text, err)
	}
	if value <= 0 {
		return 0, parseErrf(s.opts.Code, "non-positive value %v", value)
	}

	s.logger.Debug().Float64("value", value).Msg("rate fetched")
	return value, nil
}

var _ RateSource = (*HTMLSource)(nil)
