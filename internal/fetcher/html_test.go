package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func htmlPage(value string) string {
	return fmt.Sprintf(`<html><body><div class="quote"><span class="rate">%s</span></div></body></html>`, value)
}

func TestHTMLSourceFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Fatal("request should carry a user agent")
		}
		fmt.Fprint(w, htmlPage(" 55.30 "))
	}))
	defer srv.Close()

	src := NewHTMLSource(HTMLOptions{
		Code:     "BRENT",
		URL:      srv.URL,
		Selector: ".quote .rate",
		Timeout:  time.Second,
	}, noopLogger())

	value, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if value != 55.3 {
		t.Fatalf("expected 55.3, got %v", value)
	}
}

func TestHTMLSourceFetchCommaDecimal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, htmlPage("1 234,56"))
	}))
	defer srv.Close()

	src := NewHTMLSource(HTMLOptions{Code: "XAU", URL: srv.URL, Selector: ".quote .rate"}, noopLogger())

	value, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if value != 1234.56 {
		t.Fatalf("expected 1234.56, got %v", value)
	}
}

func TestHTMLSourceSelectorMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>layout changed</p></body></html>`)
	}))
	defer srv.Close()

	src := NewHTMLSource(HTMLOptions{Code: "BRENT", URL: srv.URL, Selector: ".quote .rate"}, noopLogger())

	_, err := src.Fetch(context.Background())
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("a missing selector should yield *ParseError, got %v", err)
	}
	if parseErr.Source != "BRENT" {
		t.Fatalf("parse error should name the instrument, got %q", parseErr.Source)
	}
}

func TestHTMLSourceBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := NewHTMLSource(HTMLOptions{Code: "BRENT", URL: srv.URL, Selector: ".quote .rate"}, noopLogger())

	var parseErr *ParseError
	if _, err := src.Fetch(context.Background()); !errors.As(err, &parseErr) {
		t.Fatalf("HTTP 503 should yield *ParseError, got %v", err)
	}
}

func TestHTMLSourceNonPositiveValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, htmlPage("0.00"))
	}))
	defer srv.Close()

	src := NewHTMLSource(HTMLOptions{Code: "BRENT", URL: srv.URL, Selector: ".quote .rate"}, noopLogger())

	var parseErr *ParseError
	if _, err := src.Fetch(context.Background()); !errors.As(err, &parseErr) {
		t.Fatalf("a non-positive value should yield *ParseError, got %v", err)
	}
}
