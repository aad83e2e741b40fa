package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("an explicitly named missing file should error")
	}

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("defaults alone should produce a valid config: %v", err)
	}

	if len(cfg.Scheduler.CheckTimes) != 12 {
		t.Fatalf("expected the default two-hour grid, got %v", cfg.Scheduler.CheckTimes)
	}
	if cfg.Scheduler.PollInterval != 5*time.Second {
		t.Fatalf("unexpected default poll interval: %v", cfg.Scheduler.PollInterval)
	}
	if cfg.FanOut.Workers != 50 {
		t.Fatalf("unexpected default worker cap: %d", cfg.FanOut.Workers)
	}
	if cfg.Cache.RetentionPeriod != 720*time.Hour {
		t.Fatalf("unexpected default retention period: %v", cfg.Cache.RetentionPeriod)
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
scheduler:
  check_times: ["09:00", "18:00"]
  poll_interval: 2s
cache:
  refresh_interval: 30s
instruments:
  - code: BRENT
    kind: html
    url: https://example.com/brent
    selector: ".quote .rate"
    default_value: 60.0
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load should succeed: %v", err)
	}

	if len(cfg.Scheduler.CheckTimes) != 2 || cfg.Scheduler.CheckTimes[0] != "09:00" {
		t.Fatalf("unexpected check times: %v", cfg.Scheduler.CheckTimes)
	}
	if cfg.Cache.RefreshInterval != 30*time.Second {
		t.Fatalf("unexpected refresh interval: %v", cfg.Cache.RefreshInterval)
	}
	if len(cfg.Instruments) != 1 || cfg.Instruments[0].Code != "BRENT" {
		t.Fatalf("unexpected instruments: %+v", cfg.Instruments)
	}
}

func validConfig() *Config {
	return &Config{
		Scheduler: SchedulerConfig{CheckTimes: []string{"12:00"}, PollInterval: 5 * time.Second},
		Cache:     CacheConfig{RefreshInterval: 45 * time.Second},
		FanOut:    FanOutConfig{Workers: 50},
		Export:    ExportConfig{MaxDataPoints: 1000},
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty grid", func(c *Config) { c.Scheduler.CheckTimes = nil }},
		{"bad check time", func(c *Config) { c.Scheduler.CheckTimes = []string{"noon"} }},
		{"poll too slow", func(c *Config) { c.Scheduler.PollInterval = time.Minute }},
		{"zero poll", func(c *Config) { c.Scheduler.PollInterval = 0 }},
		{"zero workers", func(c *Config) { c.FanOut.Workers = 0 }},
		{"negative retention", func(c *Config) { c.Cache.RetentionPeriod = -time.Hour }},
		{"telegram without token", func(c *Config) { c.Telegram.Enabled = true }},
		{"instrument without code", func(c *Config) {
			c.Instruments = []InstrumentConfig{{Kind: KindHTML, URL: "u", Selector: "s", DefaultValue: 1}}
		}},
		{"duplicate instrument", func(c *Config) {
			inst := InstrumentConfig{Code: "BRENT", Kind: KindHTML, URL: "u", Selector: "s", DefaultValue: 1}
			c.Instruments = []InstrumentConfig{inst, inst}
		}},
		{"non-positive default", func(c *Config) {
			c.Instruments = []InstrumentConfig{{Code: "BRENT", Kind: KindHTML, URL: "u", Selector: "s"}}
		}},
		{"html without selector", func(c *Config) {
			c.Instruments = []InstrumentConfig{{Code: "BRENT", Kind: KindHTML, URL: "u", DefaultValue: 1}}
		}},
		{"feed without rpc", func(c *Config) {
			c.Instruments = []InstrumentConfig{{Code: "ETH", Kind: KindFeed, FeedAddress: "0x1", DefaultValue: 1}}
		}},
		{"unknown kind", func(c *Config) {
			c.Instruments = []InstrumentConfig{{Code: "BRENT", Kind: "rss", DefaultValue: 1}}
		}},
	}

	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestValidateAcceptsFeedWithRPC(t *testing.T) {
	cfg := validConfig()
	cfg.Ethereum.RPCURL = "https://rpc.example.com"
	cfg.Instruments = []InstrumentConfig{{Code: "ETH", Kind: KindFeed, FeedAddress: "0x1", DefaultValue: 1}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("feed instrument with RPC should validate: %v", err)
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := validConfig()
	if got := cfg.ResolveMaxPoints(0); got != 1000 {
		t.Fatalf("expected config default 1000, got %d", got)
	}
	if got := cfg.ResolveMaxPoints(50); got != 50 {
		t.Fatalf("expected override 50, got %d", got)
	}
}
