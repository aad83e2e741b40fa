package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"ratewatch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig          `mapstructure:"app"`
	Logging     logging.Config     `mapstructure:"logging"`
	Database    DatabaseConfig     `mapstructure:"database"`
	Scheduler   SchedulerConfig    `mapstructure:"scheduler"`
	Cache       CacheConfig        `mapstructure:"cache"`
	FanOut      FanOutConfig       `mapstructure:"fanout"`
	Telegram    TelegramConfig     `mapstructure:"telegram"`
	Metrics     MetricsConfig      `mapstructure:"metrics"`
	Ethereum    EthereumConfig     `mapstructure:"ethereum"`
	Converter   ConverterConfig    `mapstructure:"converter"`
	Export      ExportConfig       `mapstructure:"export"`
	Instruments []InstrumentConfig `mapstructure:"instruments"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs the check-time grid and the polling cadence of
// the loop that watches for grid boundaries.
type SchedulerConfig struct {
	CheckTimes   []string      `mapstructure:"check_times"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// CacheConfig governs the warm-value refresh loop and sample retention.
// A zero retention period disables pruning.
type CacheConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	RecordHistory   bool          `mapstructure:"record_history"`
	RetentionPeriod time.Duration `mapstructure:"retention_period"`
}

// FanOutConfig bounds notification-round concurrency.
type FanOutConfig struct {
	Workers int `mapstructure:"workers"`
}

// TelegramConfig parameterises the outbound message channel.
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	APIBase        string        `mapstructure:"api_base"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// MetricsConfig controls the operational HTTP endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// EthereumConfig covers on-chain price feed access.
type EthereumConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ConverterConfig points at the generic currency-pair page.
type ConverterConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// InstrumentConfig declares one tracked instrument and its source adapter.
type InstrumentConfig struct {
	Code         string  `mapstructure:"code"`
	Kind         string  `mapstructure:"kind"`
	URL          string  `mapstructure:"url"`
	Selector     string  `mapstructure:"selector"`
	FeedAddress  string  `mapstructure:"feed_address"`
	DefaultValue float64 `mapstructure:"default_value"`
}

// Instrument source kinds.
const (
	KindHTML = "html"
	KindFeed = "feed"
)

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RATEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ratewatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.check_times", []string{
		"00:00", "02:00", "04:00", "06:00", "08:00", "10:00",
		"12:00", "14:00", "16:00", "18:00", "20:00", "22:00",
	})
	v.SetDefault("scheduler.poll_interval", "5s")

	v.SetDefault("cache.refresh_interval", "45s")
	v.SetDefault("cache.record_history", true)
	v.SetDefault("cache.retention_period", "720h")

	v.SetDefault("fanout.workers", 50)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("telegram.request_timeout", "10s")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("ethereum.request_timeout", "10s")

	v.SetDefault("converter.base_url", "https://www.xe.com/currencyconverter/convert")
	v.SetDefault("converter.request_timeout", "10s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs sanity checks on configuration values. Malformed
// required configuration is fatal at startup.
func (c *Config) Validate() error {
	if len(c.Scheduler.CheckTimes) == 0 {
		return fmt.Errorf("scheduler.check_times must not be empty")
	}
	for _, ct := range c.Scheduler.CheckTimes {
		if _, err := time.Parse("15:04", ct); err != nil {
			return fmt.Errorf("scheduler.check_times: invalid entry %q", ct)
		}
	}
	if c.Scheduler.PollInterval <= 0 || c.Scheduler.PollInterval >= time.Minute {
		return fmt.Errorf("scheduler.poll_interval must be positive and below one minute")
	}
	if c.Cache.RefreshInterval <= 0 {
		return fmt.Errorf("cache.refresh_interval must be greater than zero")
	}
	if c.Cache.RetentionPeriod < 0 {
		return fmt.Errorf("cache.retention_period must not be negative")
	}
	if c.FanOut.Workers <= 0 {
		return fmt.Errorf("fanout.workers must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required when telegram.enabled is set")
	}

	seen := make(map[string]struct{}, len(c.Instruments))
	for _, inst := range c.Instruments {
		if inst.Code == "" {
			return fmt.Errorf("instruments: code must not be empty")
		}
		if _, dup := seen[inst.Code]; dup {
			return fmt.Errorf("instruments: duplicate code %q", inst.Code)
		}
		seen[inst.Code] = struct{}{}

		if inst.DefaultValue <= 0 {
			return fmt.Errorf("instruments: %s default_value must be greater than zero", inst.Code)
		}

		switch inst.Kind {
		case KindHTML:
			if inst.URL == "" || inst.Selector == "" {
				return fmt.Errorf("instruments: %s requires url and selector", inst.Code)
			}
		case KindFeed:
			if inst.FeedAddress == "" {
				return fmt.Errorf("instruments: %s requires feed_address", inst.Code)
			}
			if c.Ethereum.RPCURL == "" {
				return fmt.Errorf("ethereum.rpc_url is required for feed instrument %s", inst.Code)
			}
		default:
			return fmt.Errorf("instruments: %s has unsupported kind %q", inst.Code, inst.Kind)
		}
	}

	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
