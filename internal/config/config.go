package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"dealwatcher/internal/logging"
)

// Source modes selecting the active product fetcher.
const (
	ModeScrape = "scrape"
	ModeAPI    = "api"
)

// Config materialises application configuration. It is resolved once at
// startup and passed around as an immutable snapshot.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Source    SourceConfig    `mapstructure:"source"`
	Discount  DiscountConfig  `mapstructure:"discount"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Notify    NotifyConfig    `mapstructure:"notify"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// SourceConfig selects and parameterises the upstream product source.
type SourceConfig struct {
	Mode           string        `mapstructure:"mode"`
	Categories     []string      `mapstructure:"categories"`
	MaxPerCategory int           `mapstructure:"max_per_category"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Retry          RetryConfig   `mapstructure:"retry"`
	API            APIConfig     `mapstructure:"api"`
	Scrape         ScrapeConfig  `mapstructure:"scrape"`
}

// RetryConfig bounds transport-failure retries.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
}

// APIConfig covers the authenticated products API.
type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Key     string `mapstructure:"key"`
}

// ScrapeConfig covers the HTML scrape path.
type ScrapeConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	UserAgents []string      `mapstructure:"user_agents"`
	MinDelay   time.Duration `mapstructure:"min_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

// DiscountConfig holds the deal predicate threshold. The threshold is the
// retained price fraction: 0.35 means 65% or more off.
type DiscountConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

// SchedulerConfig governs check cadence.
type SchedulerConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	RunImmediately bool          `mapstructure:"run_immediately"`
	StartupDelay   time.Duration `mapstructure:"startup_delay"`
}

// LedgerConfig selects the dedup ledger backend: a JSON file by default, or
// Postgres when a DSN is set.
type LedgerConfig struct {
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// NotifyConfig defines notification channel routing.
type NotifyConfig struct {
	Email EmailConfig `mapstructure:"email"`
}

// EmailConfig holds SMTP channel parameters.
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
	Password string `mapstructure:"password"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DEALWATCHER")
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
	v.SetDefault("app.name", "dealwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("source.mode", ModeScrape)
	v.SetDefault("source.categories", []string{"laptop", "desktop computer"})
	v.SetDefault("source.max_per_category", 100)
	v.SetDefault("source.request_timeout", "15s")
	v.SetDefault("source.retry.max_attempts", 3)
	v.SetDefault("source.retry.base_delay", "1s")
	v.SetDefault("source.api.base_url", "https://api.bestbuy.com/v1")
	v.SetDefault("source.scrape.base_url", "https://www.bestbuy.com")
	v.SetDefault("source.scrape.min_delay", "2s")
	v.SetDefault("source.scrape.max_delay", "5s")

	v.SetDefault("discount.threshold", 0.35)

	v.SetDefault("scheduler.interval", "30m")
	v.SetDefault("scheduler.run_immediately", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("ledger.path", "deals_found.json")
	v.SetDefault("ledger.max_open_conns", 5)
	v.SetDefault("ledger.conn_max_lifetime", "30m")

	v.SetDefault("notify.email.enabled", false)
	v.SetDefault("notify.email.smtp_host", "smtp.gmail.com")
	v.SetDefault("notify.email.smtp_port", 587)
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

// Validate performs basic sanity checks on the configuration values.
// Credential and threshold defects surface here, before the first cycle.
func (c *Config) Validate() error {
	if c.Discount.Threshold <= 0 || c.Discount.Threshold > 1 {
		return fmt.Errorf("discount.threshold must be in (0, 1], got %v", c.Discount.Threshold)
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Source.MaxPerCategory <= 0 {
		return fmt.Errorf("source.max_per_category must be greater than zero")
	}
	if len(c.Source.Categories) == 0 {
		return fmt.Errorf("source.categories must not be empty")
	}

	switch c.Source.Mode {
	case ModeScrape:
	case ModeAPI:
		if strings.TrimSpace(c.Source.API.Key) == "" {
			return fmt.Errorf("source.api.key is required in api mode")
		}
	default:
		return fmt.Errorf("source.mode must be %q or %q, got %q", ModeScrape, ModeAPI, c.Source.Mode)
	}

	if c.Ledger.DSN == "" && c.Ledger.Path == "" {
		return fmt.Errorf("ledger.path is required when ledger.dsn is not set")
	}

	if c.Notify.Email.Enabled {
		if c.Notify.Email.From == "" || c.Notify.Email.To == "" {
			return fmt.Errorf("notify.email.from and notify.email.to are required when email is enabled")
		}
		if c.Notify.Email.SMTPHost == "" {
			return fmt.Errorf("notify.email.smtp_host is required when email is enabled")
		}
		if c.Notify.Email.Password == "" {
			return fmt.Errorf("notify.email.password is required when email is enabled")
		}
	}

	return nil
}
