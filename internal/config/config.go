package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	ProviderQuandl = "quandl"
	ProviderAlpaca = "alpaca"

	DefaultConfigPath = "configs/pricegraph.yaml"
	DefaultQuandlURL  = "https://www.quandl.com/api/v3/datatables/WIKI/PRICES.json"
)

// Config is built once at startup and passed by pointer into every
// constructor. Nothing mutates it after Load returns.
type Config struct {
	// Server
	Port        int
	Environment string
	LogLevel    string
	AppName     string

	// Upstream data provider
	Provider               string
	QuandlAPIKey           string
	QuandlBaseURL          string
	AlpacaAPIKey           string
	AlpacaAPISecret        string
	UpstreamTimeoutSeconds int
	UpstreamRetries        int

	// Rate limiting on /pricegraph
	RateLimitPerSecond float64
	RateLimitBurst     int

	// Lookup history
	DBHost               string
	DBPort               int
	DBName               string
	DBUser               string
	DBPassword           string
	SQLitePath           string
	HistoryRetentionDays int
	PruneCron            string

	// Alerts
	WebhookURL string
}

// fileConfig mirrors the optional YAML file. Every value here is a
// fallback; environment variables win.
type fileConfig struct {
	Server struct {
		Port        int    `yaml:"port"`
		Environment string `yaml:"environment"`
		LogLevel    string `yaml:"log_level"`
		AppName     string `yaml:"app_name"`
	} `yaml:"server"`
	Upstream struct {
		Provider       string `yaml:"provider"`
		QuandlBaseURL  string `yaml:"quandl_base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		Retries        int    `yaml:"retries"`
	} `yaml:"upstream"`
	RateLimit struct {
		PerSecond float64 `yaml:"per_second"`
		Burst     int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	History struct {
		DBHost        string `yaml:"db_host"`
		DBPort        int    `yaml:"db_port"`
		DBName        string `yaml:"db_name"`
		SQLitePath    string `yaml:"sqlite_path"`
		RetentionDays int    `yaml:"retention_days"`
		PruneCron     string `yaml:"prune_cron"`
	} `yaml:"history"`
}

// Load reads .env, then the YAML file named by CONFIG_PATH (missing file is
// fine), then applies environment overrides and defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFrom(envStr("CONFIG_PATH", DefaultConfigPath))
}

func LoadFrom(path string) (*Config, error) {
	var fc fileConfig

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg := &Config{
		// Server
		Port:        envInt("PORT", orInt(fc.Server.Port, 33507)),
		Environment: envStr("ENVIRONMENT", orStr(fc.Server.Environment, "development")),
		LogLevel:    envStr("LOG_LEVEL", orStr(fc.Server.LogLevel, "info")),
		AppName:     envStr("APP_NAME", orStr(fc.Server.AppName, "PriceGraph")),

		// Upstream
		Provider:               strings.ToLower(envStr("DATA_PROVIDER", orStr(fc.Upstream.Provider, ProviderQuandl))),
		QuandlAPIKey:           envStr("QUANDL", ""),
		QuandlBaseURL:          envStr("QUANDL_BASE_URL", orStr(fc.Upstream.QuandlBaseURL, DefaultQuandlURL)),
		AlpacaAPIKey:           envStr("ALPACA_API_KEY", ""),
		AlpacaAPISecret:        envStr("ALPACA_API_SECRET", ""),
		UpstreamTimeoutSeconds: envInt("UPSTREAM_TIMEOUT_SECONDS", orInt(fc.Upstream.TimeoutSeconds, 15)),
		UpstreamRetries:        envInt("UPSTREAM_RETRIES", fc.Upstream.Retries),

		// Rate limiting
		RateLimitPerSecond: envFloat("RATE_LIMIT_PER_SECOND", orFloat(fc.RateLimit.PerSecond, 5)),
		RateLimitBurst:     envInt("RATE_LIMIT_BURST", orInt(fc.RateLimit.Burst, 15)),

		// History
		DBHost:               envStr("DB_HOST", fc.History.DBHost),
		DBPort:               envInt("DB_PORT", orInt(fc.History.DBPort, 5432)),
		DBName:               envStr("DB_NAME", fc.History.DBName),
		DBUser:               envStr("DB_USER", ""),
		DBPassword:           envStr("DB_PASSWORD", ""),
		SQLitePath:           envStr("SQLITE_PATH", fc.History.SQLitePath),
		HistoryRetentionDays: envInt("HISTORY_RETENTION_DAYS", orInt(fc.History.RetentionDays, 30)),
		PruneCron:            envStr("PRUNE_CRON", orStr(fc.History.PruneCron, "0 0 3 * * *")),

		// Alerts
		WebhookURL: envStr("WEBHOOK_URL", ""),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	switch c.Provider {
	case ProviderQuandl:
		if c.QuandlAPIKey == "" {
			log.Warn().Msg("QUANDL not set, upstream requests will fail to authenticate")
		}
	case ProviderAlpaca:
		if c.AlpacaAPIKey == "" || c.AlpacaAPISecret == "" {
			errs = append(errs, "ALPACA_API_KEY and ALPACA_API_SECRET are required when DATA_PROVIDER=alpaca")
		}
	default:
		errs = append(errs, fmt.Sprintf("DATA_PROVIDER must be %q or %q, got %q", ProviderQuandl, ProviderAlpaca, c.Provider))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT out of range: %d", c.Port))
	}
	if c.UpstreamTimeoutSeconds <= 0 {
		errs = append(errs, "UPSTREAM_TIMEOUT_SECONDS must be positive")
	}
	if c.UpstreamRetries < 0 {
		errs = append(errs, "UPSTREAM_RETRIES must not be negative")
	}
	if c.RateLimitPerSecond <= 0 || c.RateLimitBurst <= 0 {
		log.Warn().Msg("RATE_LIMIT_PER_SECOND or RATE_LIMIT_BURST is 0, /pricegraph is not rate limited")
	}
	if c.HistoryRetentionDays <= 0 {
		errs = append(errs, "HISTORY_RETENTION_DAYS must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (c *Config) Print() {
	log.Info().
		Str("app", c.AppName).
		Str("environment", c.Environment).
		Int("port", c.Port).
		Str("provider", c.Provider).
		Str("credential", boolLabel(c.hasCredential(), "configured", "not set")).
		Int("timeout_s", c.UpstreamTimeoutSeconds).
		Int("retries", c.UpstreamRetries).
		Str("history", c.HistoryBackend()).
		Int("retention_days", c.HistoryRetentionDays).
		Str("alerts", boolLabel(c.WebhookURL != "", "webhook", "disabled")).
		Msg("configuration loaded")
}

// HistoryBackend names the lookup-history store this config selects.
func (c *Config) HistoryBackend() string {
	switch {
	case c.UsePostgres():
		return "postgres"
	case c.SQLitePath != "":
		return "sqlite"
	default:
		return "none"
	}
}

func (c *Config) UsePostgres() bool {
	return c.DBHost != "" && c.DBName != ""
}

// DSN escapes credentials, so passwords may contain any character.
func (c *Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) hasCredential() bool {
	if c.Provider == ProviderAlpaca {
		return c.AlpacaAPIKey != "" && c.AlpacaAPISecret != ""
	}
	return c.QuandlAPIKey != ""
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func orStr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func orInt(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}

func orFloat(v, fallback float64) float64 {
	if v != 0 {
		return v
	}
	return fallback
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
