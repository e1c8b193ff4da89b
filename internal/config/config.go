// Package config loads pagebatch CLI settings from flags, PAGEBATCH_* environment
// variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/FiratKiziltepe/pagebatch/pkg/batch"
	"github.com/FiratKiziltepe/pagebatch/pkg/logging"
	"github.com/FiratKiziltepe/pagebatch/pkg/ratelimit"
)

// EnvPrefix is prepended to every environment override (PAGEBATCH_MODEL, ...).
const EnvPrefix = "PAGEBATCH"

// Config keys.
const (
	KeyModel           = "model"
	KeyAPIKey          = "api_key"
	KeyBaseURL         = "base_url"
	KeyRequestTimeout  = "request_timeout"
	KeyStrategy        = "strategy"
	KeyBatchSize       = "batch_size"
	KeyTypeHints       = "type_hints"
	KeyDesiredCount    = "desired_count"
	KeyPolicyFile      = "policy_file"
	KeyTimezone        = "timezone"
	KeyRetryAttempts   = "retry.max_attempts"
	KeyRetryMaxBackoff = "retry.max_backoff"
	KeyRedisAddr       = "redis.addr"
	KeyCacheTTL        = "redis.ttl"
	KeyPrefetchWorkers = "prefetch.workers"
	KeyLogLevel        = "log.level"
	KeyLogPretty       = "log.pretty"
	KeyControlAddr     = "control.addr"
)

// ErrMissingAPIKey is returned by Validate when no credential is configured.
var ErrMissingAPIKey = errors.New("api key is required (set PAGEBATCH_API_KEY or GOOGLE_API_KEY)")

// Config holds resolved CLI settings.
type Config struct {
	Model          string
	APIKey         string
	BaseURL        string
	RequestTimeout time.Duration

	Strategy     batch.Strategy
	BatchSize    int
	TypeHints    []string
	DesiredCount int

	PolicyFile      string
	Timezone        string
	RetryAttempts   int
	RetryMaxBackoff time.Duration

	// RedisAddr enables the extraction cache when non-empty.
	RedisAddr string
	CacheTTL  time.Duration

	// PrefetchWorkers > 0 warms the cache before the session starts.
	PrefetchWorkers int

	LogLevel  logging.LogLevel
	LogPretty bool

	// ControlAddr enables the HTTP control server when non-empty.
	ControlAddr string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyModel, "gemini-2.5-flash")
	v.SetDefault(KeyBaseURL, "https://generativelanguage.googleapis.com")
	v.SetDefault(KeyRequestTimeout, 120*time.Second)
	v.SetDefault(KeyStrategy, string(batch.UnitPerBatch))
	v.SetDefault(KeyBatchSize, 1)
	v.SetDefault(KeyDesiredCount, 0)
	v.SetDefault(KeyTimezone, "Local")
	v.SetDefault(KeyRetryAttempts, ratelimit.DefaultRetryConfig().MaxAttempts)
	v.SetDefault(KeyRetryMaxBackoff, ratelimit.DefaultRetryConfig().MaxBackoff)
	v.SetDefault(KeyCacheTTL, 24*time.Hour)
	v.SetDefault(KeyPrefetchWorkers, 0)
	v.SetDefault(KeyLogLevel, string(logging.LevelInfo))
	v.SetDefault(KeyLogPretty, true)
}

// NewViper returns a viper instance with defaults and environment binding applied.
// If file is non-empty it is read as the config file.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// GOOGLE_API_KEY is accepted as a fallback credential.
	if err := v.BindEnv(KeyAPIKey, EnvPrefix+"_API_KEY", "GOOGLE_API_KEY"); err != nil {
		return nil, err
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	return v, nil
}

// Load resolves a Config from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	strategy, err := batch.ParseStrategy(v.GetString(KeyStrategy))
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLogLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Model:           strings.TrimSpace(v.GetString(KeyModel)),
		APIKey:          strings.TrimSpace(v.GetString(KeyAPIKey)),
		BaseURL:         v.GetString(KeyBaseURL),
		RequestTimeout:  v.GetDuration(KeyRequestTimeout),
		Strategy:        strategy,
		BatchSize:       v.GetInt(KeyBatchSize),
		TypeHints:       splitList(v.GetStringSlice(KeyTypeHints)),
		DesiredCount:    v.GetInt(KeyDesiredCount),
		PolicyFile:      v.GetString(KeyPolicyFile),
		Timezone:        v.GetString(KeyTimezone),
		RetryAttempts:   v.GetInt(KeyRetryAttempts),
		RetryMaxBackoff: v.GetDuration(KeyRetryMaxBackoff),
		RedisAddr:       v.GetString(KeyRedisAddr),
		CacheTTL:        v.GetDuration(KeyCacheTTL),
		PrefetchWorkers: v.GetInt(KeyPrefetchWorkers),
		LogLevel:        level,
		LogPretty:       v.GetBool(KeyLogPretty),
		ControlAddr:     v.GetString(KeyControlAddr),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that do not depend on the API key.
func (c *Config) Validate() error {
	if c.Model == "" {
		return errors.New("model is required")
	}
	if c.Strategy == batch.FixedSizeGrouping && c.BatchSize < 1 {
		return fmt.Errorf("%w: %d", batch.ErrInvalidBatchSize, c.BatchSize)
	}
	if c.DesiredCount < 0 {
		return fmt.Errorf("desired_count must be >= 0, got %d", c.DesiredCount)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1, got %d", c.RetryAttempts)
	}
	if c.PrefetchWorkers < 0 {
		return fmt.Errorf("prefetch.workers must be >= 0, got %d", c.PrefetchWorkers)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// RequireAPIKey reports ErrMissingAPIKey when no key is set.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Location resolves Timezone for the daily quota rollover.
func (c *Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Retry returns the limiter retry settings.
func (c *Config) Retry() ratelimit.RetryConfig {
	r := ratelimit.DefaultRetryConfig()
	r.MaxAttempts = c.RetryAttempts
	if c.RetryMaxBackoff > 0 {
		r.MaxBackoff = c.RetryMaxBackoff
	}
	return r
}

// Logging returns the logger settings.
func (c *Config) Logging() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.LogLevel
	lc.Pretty = c.LogPretty
	return lc
}

// splitList accepts both YAML lists and comma-separated env values.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
