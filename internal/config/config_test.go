package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FiratKiziltepe/pagebatch/pkg/batch"
	"github.com/FiratKiziltepe/pagebatch/pkg/logging"
)

func TestLoad_Defaults(t *testing.T) {
	v, err := NewViper("")
	require.NoError(t, err)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash", cfg.Model)
	assert.Equal(t, batch.UnitPerBatch, cfg.Strategy)
	assert.Equal(t, 1, cfg.BatchSize)
	assert.Equal(t, 5, cfg.RetryAttempts)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, logging.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.ControlAddr)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("PAGEBATCH_MODEL", "gemini-2.5-pro")
	t.Setenv("PAGEBATCH_STRATEGY", "group")
	t.Setenv("PAGEBATCH_BATCH_SIZE", "4")
	t.Setenv("PAGEBATCH_TYPE_HINTS", "flashcard, quiz")
	t.Setenv("PAGEBATCH_REDIS_ADDR", "localhost:6379")
	t.Setenv("PAGEBATCH_LOG_LEVEL", "debug")

	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-pro", cfg.Model)
	assert.Equal(t, batch.FixedSizeGrouping, cfg.Strategy)
	assert.Equal(t, 4, cfg.BatchSize)
	assert.Equal(t, []string{"flashcard", "quiz"}, cfg.TypeHints)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, logging.LevelDebug, cfg.LogLevel)
}

func TestLoad_APIKeyFallback(t *testing.T) {
	t.Setenv("PAGEBATCH_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "google-key", cfg.APIKey)
	assert.NoError(t, cfg.RequireAPIKey())

	t.Setenv("PAGEBATCH_API_KEY", "own-key")
	v, err = NewViper("")
	require.NoError(t, err)
	cfg, err = Load(v)
	require.NoError(t, err)
	assert.Equal(t, "own-key", cfg.APIKey)
}

func TestRequireAPIKey(t *testing.T) {
	cfg := &Config{}
	assert.ErrorIs(t, cfg.RequireAPIKey(), ErrMissingAPIKey)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagebatch.yaml")
	content := `
model: gemini-2.0-flash
strategy: fixed-size-grouping
batch_size: 3
type_hints:
  - summary
retry:
  max_attempts: 2
  max_backoff: 30s
redis:
  addr: cache:6379
  ttl: 1h
control:
  addr: 127.0.0.1:8089
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v, err := NewViper(path)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.0-flash", cfg.Model)
	assert.Equal(t, 3, cfg.BatchSize)
	assert.Equal(t, []string{"summary"}, cfg.TypeHints)
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, "127.0.0.1:8089", cfg.ControlAddr)

	retry := cfg.Retry()
	assert.Equal(t, 2, retry.MaxAttempts)
	assert.Equal(t, 30*time.Second, retry.MaxBackoff)
}

func TestNewViper_MissingFile(t *testing.T) {
	_, err := NewViper(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{name: "unknown strategy", key: KeyStrategy, val: "random"},
		{name: "zero group size", key: KeyBatchSize, val: 0},
		{name: "bad log level", key: KeyLogLevel, val: "chatty"},
		{name: "negative desired count", key: KeyDesiredCount, val: -1},
		{name: "zero attempts", key: KeyRetryAttempts, val: 0},
		{name: "bad timezone", key: KeyTimezone, val: "Mars/Olympus"},
		{name: "empty model", key: KeyModel, val: " "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewViper("")
			require.NoError(t, err)
			if tt.key == KeyBatchSize {
				v.Set(KeyStrategy, string(batch.FixedSizeGrouping))
			}
			v.Set(tt.key, tt.val)

			_, err = Load(v)
			assert.Error(t, err)
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := &Config{Timezone: "UTC"}
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	cfg.Timezone = ""
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}
