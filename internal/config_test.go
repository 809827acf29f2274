package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgconfig "github.com/starford/casedesk/pkg/config"
)

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.LLM.APIKey = "test-key"
	return cfg
}

func TestDefaultConfigNeedsOnlyAPIKey(t *testing.T) {
	cfg := NewDefaultConfig()
	require.Error(t, cfg.Validate())
	require.NoError(t, validConfig().Validate())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"port zero", func(c *Config) { c.App.HTTP.Port = 0 }, true},
		{"port too high", func(c *Config) { c.App.HTTP.Port = 70000 }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"postgres", func(c *Config) {
			c.Database.Driver = "postgres"
			c.Database.DSN = "postgres://localhost/casedesk"
		}, false},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }, true},
		{"fs without path", func(c *Config) { c.Storage.Path = "" }, true},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = StorageS3 }, true},
		{"s3 complete", func(c *Config) {
			c.Storage.Backend = StorageS3
			c.Storage.S3 = S3Config{Bucket: "docs", Region: "eu-west-1", Endpoint: "http://minio:9000"}
		}, false},
		{"s3 key without secret", func(c *Config) {
			c.Storage.Backend = StorageS3
			c.Storage.S3 = S3Config{Bucket: "docs", Region: "eu-west-1", AccessKey: "AKIA"}
		}, true},
		{"unknown session backend", func(c *Config) { c.Session.Backend = "memcached" }, true},
		{"short ttl", func(c *Config) { c.Session.TTL = time.Second }, true},
		{"redis without address", func(c *Config) { c.Session.Backend = SessionRedis }, true},
		{"redis complete", func(c *Config) {
			c.Session.Backend = SessionRedis
			c.Session.Redis.Address = "localhost:6379"
		}, false},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "llama" }, true},
		{"openai without base url", func(c *Config) { c.LLM.Provider = ProviderOpenAI }, true},
		{"openai complete", func(c *Config) {
			c.LLM.Provider = ProviderOpenAI
			c.LLM.BaseURL = "https://api.openai.com/v1"
		}, false},
		{"temperature too high", func(c *Config) { c.LLM.Temperature = 3 }, true},
		{"no output tokens", func(c *Config) { c.LLM.MaxOutputTokens = 0 }, true},
		{"tiny document budget", func(c *Config) { c.Chat.MaxDocumentChars = 10 }, true},
		{"inbox without path", func(c *Config) {
			c.Inbox.Enabled = true
			c.Inbox.Path = ""
		}, true},
		{"disabled inbox ignores path", func(c *Config) { c.Inbox.Path = "" }, false},
		{"metrics relative path", func(c *Config) { c.Metrics.Path = "metrics" }, true},
		{"metrics disabled", func(c *Config) {
			c.Metrics.Enabled = false
			c.Metrics.Path = ""
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadSampleConfig(t *testing.T) {
	t.Setenv("LLM_API_KEY", "from-env")
	yaml := `
app:
  log_level: debug
  http:
    port: 9000
database:
  driver: sqlite3
  dsn: ${CASEDESK_DB:-./test.db}
session:
  backend: sql
  ttl: 12h
llm:
  provider: gemini
  api_key: ${LLM_API_KEY}
  model: gemini-2.5-flash
  timeout: 30s
inbox:
  enabled: true
  path: ./inbox
  settle: 500ms
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg := NewDefaultConfig()
	require.NoError(t, pkgconfig.Load(path, cfg))

	assert.Equal(t, slog.LevelDebug, cfg.App.LogLevel)
	assert.Equal(t, ":9000", cfg.App.HTTP.Address())
	assert.Equal(t, "./test.db", cfg.Database.DSN)
	assert.Equal(t, 12*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Inbox.Settle)
	assert.Equal(t, StorageFS, cfg.Storage.Backend)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}
