package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/casedesk/internal/chat"
	"github.com/starford/casedesk/internal/chatctx"
	"github.com/starford/casedesk/internal/store"
)

// Backends.
const (
	StorageFS = "fs"
	StorageS3 = "s3"

	SessionSQL   = "sql"
	SessionRedis = "redis"

	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Database DatabaseConfig    `yaml:"database"`
	Storage  StorageConfig     `yaml:"storage"`
	Session  SessionConfig     `yaml:"session"`
	LLM      LLMConfig         `yaml:"llm"`
	Chat     ChatConfig        `yaml:"chat"`
	Inbox    InboxConfig       `yaml:"inbox"`
	Metrics  MetricsConfig     `yaml:"metrics"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    validation.Validatable
	}{
		{"app", &c.App},
		{"database", &c.Database},
		{"storage", &c.Storage},
		{"session", &c.Session},
		{"llm", &c.LLM},
		{"chat", &c.Chat},
		{"inbox", &c.Inbox},
		{"metrics", &c.Metrics},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel      slog.Level `yaml:"log_level"`
	HTTP          HTTPConfig `yaml:"http"`
	SecureCookies bool       `yaml:"secure_cookies"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// DatabaseConfig selects the relational datastore.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(store.DriverSQLite, store.DriverPostgres)),
		validation.Field(&c.DSN, validation.Required),
	)
}

// StorageConfig selects where document bytes are kept.
type StorageConfig struct {
	Backend string   `yaml:"backend"`
	Path    string   `yaml:"path"`
	S3      S3Config `yaml:"s3"`
}

// S3Config holds S3 bucket settings.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PathStyle bool   `yaml:"path_style"`
	Prefix    string `yaml:"prefix"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(StorageFS, StorageS3)),
		validation.Field(&c.Path, validation.When(c.Backend == StorageFS, validation.Required)),
	); err != nil {
		return err
	}
	if c.Backend != StorageS3 {
		return nil
	}
	return validation.ValidateStruct(&c.S3,
		validation.Field(&c.S3.Bucket, validation.Required),
		validation.Field(&c.S3.Region, validation.Required),
		validation.Field(&c.S3.Endpoint, is.URL),
		validation.Field(&c.S3.SecretKey, validation.When(c.S3.AccessKey != "", validation.Required)),
	)
}

// SessionConfig selects the session store.
type SessionConfig struct {
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
	Redis   RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Validate validates the session configuration.
func (c *SessionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(SessionSQL, SessionRedis)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.Redis, validation.When(c.Backend == SessionRedis, validation.By(func(any) error {
			return validation.ValidateStruct(&c.Redis,
				validation.Field(&c.Redis.Address, validation.Required),
				validation.Field(&c.Redis.DB, validation.Min(0)),
			)
		}))),
	)
}

// LLMConfig selects and tunes the language-model provider.
type LLMConfig struct {
	Provider        string        `yaml:"provider"`
	APIKey          string        `yaml:"api_key"`
	Model           string        `yaml:"model"`
	BaseURL         string        `yaml:"base_url"`
	Temperature     float64       `yaml:"temperature"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
}

// Validate validates the LLM configuration.
func (c *LLMConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(ProviderGemini, ProviderOpenAI)),
		validation.Field(&c.APIKey, validation.Required),
		validation.Field(&c.BaseURL,
			validation.When(c.Provider == ProviderOpenAI, validation.Required),
			is.URL,
		),
		validation.Field(&c.Temperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&c.MaxOutputTokens, validation.Required, validation.Min(1)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// ChatConfig tunes context aggregation.
type ChatConfig struct {
	MaxDocumentChars int `yaml:"max_document_chars"`
}

// Validate validates the chat configuration.
func (c *ChatConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxDocumentChars, validation.Required, validation.Min(100)),
	)
}

// InboxConfig enables the drop-folder importer.
type InboxConfig struct {
	Enabled bool          `yaml:"enabled"`
	Path    string        `yaml:"path"`
	Settle  time.Duration `yaml:"settle"`
}

// Validate validates the inbox configuration.
func (c *InboxConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Settle, validation.Min(10*time.Millisecond)),
	)
}

// MetricsConfig exposes Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the metrics configuration.
func (c *MetricsConfig) Validate() error {
	if c.Enabled && (c.Path == "" || c.Path[0] != '/') {
		return errors.New("path must start with '/'")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Database: DatabaseConfig{
			Driver: store.DriverSQLite,
			DSN:    "./casedesk.db",
		},
		Storage: StorageConfig{
			Backend: StorageFS,
			Path:    "./data/documents",
		},
		Session: SessionConfig{
			Backend: SessionSQL,
			TTL:     7 * 24 * time.Hour,
		},
		LLM: LLMConfig{
			Provider:        ProviderGemini,
			Model:           "gemini-2.5-flash",
			Temperature:     chat.DefaultTemperature,
			MaxOutputTokens: chat.DefaultMaxOutputTokens,
			Timeout:         2 * time.Minute,
		},
		Chat: ChatConfig{
			MaxDocumentChars: chatctx.DefaultMaxDocumentChars,
		},
		Inbox: InboxConfig{
			Path:   "./data/inbox",
			Settle: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
