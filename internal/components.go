package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/starford/casedesk/internal/auth"
	"github.com/starford/casedesk/internal/chat"
	"github.com/starford/casedesk/internal/chatctx"
	"github.com/starford/casedesk/internal/docservice"
	"github.com/starford/casedesk/internal/llm"
	"github.com/starford/casedesk/internal/metrics"
	"github.com/starford/casedesk/internal/session"
	"github.com/starford/casedesk/internal/sse"
	"github.com/starford/casedesk/internal/storage"
	"github.com/starford/casedesk/internal/store"
)

// components are the long-lived services shared by every entry point.
type components struct {
	logger   *slog.Logger
	db       *store.DB
	blobs    storage.Provider
	redis    *redis.Client
	sessions session.Store
	auth     *auth.Service
	broker   *sse.Broker
	metrics  *metrics.Metrics
	docs     *docservice.Service
	relay    *chat.Relay
}

func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

// build opens the datastore, blob storage and session store and assembles
// the services on top. The model provider is only created when withModel
// is set. Call close on the result even when build fails half way.
func build(ctx context.Context, cfg *Config, logger *slog.Logger, withModel bool) (*components, error) {
	c := &components{logger: logger}

	db, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return c, fmt.Errorf("init database: %w", err)
	}
	c.db = db

	if c.blobs, err = openBlobs(ctx, cfg.Storage); err != nil {
		return c, fmt.Errorf("init storage: %w", err)
	}

	switch cfg.Session.Backend {
	case SessionRedis:
		rdb, err := session.Dial(ctx, cfg.Session.Redis.Address, cfg.Session.Redis.Password, cfg.Session.Redis.DB)
		if err != nil {
			return c, fmt.Errorf("init sessions: %w", err)
		}
		c.redis = rdb
		c.sessions = session.NewRedisStore(rdb)
	default:
		c.sessions = session.NewDBStore(db)
	}

	c.auth = auth.NewService(db, c.sessions, cfg.Session.TTL, 0, logger)
	c.broker = sse.NewBroker(0)
	c.metrics = metrics.New()
	c.docs = docservice.NewService(c.blobs, db, c.broker, c.metrics, logger)

	var provider llm.Provider
	if withModel {
		if provider, err = openProvider(ctx, cfg.LLM); err != nil {
			return c, fmt.Errorf("init llm provider: %w", err)
		}
	}
	c.relay = chat.NewRelay(
		chatctx.NewBuilder(db, cfg.Chat.MaxDocumentChars),
		provider,
		chat.WithGeneration(cfg.LLM.Temperature, cfg.LLM.MaxOutputTokens),
		chat.WithTimeout(cfg.LLM.Timeout),
		chat.WithLogger(logger),
		chat.WithObserver(c.metrics),
	)
	return c, nil
}

func (c *components) close() {
	if c.broker != nil {
		c.broker.Close()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.logger.Warn("redis close failed", slog.String("error", err.Error()))
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Warn("database close failed", slog.String("error", err.Error()))
		}
	}
}

// ready reports whether the datastore and, when configured, Redis respond.
func (c *components) ready(ctx context.Context) error {
	if err := c.db.Ping(ctx); err != nil {
		return err
	}
	if c.redis != nil {
		return c.redis.Ping(ctx).Err()
	}
	return nil
}

func openBlobs(ctx context.Context, cfg StorageConfig) (storage.Provider, error) {
	if cfg.Backend == StorageS3 {
		return storage.NewS3(ctx, storage.S3Options{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PathStyle: cfg.S3.PathStyle,
			Prefix:    cfg.S3.Prefix,
		})
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return storage.NewFS(cfg.Path)
}

func openProvider(ctx context.Context, cfg LLMConfig) (llm.Provider, error) {
	if cfg.Provider == ProviderOpenAI {
		return llm.NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model, nil), nil
	}
	var opts []llm.GeminiOption
	if cfg.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(cfg.BaseURL))
	}
	return llm.NewGemini(ctx, cfg.APIKey, cfg.Model, opts...)
}
