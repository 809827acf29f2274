// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/casedesk/internal/api"
	"github.com/starford/casedesk/internal/inbox"
	"github.com/starford/casedesk/internal/mcpserver"
)

const (
	sessionPurgeInterval = time.Hour
	reindexBatch         = 500
)

// Run starts the HTTP server and background workers with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("session_backend", cfg.Session.Backend),
		slog.String("llm_provider", cfg.LLM.Provider),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := build(ctx, cfg, logger, true)
	defer c.close()
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newRouter(cfg, c),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Inbox.Enabled {
		w := inbox.New(cfg.Inbox.Path, c.docs, cfg.Inbox.Settle, logger)
		g.Go(func() error {
			logger.Info("Starting inbox watcher", slog.String("path", cfg.Inbox.Path))
			if err := w.Run(gCtx); err != nil {
				return fmt.Errorf("inbox watcher error: %w", err)
			}
			return nil
		})
	}

	if cfg.Session.Backend == SessionSQL {
		g.Go(func() error {
			purgeSessions(gCtx, c, sessionPurgeInterval)
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Ends open SSE subscriptions so Shutdown does not wait on them.
		c.broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// ServeMCP runs the MCP stdio server for userID until stdin closes.
// Logs go to stderr because stdout carries the protocol.
func ServeMCP(ctx context.Context, userID string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config, os.Stderr)
	slog.SetDefault(logger)

	c, err := build(ctx, app.config, logger, false)
	defer c.close()
	if err != nil {
		return err
	}
	if _, err := c.db.GetUser(ctx, userID); err != nil {
		return fmt.Errorf("mcp user %s: %w", userID, err)
	}

	logger.Info("Starting MCP server", slog.String("user_id", userID))
	return mcpserver.New(userID, c.db, c.docs, c.relay).ServeStdio()
}

// Reindex re-extracts text for stored documents that have none and
// returns how many were updated.
func Reindex(ctx context.Context, opts ...Option) (int, error) {
	app, err := newApplication(opts)
	if err != nil {
		return 0, err
	}
	logger := newLogger(app.config, os.Stdout)
	slog.SetDefault(logger)

	c, err := build(ctx, app.config, logger, false)
	defer c.close()
	if err != nil {
		return 0, err
	}

	n, err := c.docs.Reindex(ctx, reindexBatch)
	if err != nil {
		return n, fmt.Errorf("reindex: %w", err)
	}
	logger.Info("Reindex finished", slog.Int("updated", n))
	return n, nil
}

func newRouter(cfg *Config, c *components) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := c.ready(ctx); err != nil {
			c.logger.Warn("readiness check failed", slog.String("error", err.Error()))
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, c.metrics.Handler())
	}

	r.Mount("/api", api.NewRouter(api.Deps{
		Auth:          c.auth,
		Store:         c.db,
		Documents:     c.docs,
		Relay:         c.relay,
		Broker:        c.broker,
		SecureCookies: cfg.App.SecureCookies,
	}))
	return r
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, status)
}

// purgeSessions deletes expired session rows every interval until ctx ends.
func purgeSessions(ctx context.Context, c *components, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := c.db.DeleteExpiredSessions(ctx, now)
			if err != nil {
				c.logger.Warn("session purge failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				c.logger.Info("expired sessions purged", slog.Int64("count", n))
			}
		}
	}
}
