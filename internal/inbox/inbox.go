// Package inbox imports files dropped into per-user directories.
//
// Layout: <root>/<userID>/<file>. A file is imported once it has not
// changed for the settle interval, then removed from the inbox.
package inbox

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/casedesk/internal/docservice"
	"github.com/starford/casedesk/internal/models"
)

// Importer stores an inbox file as a document.
type Importer interface {
	Upload(ctx context.Context, userID string, u docservice.Upload) (*models.Document, error)
}

// Watcher watches an inbox root.
type Watcher struct {
	root     string
	importer Importer
	settle   time.Duration
	logger   *slog.Logger
}

// New creates a Watcher. settle defaults to two seconds.
func New(root string, importer Importer, settle time.Duration, logger *slog.Logger) *Watcher {
	if settle <= 0 {
		settle = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{root: root, importer: importer, settle: settle, logger: logger}
}

// Run watches the inbox until ctx is cancelled. Files already present when
// Run starts are imported on the first settle tick.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.root); err != nil {
		return err
	}

	// pending maps absolute file paths to their last observed change.
	pending := make(map[string]time.Time)
	stale := time.Now().Add(-w.settle)

	entries, err := os.ReadDir(w.root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(w.root, e.Name())
		if err := fw.Add(dir); err != nil {
			return err
		}
		w.collect(dir, pending, stale)
	}

	w.logger.Info("inbox: started", slog.String("root", w.root))

	tick := max(w.settle/2, 10*time.Millisecond)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("inbox: stopped")
			return nil

		case <-ticker.C:
			now := time.Now()
			for path, seen := range pending {
				if now.Sub(seen) < w.settle {
					continue
				}
				delete(pending, path)
				w.importFile(ctx, path)
			}

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					delete(pending, ev.Name)
				}
				continue
			}
			rel, relErr := filepath.Rel(w.root, ev.Name)
			if relErr != nil {
				continue
			}
			info, statErr := os.Stat(ev.Name)
			if statErr != nil {
				continue
			}
			depth := len(strings.Split(filepath.ToSlash(rel), "/"))
			switch {
			case info.IsDir() && depth == 1:
				if addErr := fw.Add(ev.Name); addErr != nil {
					w.logger.Warn("inbox: watch user dir failed",
						slog.String("path", ev.Name), slog.String("error", addErr.Error()))
					continue
				}
				w.collect(ev.Name, pending, time.Now())
			case !info.IsDir() && depth == 2 && !hidden(ev.Name):
				pending[ev.Name] = time.Now()
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// collect marks the regular files directly inside a user directory as
// pending, as of seen.
func (w *Watcher) collect(dir string, pending map[string]time.Time, seen time.Time) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.logger.Warn("inbox: list failed", slog.String("path", dir), slog.String("error", err.Error()))
		return
	}
	for _, e := range entries {
		if e.Type().IsRegular() && !hidden(e.Name()) {
			pending[filepath.Join(dir, e.Name())] = seen
		}
	}
}

func (w *Watcher) importFile(ctx context.Context, path string) {
	userID := filepath.Base(filepath.Dir(path))
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("inbox: read failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		return
	}
	doc, err := w.importer.Upload(ctx, userID, docservice.Upload{
		Name:   filepath.Base(path),
		Data:   data,
		Source: docservice.SourceInbox,
	})
	if err != nil {
		w.logger.Warn("inbox: import failed",
			slog.String("path", path), slog.String("user", userID), slog.String("error", err.Error()))
		return
	}
	if err := os.Remove(path); err != nil {
		w.logger.Warn("inbox: remove failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	w.logger.Info("inbox: imported", slog.String("document", doc.ID), slog.String("user", userID))
}

func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
