package inbox

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/casedesk/internal/docservice"
	"github.com/starford/casedesk/internal/models"
)

type imported struct {
	userID string
	upload docservice.Upload
}

type fakeImporter struct {
	mu   sync.Mutex
	got  []imported
	fail bool
}

func (f *fakeImporter) Upload(_ context.Context, userID string, u docservice.Upload) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("boom")
	}
	f.got = append(f.got, imported{userID, u})
	return &models.Document{ID: "d" + userID, Name: u.Name}, nil
}

func (f *fakeImporter) imports() []imported {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]imported(nil), f.got...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func start(t *testing.T, root string, imp Importer) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(root, imp, 30*time.Millisecond, quietLogger()).Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	time.Sleep(100 * time.Millisecond)
}

func TestExistingFilesImportedOnStart(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "u1"), 0o755))
	path := filepath.Join(root, "u1", "brief.txt")
	require.NoError(t, os.WriteFile(path, []byte("brief"), 0o644))

	imp := &fakeImporter{}
	start(t, root, imp)

	require.Eventually(t, func() bool { return len(imp.imports()) == 1 }, 5*time.Second, 20*time.Millisecond)
	got := imp.imports()[0]
	assert.Equal(t, "u1", got.userID)
	assert.Equal(t, "brief.txt", got.upload.Name)
	assert.Equal(t, []byte("brief"), got.upload.Data)
	assert.Equal(t, docservice.SourceInbox, got.upload.Source)

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestNewUserDirAndFile(t *testing.T) {
	root := t.TempDir()
	imp := &fakeImporter{}
	start(t, root, imp)

	dir := filepath.Join(root, "u2")
	require.NoError(t, os.Mkdir(dir, 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "memo.md"), []byte("# Memo"), 0o644))

	require.Eventually(t, func() bool { return len(imp.imports()) == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "u2", imp.imports()[0].userID)
}

func TestIgnoresRootFilesAndHiddenFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "u1"), 0o755))
	imp := &fakeImporter{}
	start(t, root, imp)

	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "u1", ".partial"), []byte("x"), 0o644))

	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, imp.imports())
	assert.FileExists(t, filepath.Join(root, "stray.txt"))
}

func TestFailedImportKeepsFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nobody"), 0o755))
	path := filepath.Join(root, "nobody", "x.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	start(t, root, &fakeImporter{fail: true})

	time.Sleep(300 * time.Millisecond)
	assert.FileExists(t, path)
}
