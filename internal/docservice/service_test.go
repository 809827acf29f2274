package docservice

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/casedesk/internal/apperr"
	"github.com/starford/casedesk/internal/models"
	"github.com/starford/casedesk/internal/storage"
	"github.com/starford/casedesk/internal/store"
	"github.com/starford/casedesk/internal/testutil"
)

type recordedEvent struct{ userID, kind, id string }

type fakeEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeEvents) PublishRecordEvent(userID, kind, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{userID, kind, id})
}

type fakeRecorder struct {
	stored map[string]int
	failed int
}

func (f *fakeRecorder) DocumentStored(source string) { f.stored[source]++ }
func (f *fakeRecorder) ExtractFailed()               { f.failed++ }

type fixture struct {
	svc    *Service
	db     *store.DB
	blobs  storage.Provider
	dir    string
	events *fakeEvents
	rec    *fakeRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.TestDB(t)
	dir, blobs := testutil.TestBlobs(t)
	f := &fixture{db: db, blobs: blobs, dir: dir, events: &fakeEvents{}, rec: &fakeRecorder{stored: map[string]int{}}}
	f.svc = NewService(blobs, db, f.events, f.rec, nil)
	return f
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestUpload_StoresBlobTextAndRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testutil.TestUser(t, f.db, "a@example.com")

	doc, err := f.svc.Upload(ctx, u.ID, Upload{
		Name:     "lease notes.md",
		MimeType: "application/octet-stream",
		Data:     []byte("---\ntitle: Lease\n---\n# Lease\nRent is due monthly.\n"),
	})
	require.NoError(t, err)

	assert.Equal(t, "text/markdown", doc.MimeType)
	assert.Contains(t, doc.ExtractedText, "Rent is due monthly.")
	assert.NotContains(t, doc.ExtractedText, "title: Lease")
	assert.Len(t, doc.Checksum, 64)

	got, err := f.svc.Get(ctx, u.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ExtractedText, got.ExtractedText)

	_, data, err := f.svc.Download(ctx, u.ID, doc.ID)
	require.NoError(t, err)
	assert.Contains(t, string(data), "title: Lease")

	assert.Equal(t, 1, f.rec.stored[SourceUpload])
	require.Len(t, f.events.events, 1)
	assert.Equal(t, recordedEvent{u.ID, "document.created", doc.ID}, f.events.events[0])
}

func TestUpload_Validation(t *testing.T) {
	f := newFixture(t)
	u := testutil.TestUser(t, f.db, "a@example.com")

	_, err := f.svc.Upload(context.Background(), u.ID, Upload{Name: "  ", Data: []byte("x")})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Upload(context.Background(), u.ID, Upload{Name: "big.txt", Data: make([]byte, MaxDocumentBytes+1)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.Equal(t, 0, countFiles(t, f.dir))
}

func TestUpload_ForeignCaseRemovesBlob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.TestUser(t, f.db, "alice@example.com")
	bob := testutil.TestUser(t, f.db, "bob@example.com")

	c := &models.Case{UserID: alice.ID, Title: "Alice v. Corp", Status: models.CaseOpen}
	require.NoError(t, f.db.CreateCase(ctx, c))

	_, err := f.svc.Upload(ctx, bob.ID, Upload{Name: "x.txt", Data: []byte("hi"), CaseID: c.ID})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 0, countFiles(t, f.dir))
	assert.Empty(t, f.events.events)
}

func TestUpload_UnsupportedFormatKeepsDocument(t *testing.T) {
	f := newFixture(t)
	u := testutil.TestUser(t, f.db, "a@example.com")

	doc, err := f.svc.Upload(context.Background(), u.ID, Upload{
		Name: "scan.bin", Data: []byte{0x00, 0x01, 0x02, 0xff}, Source: SourceInbox,
	})
	require.NoError(t, err)
	assert.Empty(t, doc.ExtractedText)
	assert.Equal(t, 0, f.rec.failed)
	assert.Equal(t, 1, f.rec.stored[SourceInbox])
}

func TestUpload_BrokenPDFCountsFailure(t *testing.T) {
	f := newFixture(t)
	u := testutil.TestUser(t, f.db, "a@example.com")

	doc, err := f.svc.Upload(context.Background(), u.ID, Upload{
		Name: "broken.pdf", MimeType: "application/pdf", Data: []byte("not a pdf"),
	})
	require.NoError(t, err)
	assert.Empty(t, doc.ExtractedText)
	assert.Equal(t, 1, f.rec.failed)
}

func TestListAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testutil.TestUser(t, f.db, "a@example.com")
	other := testutil.TestUser(t, f.db, "b@example.com")

	doc, err := f.svc.Upload(ctx, u.ID, Upload{Name: "a.txt", Data: []byte("alpha")})
	require.NoError(t, err)

	docs, err := f.svc.List(ctx, u.ID, store.DocumentFilter{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Empty(t, docs[0].ExtractedText)

	assert.ErrorIs(t, f.svc.Delete(ctx, other.ID, doc.ID), apperr.ErrNotFound)

	require.NoError(t, f.svc.Delete(ctx, u.ID, doc.ID))
	_, err = f.svc.Get(ctx, u.ID, doc.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.blobs.Read(ctx, doc.StorageKey)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.Len(t, f.events.events, 2)
	assert.Equal(t, "document.deleted", f.events.events[1].kind)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testutil.TestUser(t, f.db, "a@example.com")

	_, err := f.svc.Upload(ctx, u.ID, Upload{Name: "memo.txt", Data: []byte("the settlement offer expires friday")})
	require.NoError(t, err)

	res, err := f.svc.Search(ctx, u.ID, "settlement", 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "memo.txt", res[0].Name)

	res, err = f.svc.Search(ctx, u.ID, "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestReindex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testutil.TestUser(t, f.db, "a@example.com")

	stale := &models.Document{UserID: u.ID, Name: "old.txt", MimeType: "text/plain", Size: 5}
	stale.ID = "11111111-1111-1111-1111-111111111111"
	stale.StorageKey = storage.DocumentKey(u.ID, stale.ID, stale.Name)
	require.NoError(t, f.blobs.Write(ctx, stale.StorageKey, []byte("hello")))
	require.NoError(t, f.db.CreateDocument(ctx, stale))

	missing := &models.Document{UserID: u.ID, Name: "gone.txt", MimeType: "text/plain", StorageKey: "documents/nowhere"}
	require.NoError(t, f.db.CreateDocument(ctx, missing))

	n, err := f.svc.Reindex(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.Get(ctx, u.ID, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.ExtractedText)
}
