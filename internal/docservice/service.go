// Package docservice coordinates document blobs, text extraction and the
// datastore.
package docservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/casedesk/internal/apperr"
	"github.com/starford/casedesk/internal/checksum"
	"github.com/starford/casedesk/internal/extract"
	"github.com/starford/casedesk/internal/models"
	"github.com/starford/casedesk/internal/storage"
	"github.com/starford/casedesk/internal/store"
)

// MaxDocumentBytes caps a single document.
const MaxDocumentBytes = 25 << 20

// Ingestion sources reported to the Recorder.
const (
	SourceUpload = "upload"
	SourceInbox  = "inbox"
	SourceMCP    = "mcp"
)

// Publisher receives record change events.
type Publisher interface {
	PublishRecordEvent(userID, kind, id string)
}

// Recorder counts document activity.
type Recorder interface {
	DocumentStored(source string)
	ExtractFailed()
}

// Upload is a new document.
type Upload struct {
	Name     string
	MimeType string
	Data     []byte
	CaseID   string
	ClientID string
	Source   string
}

// Service coordinates storage and datastore operations for documents.
type Service struct {
	blobs    storage.Provider
	db       *store.DB
	events   Publisher
	recorder Recorder
	logger   *slog.Logger
}

// NewService creates a document service. events and recorder may be nil.
func NewService(blobs storage.Provider, db *store.DB, events Publisher, recorder Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{blobs: blobs, db: db, events: events, recorder: recorder, logger: logger}
}

// Upload stores the bytes, extracts their text and records the document.
// Formats without an extractor are stored with empty text.
func (s *Service) Upload(ctx context.Context, userID string, u Upload) (*models.Document, error) {
	name := strings.TrimSpace(u.Name)
	if name == "" {
		return nil, apperr.Validation(errors.New("name: cannot be blank"))
	}
	if len(u.Data) > MaxDocumentBytes {
		return nil, apperr.Validation(fmt.Errorf("file: exceeds %d bytes", MaxDocumentBytes))
	}

	doc := &models.Document{
		ID:       uuid.NewString(),
		UserID:   userID,
		CaseID:   u.CaseID,
		ClientID: u.ClientID,
		Name:     name,
		MimeType: extract.DetectMIME(name, u.MimeType, u.Data),
		Size:     int64(len(u.Data)),
		Checksum: checksum.Sum(u.Data),
	}
	doc.StorageKey = storage.DocumentKey(userID, doc.ID, name)
	doc.ExtractedText = s.extract(doc, u.Data)
	if err := doc.Validate(); err != nil {
		return nil, apperr.Validation(err)
	}

	if err := s.blobs.Write(ctx, doc.StorageKey, u.Data); err != nil {
		return nil, fmt.Errorf("docservice: write blob: %w", err)
	}
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		if delErr := s.blobs.Delete(ctx, doc.StorageKey); delErr != nil {
			s.logger.Warn("orphaned document blob",
				slog.String("key", doc.StorageKey), slog.String("error", delErr.Error()))
		}
		return nil, err
	}

	source := u.Source
	if source == "" {
		source = SourceUpload
	}
	if s.recorder != nil {
		s.recorder.DocumentStored(source)
	}
	s.publish(userID, "document.created", doc.ID)
	s.logger.Info("document stored",
		slog.String("id", doc.ID), slog.String("mime", doc.MimeType),
		slog.Int64("size", doc.Size), slog.String("source", source))
	return doc, nil
}

// Get returns a document with its extracted text.
func (s *Service) Get(ctx context.Context, userID, id string) (*models.Document, error) {
	return s.db.GetDocument(ctx, userID, id)
}

// List returns document metadata without extracted text.
func (s *Service) List(ctx context.Context, userID string, f store.DocumentFilter) ([]models.Document, error) {
	docs, err := s.db.ListDocuments(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].ExtractedText = ""
	}
	return docs, nil
}

// Download returns a document and its stored bytes.
func (s *Service) Download(ctx context.Context, userID, id string) (*models.Document, []byte, error) {
	doc, err := s.db.GetDocument(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Read(ctx, doc.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("docservice: read blob %s: %w", doc.ID, err)
	}
	return doc, data, nil
}

// Delete removes a document record and then its blob. A blob that cannot
// be removed is logged and left behind.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	doc, err := s.db.GetDocument(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.db.DeleteDocument(ctx, userID, id); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil {
		s.logger.Warn("orphaned document blob",
			slog.String("key", doc.StorageKey), slog.String("error", err.Error()))
	}
	s.publish(userID, "document.deleted", id)
	return nil
}

// Search runs a text search over the documents of userID.
func (s *Service) Search(ctx context.Context, userID, query string, limit int) ([]store.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return []store.SearchResult{}, nil
	}
	return s.db.SearchDocuments(ctx, userID, query, limit)
}

// Reindex re-extracts text for up to limit documents that have none and
// returns how many were updated.
func (s *Service) Reindex(ctx context.Context, limit int) (int, error) {
	docs, err := s.db.DocumentsMissingText(ctx, limit)
	if err != nil {
		return 0, err
	}
	updated := 0
	for i := range docs {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		d := &docs[i]
		data, err := s.blobs.Read(ctx, d.StorageKey)
		if err != nil {
			s.logger.Warn("reindex: read blob failed",
				slog.String("id", d.ID), slog.String("error", err.Error()))
			continue
		}
		text := s.extract(d, data)
		if text == "" {
			continue
		}
		if err := s.db.UpdateExtractedText(ctx, d.UserID, d.ID, text); err != nil {
			return updated, err
		}
		updated++
	}
	s.logger.Info("reindex complete", slog.Int("scanned", len(docs)), slog.Int("updated", updated))
	return updated, nil
}

func (s *Service) extract(doc *models.Document, data []byte) string {
	text, err := extract.Text(doc.MimeType, data)
	switch {
	case err == nil:
		return text
	case errors.Is(err, extract.ErrUnsupported):
		return ""
	default:
		s.logger.Warn("text extraction failed",
			slog.String("name", doc.Name), slog.String("mime", doc.MimeType), slog.String("error", err.Error()))
		if s.recorder != nil {
			s.recorder.ExtractFailed()
		}
		return ""
	}
}

func (s *Service) publish(userID, kind, id string) {
	if s.events != nil {
		s.events.PublishRecordEvent(userID, kind, id)
	}
}
