package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/casedesk/internal/models"
)

const documentColumns = `id, user_id, case_id, client_id, name, mime_type, size, storage_key, checksum, extracted_text, created_at`

// DocumentFilter narrows ListDocuments. Empty fields match everything.
type DocumentFilter struct {
	CaseID   string
	ClientID string
}

// SearchResult is one document search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Snippet string `json:"snippet"`
}

// CreateDocument inserts document metadata and its searchable text.
// Case and client references must belong to d.UserID.
func (db *DB) CreateDocument(ctx context.Context, d *models.Document) error {
	if d.CaseID != "" {
		if err := db.requireOwned(ctx, "cases", d.UserID, d.CaseID); err != nil {
			return err
		}
	}
	if d.ClientID != "" {
		if err := db.requireOwned(ctx, "clients", d.UserID, d.ClientID); err != nil {
			return err
		}
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.ExecContext(ctx, db.rebind(`
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), d.ID, d.UserID, nullString(d.CaseID), nullString(d.ClientID), d.Name, d.MimeType, d.Size,
		d.StorageKey, d.Checksum, d.ExtractedText, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert document: %w", err)
	}
	if db.driver == DriverSQLite {
		if err := ftsUpsert(ctx, tx, d.ID, d.UserID, d.Name, d.ExtractedText); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetDocument returns the document id owned by userID.
func (db *DB) GetDocument(ctx context.Context, userID, id string) (*models.Document, error) {
	row := db.queryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ? AND user_id = ?`, id, userID)
	d, err := scanDocument(row)
	if err != nil {
		return nil, notFound(err, "get document")
	}
	return d, nil
}

// GetDocuments returns the documents among ids owned by userID, in the
// order the ids were given. Ids that miss are skipped; duplicates collapse.
func (db *DB) GetDocuments(ctx context.Context, userID string, ids []string) ([]models.Document, error) {
	if len(ids) == 0 {
		return []models.Document{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := db.query(ctx, `SELECT `+documentColumns+` FROM documents WHERE user_id = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: get documents: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]models.Document, len(ids))
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan document: %w", err)
		}
		byID[d.ID] = *d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.Document, 0, len(byID))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			out = append(out, d)
			delete(byID, id)
		}
	}
	return out, nil
}

// ListDocuments returns the documents of userID, newest first.
func (db *DB) ListDocuments(ctx context.Context, userID string, f DocumentFilter) ([]models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE user_id = ?`
	args := []any{userID}
	if f.CaseID != "" {
		q += ` AND case_id = ?`
		args = append(args, f.CaseID)
	}
	if f.ClientID != "" {
		q += ` AND client_id = ?`
		args = append(args, f.ClientID)
	}
	q += ` ORDER BY created_at DESC`
	return db.listDocuments(ctx, q, args...)
}

// CaseDocuments returns the documents attached to a case in upload order.
func (db *DB) CaseDocuments(ctx context.Context, userID, caseID string) ([]models.Document, error) {
	return db.listDocuments(ctx, `SELECT `+documentColumns+` FROM documents WHERE case_id = ? AND user_id = ? ORDER BY created_at`, caseID, userID)
}

// DocumentsMissingText returns up to limit documents of any user whose
// extracted text is empty, oldest first.
func (db *DB) DocumentsMissingText(ctx context.Context, limit int) ([]models.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	return db.listDocuments(ctx, `SELECT `+documentColumns+` FROM documents WHERE extracted_text = '' ORDER BY created_at LIMIT ?`, limit)
}

func (db *DB) listDocuments(ctx context.Context, q string, args ...any) ([]models.Document, error) {
	rows, err := db.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list documents: %w", err)
	}
	defer rows.Close()

	out := []models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan document: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// UpdateExtractedText replaces the searchable text of a document.
func (db *DB) UpdateExtractedText(ctx context.Context, userID, id, text string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var name string
	err = tx.QueryRowContext(ctx, db.rebind(`SELECT name FROM documents WHERE id = ? AND user_id = ?`), id, userID).Scan(&name)
	if err != nil {
		return notFound(err, "get document")
	}
	if _, err := tx.ExecContext(ctx, db.rebind(`UPDATE documents SET extracted_text = ? WHERE id = ? AND user_id = ?`), text, id, userID); err != nil {
		return fmt.Errorf("store: update document text: %w", err)
	}
	if db.driver == DriverSQLite {
		if err := ftsUpsert(ctx, tx, id, userID, name, text); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteDocument removes document metadata and its search entry.
func (db *DB) DeleteDocument(ctx context.Context, userID, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, db.rebind(`DELETE FROM documents WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return fmt.Errorf("store: delete document: %w", err)
	}
	if err := affectedOrNotFound(res, "delete document"); err != nil {
		return err
	}
	if db.driver == DriverSQLite {
		ftsDelete(ctx, tx, id)
	}
	return tx.Commit()
}

// SearchDocuments runs a text search over the names and extracted text of
// the documents of userID.
func (db *DB) SearchDocuments(ctx context.Context, userID, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	if db.driver != DriverSQLite {
		return db.searchLike(ctx, userID, query, limit)
	}
	return db.searchFTS(ctx, userID, query, limit)
}

// searchLike is the portable LIKE-based search.
func (db *DB) searchLike(ctx context.Context, userID, query string, limit int) ([]SearchResult, error) {
	like := "%" + strings.ToLower(query) + "%"
	rows, err := db.query(ctx, `
		SELECT id, name, substr(extracted_text, 1, 200)
		FROM documents
		WHERE user_id = ? AND (lower(name) LIKE ? OR lower(extracted_text) LIKE ?)
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	return scanSearchResults(rows)
}

func scanSearchResults(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()
	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Name, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanDocument(r rowScanner) (*models.Document, error) {
	var d models.Document
	var caseID, clientID sql.NullString
	if err := r.Scan(&d.ID, &d.UserID, &caseID, &clientID, &d.Name, &d.MimeType, &d.Size,
		&d.StorageKey, &d.Checksum, &d.ExtractedText, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.CaseID = caseID.String
	d.ClientID = clientID.String
	return &d, nil
}
