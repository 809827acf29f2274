//go:build !sqlite_fts5

package store

import (
	"context"
	"database/sql"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE over documents.extracted_text.
	return nil
}

func ftsUpsert(_ context.Context, _ *sql.Tx, _, _, _, _ string) error {
	// Text already lives in the documents table.
	return nil
}

func ftsDelete(_ context.Context, _ *sql.Tx, _ string) {}

func (db *DB) searchFTS(ctx context.Context, userID, query string, limit int) ([]SearchResult, error) {
	return db.searchLike(ctx, userID, query, limit)
}
