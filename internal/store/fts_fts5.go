//go:build sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			doc_id UNINDEXED,
			user_id UNINDEXED,
			name,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(ctx context.Context, tx *sql.Tx, id, userID, name, body string) error {
	_, _ = tx.ExecContext(ctx, `DELETE FROM documents_fts WHERE doc_id = ?`, id)
	_, err := tx.ExecContext(ctx, `INSERT INTO documents_fts (doc_id, user_id, name, body) VALUES (?, ?, ?, ?)`,
		id, userID, name, body)
	if err != nil {
		return fmt.Errorf("store: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(ctx context.Context, tx *sql.Tx, id string) {
	_, _ = tx.ExecContext(ctx, `DELETE FROM documents_fts WHERE doc_id = ?`, id)
}

// searchFTS performs an FTS5 match restricted to the user's documents.
func (db *DB) searchFTS(ctx context.Context, userID, query string, limit int) ([]SearchResult, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT doc_id,
		       name,
		       snippet(documents_fts, 3, '<b>', '</b>', '...', 32)
		FROM documents_fts
		WHERE documents_fts MATCH ? AND user_id = ?
		ORDER BY rank
		LIMIT ?
	`, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	return scanSearchResults(rows)
}
