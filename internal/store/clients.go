package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/casedesk/internal/models"
)

const clientColumns = `id, user_id, name, email, phone, address, company, status, created_at, updated_at`

// CreateClient inserts a client owned by c.UserID.
func (db *DB) CreateClient(ctx context.Context, c *models.Client) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = models.ClientActive
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt

	_, err := db.exec(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.UserID, c.Name, c.Email, c.Phone, c.Address, c.Company, string(c.Status), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: insert client: %w", err)
	}
	return nil
}

// GetClient returns the client id owned by userID.
func (db *DB) GetClient(ctx context.Context, userID, id string) (*models.Client, error) {
	row := db.queryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ? AND user_id = ?`, id, userID)
	c, err := scanClient(row)
	if err != nil {
		return nil, notFound(err, "get client")
	}
	return c, nil
}

// ListClients returns all clients of userID ordered by name.
func (db *DB) ListClients(ctx context.Context, userID string) ([]models.Client, error) {
	rows, err := db.query(ctx, `SELECT `+clientColumns+` FROM clients WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: list clients: %w", err)
	}
	defer rows.Close()

	out := []models.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan client: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// DeleteClient removes a client. Linked cases and documents are kept and
// lose the reference.
func (db *DB) DeleteClient(ctx context.Context, userID, id string) error {
	res, err := db.exec(ctx, `DELETE FROM clients WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("store: delete client: %w", err)
	}
	return affectedOrNotFound(res, "delete client")
}

// CreateClientNote attaches a note to a client owned by n.UserID.
func (db *DB) CreateClientNote(ctx context.Context, n *models.ClientNote) error {
	if err := db.requireOwned(ctx, "clients", n.UserID, n.ClientID); err != nil {
		return err
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := db.exec(ctx, `
		INSERT INTO client_notes (id, user_id, client_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, n.ID, n.UserID, n.ClientID, n.Content, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert client note: %w", err)
	}
	return nil
}

// RecentClientNotes returns up to limit notes of a client, newest first.
// A non-positive limit returns every note.
func (db *DB) RecentClientNotes(ctx context.Context, userID, clientID string, limit int) ([]models.ClientNote, error) {
	q := `
		SELECT id, user_id, client_id, content, created_at
		FROM client_notes
		WHERE client_id = ? AND user_id = ?
		ORDER BY created_at DESC`
	args := []any{clientID, userID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: client notes: %w", err)
	}
	defer rows.Close()

	out := []models.ClientNote{}
	for rows.Next() {
		var n models.ClientNote
		if err := rows.Scan(&n.ID, &n.UserID, &n.ClientID, &n.Content, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan client note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(r rowScanner) (*models.Client, error) {
	var c models.Client
	var status string
	if err := r.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Company, &status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Status = models.ClientStatus(status)
	return &c, nil
}
