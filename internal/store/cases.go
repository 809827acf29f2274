package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/casedesk/internal/models"
)

const caseSelect = `
	SELECT c.id, c.user_id, c.client_id, COALESCE(cl.name, ''), c.title, c.description, c.status, c.created_at, c.updated_at
	FROM cases c
	LEFT JOIN clients cl ON cl.id = c.client_id AND cl.user_id = c.user_id`

// CreateCase inserts a case owned by c.UserID. A client reference must
// point at a client of the same user.
func (db *DB) CreateCase(ctx context.Context, c *models.Case) error {
	if c.ClientID != "" {
		if err := db.requireOwned(ctx, "clients", c.UserID, c.ClientID); err != nil {
			return err
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = models.CaseOpen
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.UpdatedAt = c.CreatedAt

	_, err := db.exec(ctx, `
		INSERT INTO cases (id, user_id, client_id, title, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.UserID, nullString(c.ClientID), c.Title, c.Description, string(c.Status), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: insert case: %w", err)
	}
	return nil
}

// GetCase returns the case id owned by userID, with its client name.
func (db *DB) GetCase(ctx context.Context, userID, id string) (*models.Case, error) {
	row := db.queryRow(ctx, caseSelect+` WHERE c.id = ? AND c.user_id = ?`, id, userID)
	c, err := scanCase(row)
	if err != nil {
		return nil, notFound(err, "get case")
	}
	return c, nil
}

// ListCases returns the cases of userID, newest first. A non-empty
// clientID restricts the list to that client.
func (db *DB) ListCases(ctx context.Context, userID, clientID string) ([]models.Case, error) {
	q := caseSelect + ` WHERE c.user_id = ?`
	args := []any{userID}
	if clientID != "" {
		q += ` AND c.client_id = ?`
		args = append(args, clientID)
	}
	q += ` ORDER BY c.created_at DESC`

	rows, err := db.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list cases: %w", err)
	}
	defer rows.Close()

	out := []models.Case{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan case: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// UpdateCaseStatus changes the status of a case.
func (db *DB) UpdateCaseStatus(ctx context.Context, userID, id string, status models.CaseStatus) error {
	res, err := db.exec(ctx, `UPDATE cases SET status = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		string(status), time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("store: update case: %w", err)
	}
	return affectedOrNotFound(res, "update case")
}

// DeleteCase removes a case with its notes, tasks and parties.
func (db *DB) DeleteCase(ctx context.Context, userID, id string) error {
	res, err := db.exec(ctx, `DELETE FROM cases WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("store: delete case: %w", err)
	}
	return affectedOrNotFound(res, "delete case")
}

// CreateNote attaches a note to a case owned by n.UserID.
func (db *DB) CreateNote(ctx context.Context, n *models.Note) error {
	if err := db.requireOwned(ctx, "cases", n.UserID, n.CaseID); err != nil {
		return err
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := db.exec(ctx, `
		INSERT INTO notes (id, user_id, case_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, n.ID, n.UserID, n.CaseID, n.Content, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert note: %w", err)
	}
	return nil
}

// CaseNotes returns every note of a case in creation order.
func (db *DB) CaseNotes(ctx context.Context, userID, caseID string) ([]models.Note, error) {
	rows, err := db.query(ctx, `
		SELECT id, user_id, case_id, content, created_at
		FROM notes
		WHERE case_id = ? AND user_id = ?
		ORDER BY created_at
	`, caseID, userID)
	if err != nil {
		return nil, fmt.Errorf("store: case notes: %w", err)
	}
	defer rows.Close()

	out := []models.Note{}
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.CaseID, &n.Content, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CreateTask adds a task to a case owned by t.UserID.
func (db *DB) CreateTask(ctx context.Context, t *models.Task) error {
	if err := db.requireOwned(ctx, "cases", t.UserID, t.CaseID); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = models.TaskTodo
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	var due sql.NullTime
	if t.DueDate != nil {
		due = sql.NullTime{Time: *t.DueDate, Valid: true}
	}
	_, err := db.exec(ctx, `
		INSERT INTO tasks (id, user_id, case_id, title, description, status, due_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.UserID, t.CaseID, t.Title, t.Description, string(t.Status), due, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert task: %w", err)
	}
	return nil
}

// CaseTasks returns every task of a case in creation order.
func (db *DB) CaseTasks(ctx context.Context, userID, caseID string) ([]models.Task, error) {
	rows, err := db.query(ctx, `
		SELECT id, user_id, case_id, title, description, status, due_date, created_at
		FROM tasks
		WHERE case_id = ? AND user_id = ?
		ORDER BY created_at
	`, caseID, userID)
	if err != nil {
		return nil, fmt.Errorf("store: case tasks: %w", err)
	}
	defer rows.Close()

	out := []models.Task{}
	for rows.Next() {
		var t models.Task
		var status string
		var due sql.NullTime
		if err := rows.Scan(&t.ID, &t.UserID, &t.CaseID, &t.Title, &t.Description, &status, &due, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan task: %w", err)
		}
		t.Status = models.TaskStatus(status)
		if due.Valid {
			d := due.Time
			t.DueDate = &d
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTaskStatus moves a task of userID to status.
func (db *DB) UpdateTaskStatus(ctx context.Context, userID, id string, status models.TaskStatus) error {
	res, err := db.exec(ctx, `UPDATE tasks SET status = ? WHERE id = ? AND user_id = ?`, string(status), id, userID)
	if err != nil {
		return fmt.Errorf("store: update task: %w", err)
	}
	return affectedOrNotFound(res, "update task")
}

// CreateParty adds a party to a case owned by p.UserID.
func (db *DB) CreateParty(ctx context.Context, p *models.Party) error {
	if err := db.requireOwned(ctx, "cases", p.UserID, p.CaseID); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Role == "" {
		p.Role = models.PartyOther
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := db.exec(ctx, `
		INSERT INTO parties (id, user_id, case_id, name, role, email, phone, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.UserID, p.CaseID, p.Name, string(p.Role), p.Email, p.Phone, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert party: %w", err)
	}
	return nil
}

// CaseParties returns every party of a case in creation order.
func (db *DB) CaseParties(ctx context.Context, userID, caseID string) ([]models.Party, error) {
	rows, err := db.query(ctx, `
		SELECT id, user_id, case_id, name, role, email, phone, created_at
		FROM parties
		WHERE case_id = ? AND user_id = ?
		ORDER BY created_at
	`, caseID, userID)
	if err != nil {
		return nil, fmt.Errorf("store: case parties: %w", err)
	}
	defer rows.Close()

	out := []models.Party{}
	for rows.Next() {
		var p models.Party
		var role string
		if err := rows.Scan(&p.ID, &p.UserID, &p.CaseID, &p.Name, &role, &p.Email, &p.Phone, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan party: %w", err)
		}
		p.Role = models.PartyRole(role)
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanCase(r rowScanner) (*models.Case, error) {
	var c models.Case
	var clientID sql.NullString
	var status string
	if err := r.Scan(&c.ID, &c.UserID, &clientID, &c.ClientName, &c.Title, &c.Description, &status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ClientID = clientID.String
	c.Status = models.CaseStatus(status)
	return &c, nil
}
