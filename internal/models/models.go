// Package models defines the domain types for casedesk.
package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// User is an account that owns clients, cases and documents.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session binds an opaque token to a user until it expires.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// ClientStatus is the lifecycle state of a client.
type ClientStatus string

const (
	ClientActive      ClientStatus = "active"
	ClientInactive    ClientStatus = "inactive"
	ClientProspective ClientStatus = "prospective"
)

// Client is a person or organisation represented by the user.
type Client struct {
	ID        string       `json:"id"`
	UserID    string       `json:"-"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	Phone     string       `json:"phone"`
	Address   string       `json:"address"`
	Company   string       `json:"company"`
	Status    ClientStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Validate checks the fields every stored client must carry.
func (c *Client) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Status, validation.Required, validation.In(ClientStatuses...)),
	)
}

// CaseStatus is the lifecycle state of a case.
type CaseStatus string

const (
	CaseOpen    CaseStatus = "open"
	CasePending CaseStatus = "pending"
	CaseClosed  CaseStatus = "closed"
)

// Case is a legal matter, optionally linked to a client.
type Case struct {
	ID          string     `json:"id"`
	UserID      string     `json:"-"`
	ClientID    string     `json:"client_id,omitempty"`
	ClientName  string     `json:"client_name,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      CaseStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Validate checks the fields every stored case must carry.
func (c *Case) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.Title, validation.Required),
		validation.Field(&c.Status, validation.Required, validation.In(CaseStatuses...)),
	)
}

// Document is an uploaded file and the text extracted from it.
type Document struct {
	ID            string    `json:"id"`
	UserID        string    `json:"-"`
	CaseID        string    `json:"case_id,omitempty"`
	ClientID      string    `json:"client_id,omitempty"`
	Name          string    `json:"name"`
	MimeType      string    `json:"mime_type"`
	Size          int64     `json:"size"`
	StorageKey    string    `json:"-"`
	Checksum      string    `json:"checksum"`
	ExtractedText string    `json:"extracted_text,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Validate checks the fields every stored document must carry.
func (d *Document) Validate() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.ID, validation.Required),
		validation.Field(&d.Name, validation.Required),
		validation.Field(&d.Size, validation.Min(int64(0))),
	)
}

// Note is a free-text entry attached to a case.
type Note struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	CaseID    string    `json:"case_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ClientNote is a free-text entry attached to a client.
type ClientNote struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	ClientID  string    `json:"client_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskStatus is the progress state of a task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// Task is a to-do item on a case.
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"-"`
	CaseID      string     `json:"case_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// PartyRole is the part a party plays in a case.
type PartyRole string

const (
	PartyPlaintiff PartyRole = "plaintiff"
	PartyDefendant PartyRole = "defendant"
	PartyWitness   PartyRole = "witness"
	PartyAttorney  PartyRole = "attorney"
	PartyJudge     PartyRole = "judge"
	PartyOther     PartyRole = "other"
)

// Party is a person involved in a case.
type Party struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	CaseID    string    `json:"case_id"`
	Name      string    `json:"name"`
	Role      PartyRole `json:"role"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// ClientStatuses, CaseStatuses, TaskStatuses and PartyRoles list the
// accepted enum values, for validation rules.
var (
	ClientStatuses = []any{ClientActive, ClientInactive, ClientProspective}
	CaseStatuses   = []any{CaseOpen, CasePending, CaseClosed}
	TaskStatuses   = []any{TaskTodo, TaskInProgress, TaskDone}
	PartyRoles     = []any{PartyPlaintiff, PartyDefendant, PartyWitness, PartyAttorney, PartyJudge, PartyOther}
)
