package api

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/casedesk/internal/chat"
	"github.com/starford/casedesk/internal/chatctx"
	"github.com/starford/casedesk/internal/models"
)

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" example:"jane@firm.example" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries a new session token.
type LoginResponse struct {
	Token     string       `json:"token" validate:"required"`
	ExpiresAt time.Time    `json:"expires_at" validate:"required"`
	User      *models.User `json:"user" validate:"required"`
}

// ClientRequest is the request body for creating a client.
type ClientRequest struct {
	Name    string              `json:"name" example:"Acme Ltd" validate:"required"`
	Email   string              `json:"email"`
	Phone   string              `json:"phone"`
	Address string              `json:"address"`
	Company string              `json:"company"`
	Status  models.ClientStatus `json:"status" example:"active"`
}

// Validate checks the client fields.
func (r ClientRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, is.EmailFormat),
		validation.Field(&r.Status, validation.In(models.ClientStatuses...)),
	)
}

// CaseRequest is the request body for creating a case.
type CaseRequest struct {
	Title       string            `json:"title" example:"Smith v. Jones" validate:"required"`
	Description string            `json:"description"`
	Status      models.CaseStatus `json:"status" example:"open"`
	ClientID    string            `json:"clientId"`
}

// Validate checks the case fields.
func (r CaseRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 300)),
		validation.Field(&r.Status, validation.In(models.CaseStatuses...)),
		validation.Field(&r.ClientID, is.UUID),
	)
}

// CaseStatusRequest changes the status of a case.
type CaseStatusRequest struct {
	Status models.CaseStatus `json:"status" validate:"required"`
}

// Validate checks the status value.
func (r CaseStatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required, validation.In(models.CaseStatuses...)),
	)
}

// NoteRequest is the request body for case and client notes.
type NoteRequest struct {
	Content string `json:"content" validate:"required"`
}

// Validate checks the note content.
func (r NoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.By(notBlank)),
	)
}

// TaskRequest is the request body for creating a task.
type TaskRequest struct {
	Title       string            `json:"title" validate:"required"`
	Description string            `json:"description"`
	Status      models.TaskStatus `json:"status" example:"todo"`
	DueDate     *time.Time        `json:"dueDate"`
}

// Validate checks the task fields.
func (r TaskRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 300)),
		validation.Field(&r.Status, validation.In(models.TaskStatuses...)),
	)
}

// TaskStatusRequest changes the status of a task.
type TaskStatusRequest struct {
	Status models.TaskStatus `json:"status" validate:"required"`
}

// Validate checks the status value.
func (r TaskStatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required, validation.In(models.TaskStatuses...)),
	)
}

// PartyRequest is the request body for adding a party to a case.
type PartyRequest struct {
	Name  string           `json:"name" validate:"required"`
	Role  models.PartyRole `json:"role" example:"witness"`
	Email string           `json:"email"`
	Phone string           `json:"phone"`
}

// Validate checks the party fields.
func (r PartyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Role, validation.In(models.PartyRoles...)),
		validation.Field(&r.Email, is.EmailFormat),
	)
}

// contextQuery is the query of GET /chat/context.
type contextQuery struct {
	CaseID      string
	ClientID    string
	DocumentIDs []string
}

func parseContextQuery(get func(string) string) contextQuery {
	q := contextQuery{CaseID: get("caseId"), ClientID: get("clientId")}
	for _, id := range strings.Split(get("documentIds"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			q.DocumentIDs = append(q.DocumentIDs, id)
		}
	}
	return q
}

// Validate checks the identifiers.
func (q contextQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.CaseID, is.UUID),
		validation.Field(&q.ClientID, is.UUID),
		validation.Field(&q.DocumentIDs, validation.Length(0, chat.MaxDocumentIDs), validation.Each(is.UUID)),
	)
}

func (q contextQuery) request() chatctx.Request {
	return chatctx.Request{CaseID: q.CaseID, ClientID: q.ClientID, DocumentIDs: q.DocumentIDs}
}

// ContextResponse is the body of GET /chat/context.
type ContextResponse struct {
	ContextPrompt string `json:"contextPrompt"`
}

func notBlank(v any) error {
	s, _ := v.(string)
	if strings.TrimSpace(s) == "" {
		return validation.ErrRequired
	}
	return nil
}
