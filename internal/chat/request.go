package chat

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/casedesk/internal/chatctx"
	"github.com/starford/casedesk/internal/llm"
)

// Request bounds.
const (
	MaxTurns       = 100
	MaxDocumentIDs = 20
)

// Request is an inbound chat call.
type Request struct {
	Messages    []llm.Message `json:"messages"`
	CaseID      string        `json:"caseId,omitempty"`
	ClientID    string        `json:"clientId,omitempty"`
	DocumentIDs []string      `json:"documentIds,omitempty"`
}

// Validate checks turn roles and content and the shape of the identifiers.
func (r Request) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Messages,
			validation.Required,
			validation.Length(1, MaxTurns),
			validation.Each(validation.By(validTurn)),
		),
		validation.Field(&r.CaseID, is.UUID),
		validation.Field(&r.ClientID, is.UUID),
		validation.Field(&r.DocumentIDs,
			validation.Length(0, MaxDocumentIDs),
			validation.Each(validation.Required, is.UUID),
		),
	)
}

func (r Request) contextRequest() chatctx.Request {
	return chatctx.Request{
		CaseID:      r.CaseID,
		ClientID:    r.ClientID,
		DocumentIDs: r.DocumentIDs,
	}
}

func validTurn(v any) error {
	m, ok := v.(llm.Message)
	if !ok {
		return errors.New("must be a message")
	}
	if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
		return errors.New("role must be user or assistant")
	}
	if strings.TrimSpace(m.Content) == "" {
		return errors.New("content cannot be blank")
	}
	return nil
}
