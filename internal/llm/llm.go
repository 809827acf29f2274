// Package llm streams chat completions from language-model providers.
package llm

import (
	"context"
	"iter"
)

// Role is the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a single streaming completion call.
type Request struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Provider streams a completion as text deltas in generation order.
//
// The sequence ends after the last delta, or after yielding one non-nil
// error. Stopping iteration early cancels the upstream call.
type Provider interface {
	Stream(ctx context.Context, req Request) iter.Seq2[string, error]
}
