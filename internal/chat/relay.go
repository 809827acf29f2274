// Package chat relays a conversation, enriched with case context, to a
// language model and streams the reply back as it is generated.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/casedesk/internal/apperr"
	"github.com/starford/casedesk/internal/chatctx"
	"github.com/starford/casedesk/internal/llm"
)

// SystemInstruction is the fixed persona prompt placed ahead of any context.
const SystemInstruction = `You are Casedesk Assistant, an AI aide for legal professionals working in a case management system.

You help the user understand their clients, cases and documents: summarising files, drafting correspondence and outlines, spotting deadlines, open tasks and inconsistencies, and answering questions about the material provided below.

Rely on the supplied case, client and document information when it is relevant and say so when the answer is not in it. Do not invent facts, citations or case law. Keep answers clear and well structured.

You do not provide legal advice. Your output is informational and must be reviewed by a qualified attorney before it is relied upon or shared with a client.`

// Generation defaults.
const (
	DefaultTemperature     = 0.7
	DefaultMaxOutputTokens = 1000
)

// Caller identifies the authenticated user a request runs for.
type Caller struct {
	UserID string
}

// ContextBuilder renders the context block for a request.
type ContextBuilder interface {
	Build(ctx context.Context, userID string, req chatctx.Request) (string, error)
}

// Sink receives the streamed reply. Send is called once per delta in
// order; exactly one of Close or Fail ends the stream.
type Sink interface {
	Send(delta string) error
	Close() error
	Fail(err error) error
}

// Observer is notified once per finished request.
type Observer interface {
	ChatFinished(o Outcome, elapsed time.Duration)
}

// Outcome summarises a relayed request.
type Outcome struct {
	State           State
	ContextDegraded bool
	Chunks          int
}

// Relay streams assistant replies.
type Relay struct {
	contexts    ContextBuilder
	provider    llm.Provider
	temperature float64
	maxTokens   int
	timeout     time.Duration
	logger      *slog.Logger
	observer    Observer
}

// Option configures a Relay.
type Option func(*Relay)

// WithGeneration overrides the temperature and output token bound.
func WithGeneration(temperature float64, maxOutputTokens int) Option {
	return func(r *Relay) {
		r.temperature = temperature
		r.maxTokens = maxOutputTokens
	}
}

// WithTimeout bounds each model call. Zero means no bound beyond ctx.
func WithTimeout(d time.Duration) Option {
	return func(r *Relay) { r.timeout = d }
}

// WithLogger sets the logger used for degraded-context and stream errors.
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) { r.logger = l }
}

// WithObserver registers an observer for finished requests.
func WithObserver(o Observer) Option {
	return func(r *Relay) { r.observer = o }
}

// NewRelay creates a Relay.
func NewRelay(contexts ContextBuilder, provider llm.Provider, opts ...Option) *Relay {
	r := &Relay{
		contexts:    contexts,
		provider:    provider,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxOutputTokens,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Stream runs one chat request and forwards the reply to sink.
//
// An empty caller is rejected with apperr.ErrUnauthenticated and an invalid
// request with apperr.ErrValidation; both happen before any lookup or model
// call and leave sink untouched. A context lookup failure degrades to
// whatever context resolved. The model call starts only after aggregation
// returns. Provider errors end the stream through sink.Fail without retry.
// A failing sink or a cancelled ctx stops the upstream call.
func (r *Relay) Stream(ctx context.Context, caller Caller, req Request, sink Sink) (out Outcome, err error) {
	start := time.Now()
	defer func() {
		if r.observer != nil {
			r.observer.ChatFinished(out, time.Since(start))
		}
	}()

	out.State = StateAuthenticating
	if caller.UserID == "" {
		out.State = StateRejected
		return out, apperr.ErrUnauthenticated
	}
	if err := req.Validate(); err != nil {
		out.State = StateRejected
		return out, apperr.Validation(err)
	}

	out.State = StateAggregatingContext
	contextText, err := r.contexts.Build(ctx, caller.UserID, req.contextRequest())
	if err != nil {
		out.State = StateContextFailed
		out.ContextDegraded = true
		r.logger.Warn("chat context degraded",
			slog.String("user_id", caller.UserID),
			slog.String("error", err.Error()),
		)
	}
	if err := ctx.Err(); err != nil {
		out.State = StateStreamError
		return out, err
	}

	out.State = StateStreaming
	streamCtx, cancel := context.WithCancel(ctx)
	if r.timeout > 0 {
		streamCtx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	defer cancel()

	for delta, perr := range r.provider.Stream(streamCtx, r.prompt(contextText, req.Messages)) {
		if perr != nil {
			out.State = StateStreamError
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			r.logger.Error("chat provider stream failed",
				slog.String("user_id", caller.UserID),
				slog.Int("chunks", out.Chunks),
				slog.String("error", perr.Error()),
			)
			_ = sink.Fail(perr)
			return out, fmt.Errorf("chat: provider stream: %w", perr)
		}
		if serr := sink.Send(delta); serr != nil {
			cancel()
			out.State = StateStreamError
			return out, fmt.Errorf("chat: deliver delta: %w", serr)
		}
		out.Chunks++
	}
	if err := ctx.Err(); err != nil {
		out.State = StateStreamError
		return out, err
	}
	if err := sink.Close(); err != nil {
		out.State = StateStreamError
		return out, fmt.Errorf("chat: close stream: %w", err)
	}
	out.State = StateCompleted
	return out, nil
}

// Context renders the context block for req without calling the model.
func (r *Relay) Context(ctx context.Context, caller Caller, req chatctx.Request) (string, error) {
	if caller.UserID == "" {
		return "", apperr.ErrUnauthenticated
	}
	text, err := r.contexts.Build(ctx, caller.UserID, req)
	if errors.Is(err, chatctx.ErrContextLookup) {
		r.logger.Warn("chat context degraded",
			slog.String("user_id", caller.UserID),
			slog.String("error", err.Error()),
		)
		return text, nil
	}
	return text, err
}

// prompt assembles the provider request: the system instruction, the
// context block when there is one, and the turns unmodified.
func (r *Relay) prompt(contextText string, turns []llm.Message) llm.Request {
	system := SystemInstruction
	if contextText != "" {
		system += "\n\n" + contextText
	}
	return llm.Request{
		System:      system,
		Messages:    turns,
		Temperature: r.temperature,
		MaxTokens:   r.maxTokens,
	}
}
