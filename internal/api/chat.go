package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/casedesk/internal/chat"
	"github.com/starford/casedesk/internal/sse"
)

// Chat handles POST /api/chat. The reply is streamed as SSE "delta"
// events ending with "done" or "error". Authentication and validation
// failures are answered with a JSON error before the stream starts.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	stream, err := sse.NewStream(w)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("streaming unsupported"))
		return
	}

	out, err := h.relay.Stream(r.Context(), chat.Caller{UserID: UserID(r.Context())}, req, stream)
	if err == nil {
		return
	}
	switch {
	case stream.Started():
		slog.Debug("chat stream ended early",
			slog.String("state", string(out.State)), slog.String("error", err.Error()))
	case errors.Is(err, context.Canceled):
	default:
		writeError(w, err, "chat")
	}
}

// ChatContext handles GET /api/chat/context. It returns the context block
// a chat request with the same identifiers would send to the model.
func (h *Handler) ChatContext(w http.ResponseWriter, r *http.Request) {
	q := parseContextQuery(r.URL.Query().Get)
	if !validated(w, q) {
		return
	}
	text, err := h.relay.Context(r.Context(), chat.Caller{UserID: UserID(r.Context())}, q.request())
	if err != nil {
		writeError(w, err, "chat context")
		return
	}
	writeJSON(w, http.StatusOK, ContextResponse{ContextPrompt: text})
}
