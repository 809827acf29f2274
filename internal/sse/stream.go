package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// GenericError is the only failure detail shown to chat clients.
const GenericError = "an error occurred, please try again"

// ErrStreamClosed is returned by writes after Close or Fail.
var ErrStreamClosed = errors.New("sse: stream closed")

// Stream writes one chat reply as SSE events: "delta" per chunk, then
// "done" or "error". Headers are sent with the first event so a caller can
// still answer with a plain error status before anything is streamed.
type Stream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
	ended   bool
}

// NewStream wraps w. It fails when w cannot flush.
func NewStream(w http.ResponseWriter) (*Stream, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("sse: streaming unsupported")
	}
	return &Stream{w: w, flusher: f}, nil
}

// Started reports whether any event has been written.
func (s *Stream) Started() bool { return s.started }

// Send writes a text delta.
func (s *Stream) Send(delta string) error {
	return s.write("delta", map[string]string{"text": delta})
}

// Close writes the end-of-stream marker.
func (s *Stream) Close() error {
	err := s.write("done", map[string]string{})
	s.ended = true
	return err
}

// Fail writes the terminal error event. The cause is not disclosed.
func (s *Stream) Fail(error) error {
	err := s.write("error", map[string]string{"error": GenericError})
	s.ended = true
	return err
}

func (s *Stream) write(event string, data any) error {
	if s.ended {
		return ErrStreamClosed
	}
	if !s.started {
		setStreamHeaders(s.w)
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("sse: encode %s: %w", event, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return fmt.Errorf("sse: write %s: %w", event, err)
	}
	s.flusher.Flush()
	return nil
}
