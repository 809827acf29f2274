package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, lines []string, inspect func(*http.Request, openAIRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body openAIRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if inspect != nil {
			inspect(r, body)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, l := range lines {
			fmt.Fprintf(w, "%s\n\n", l)
			w.(http.Flusher).Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func collect(seq func(func(string, error) bool)) ([]string, error) {
	var out []string
	for delta, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, delta)
	}
	return out, nil
}

func TestOpenAI_StreamsDeltas(t *testing.T) {
	var gotReq openAIRequest
	var gotAuth string
	srv := sseServer(t, []string{
		`data: {"choices":[{"delta":{"role":"assistant"}}]}`,
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		`: keep-alive`,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		`data: [DONE]`,
		`data: {"choices":[{"delta":{"content":"ignored"}}]}`,
	}, func(r *http.Request, body openAIRequest) {
		gotReq = body
		gotAuth = r.Header.Get("Authorization")
	})

	p := NewOpenAI(srv.URL+"/", "sk-test", "gpt-test", nil)
	deltas, err := collect(p.Stream(context.Background(), Request{
		System:      "be brief",
		Messages:    []Message{{Role: RoleUser, Content: "hi"}},
		Temperature: 0.7,
		MaxTokens:   1000,
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, deltas)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.True(t, gotReq.Stream)
	assert.Equal(t, "gpt-test", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, Role("system"), gotReq.Messages[0].Role)
	assert.Equal(t, "be brief", gotReq.Messages[0].Content)
	assert.Equal(t, 1000, gotReq.MaxTokens)
}

func TestOpenAI_NoSystemMessageWhenEmpty(t *testing.T) {
	var gotReq openAIRequest
	srv := sseServer(t, []string{`data: [DONE]`}, func(_ *http.Request, body openAIRequest) { gotReq = body })

	p := NewOpenAI(srv.URL, "", "m", nil)
	_, err := collect(p.Stream(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}}))
	require.NoError(t, err)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, RoleUser, gotReq.Messages[0].Role)
}

func TestOpenAI_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	p := NewOpenAI(srv.URL, "k", "m", nil)
	deltas, err := collect(p.Stream(context.Background(), Request{}))
	assert.Empty(t, deltas)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestOpenAI_MidStreamError(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"choices":[{"delta":{"content":"partial"}}]}`,
		`data: {"error":{"message":"overloaded"}}`,
	}, nil)

	p := NewOpenAI(srv.URL, "k", "m", nil)
	deltas, err := collect(p.Stream(context.Background(), Request{}))
	assert.Equal(t, []string{"partial"}, deltas)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestOpenAI_EarlyBreakStops(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"choices":[{"delta":{"content":"a"}}]}`,
		`data: {"choices":[{"delta":{"content":"b"}}]}`,
		`data: [DONE]`,
	}, nil)

	p := NewOpenAI(srv.URL, "k", "m", nil)
	var got []string
	for delta, err := range p.Stream(context.Background(), Request{}) {
		require.NoError(t, err)
		got = append(got, delta)
		break
	}
	assert.Equal(t, []string{"a"}, got)
}

func TestOpenAI_TruncatedStreamFails(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"choices":[{"delta":{"content":"The deadline is"}}]}`,
	}, nil)

	p := NewOpenAI(srv.URL, "k", "m", nil)
	deltas, err := collect(p.Stream(context.Background(), Request{}))
	assert.Equal(t, []string{"The deadline is"}, deltas)
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestOpenAI_EmptyBodyFails(t *testing.T) {
	srv := sseServer(t, nil, nil)

	p := NewOpenAI(srv.URL, "k", "m", nil)
	deltas, err := collect(p.Stream(context.Background(), Request{}))
	assert.Empty(t, deltas)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
