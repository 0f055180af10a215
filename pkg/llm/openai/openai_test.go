package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchmentlabs/recall/pkg/llm"
	"github.com/parchmentlabs/recall/pkg/types"
)

func TestNewProviderRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewProvider("")
	require.Error(t, err)

	p, err := NewProvider("sk-test", WithModel("gpt-4o"), WithBaseURL("http://localhost:1234/v1"))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", p.Model())
}

func TestCompleteStructured(t *testing.T) {
	var gotReq map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		fmt.Fprint(w, `{"choices":[{"message":{"content":"{\"selections\":[1,3]}"}}]}`)
	}))
	defer srv.Close()

	p, err := NewProvider("sk-test", WithBaseURL(srv.URL+"/v1"), WithModel("test-model"))
	require.NoError(t, err)

	raw, err := p.CompleteStructured(context.Background(),
		[]types.Message{types.NewUserMessage("pick")}, llm.SelectionFormat(3))
	require.NoError(t, err)
	assert.JSONEq(t, `{"selections":[1,3]}`, string(raw))

	// The fixed schema travels in response_format.
	rf := gotReq["response_format"].(map[string]interface{})
	assert.Equal(t, "json_schema", rf["type"])
	js := rf["json_schema"].(map[string]interface{})
	assert.Equal(t, "selection", js["name"])
}

func TestCompleteStructuredTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, err := NewProvider("sk-test", WithBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)

	_, err = p.CompleteStructured(context.Background(),
		[]types.Message{types.NewUserMessage("x")}, llm.MemoryFormat())
	var transportErr *llm.TransportError
	require.True(t, errors.As(err, &transportErr))
}

func TestStreamCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keep-alive comment\n\n")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"role":"assistant","content":"Hel"}}]}`+"\n\n")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"lo"}}]}`+"\n\n")
		fmt.Fprint(w, `data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p, err := NewProvider("sk-test", WithBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)

	msg, err := p.Complete(context.Background(), []types.Message{types.NewUserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, types.RoleAssistant, msg.Role)
	assert.Equal(t, "Hello", msg.Content)
}

func TestStreamCompletionEmitsOneFinalChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"role":"assistant","content":"Hi"}}]}`+"\n\n")
		fmt.Fprint(w, `data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p, err := NewProvider("sk-test", WithBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)

	stream, err := p.StreamCompletion(context.Background(), []types.Message{types.NewUserMessage("hi")})
	require.NoError(t, err)

	var content string
	finals := 0
	for chunk := range stream {
		require.NoError(t, chunk.Error)
		content += chunk.Content
		if chunk.Finished {
			finals++
		}
	}
	assert.Equal(t, "Hi", content)
	assert.Equal(t, 1, finals, "the [DONE] sentinel after finish_reason must not terminate the stream twice")
}

func TestEmitDropsChunkForCanceledConsumer(t *testing.T) {
	p, err := NewProvider("sk-test")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Unbuffered channel with no reader: a blocking send here would hang
	// the test, a dropped send returns immediately.
	ch := make(chan *llm.StreamChunk)
	assert.False(t, p.emit(ctx, ch, &llm.StreamChunk{Content: "late"}))
}
