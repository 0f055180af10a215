// Package openai provides an OpenAI-compatible LLM provider implementation.
//
// It backs all of Recall's structured collaborator calls (memory
// summarization, relevance judging, consolidation, title generation) and can
// also stream free-form completions. Setting a custom base URL points it at
// any OpenAI-compatible service (Groq, Azure, local models).
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/openai/openai-go"

	"github.com/parchmentlabs/recall/pkg/llm"
	"github.com/parchmentlabs/recall/pkg/types"
)

// DefaultBaseURL is the default OpenAI API base URL.
const DefaultBaseURL = "https://api.openai.com/v1"

// Provider implements llm.Provider and llm.StructuredProvider for
// OpenAI-compatible APIs.
type Provider struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithModel sets the model to use for completions.
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		p.model = model
	}
}

// WithBaseURL sets a custom base URL for OpenAI-compatible APIs.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// NewProvider creates a new OpenAI-compatible provider.
//
// If apiKey is empty it is read from OPENAI_API_KEY. If no base URL option
// is given, OPENAI_BASE_URL is consulted before falling back to the default.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai: API key is required (parameter or OPENAI_API_KEY)")
	}

	p := &Provider{
		model:      "gpt-4o-mini",
		apiKey:     apiKey,
		httpClient: &http.Client{},
		baseURL:    DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.baseURL == DefaultBaseURL {
		if envBaseURL := os.Getenv("OPENAI_BASE_URL"); envBaseURL != "" {
			p.baseURL = envBaseURL
		}
	}

	return p, nil
}

// Model returns the model name being used.
func (p *Provider) Model() string { return p.model }

// StreamCompletion sends messages to the API and streams back response
// chunks. The channel is closed when streaming completes or fails.
//
// Raw HTTP streaming is used rather than the SDK's stream helper because
// OpenAI-compatible services vary slightly in their SSE framing (comments,
// keep-alives); handling `data:` lines directly tolerates all of them.
func (p *Provider) StreamCompletion(ctx context.Context, messages []types.Message) (<-chan *llm.StreamChunk, error) {
	resp, err := p.send(ctx, map[string]interface{}{
		"model":    p.model,
		"messages": convertMessages(messages),
		"stream":   true,
	}, "text/event-stream")
	if err != nil {
		return nil, err
	}

	chunks := make(chan *llm.StreamChunk, 10)
	go p.processStream(ctx, resp, chunks)
	return chunks, nil
}

// Complete accumulates a full streaming response into one message.
func (p *Provider) Complete(ctx context.Context, messages []types.Message) (types.Message, error) {
	stream, err := p.StreamCompletion(ctx, messages)
	if err != nil {
		return types.Message{}, err
	}

	var content, role string
	for chunk := range stream {
		if chunk.IsError() {
			return types.Message{}, chunk.Error
		}
		if chunk.Role != "" {
			role = chunk.Role
		}
		content += chunk.Content
	}

	if role == "" {
		role = string(types.RoleAssistant)
	}
	return types.Message{Role: types.MessageRole(role), Content: content}, nil
}

// CompleteStructured performs a non-streaming completion constrained to the
// given JSON schema and returns the raw response content for boundary
// decoding. Transport-level failures come back as *llm.TransportError.
func (p *Provider) CompleteStructured(ctx context.Context, messages []types.Message, format llm.ResponseFormat) ([]byte, error) {
	resp, err := p.send(ctx, map[string]interface{}{
		"model":    p.model,
		"messages": convertMessages(messages),
		"response_format": map[string]interface{}{
			"type": "json_schema",
			"json_schema": map[string]interface{}{
				"name":   format.Name,
				"schema": format.Schema,
			},
		},
	}, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &llm.TransportError{Op: format.Name, Err: fmt.Errorf("read response: %w", err)}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &llm.ParseError{Target: format.Name, Raw: string(body), Err: err}
	}
	if len(parsed.Choices) == 0 {
		return nil, &llm.ParseError{Target: format.Name, Raw: string(body), Err: fmt.Errorf("response has no choices")}
	}
	return []byte(parsed.Choices[0].Message.Content), nil
}

// send builds and issues one chat-completions request.
func (p *Provider) send(ctx context.Context, reqBody map[string]interface{}, accept string) (*http.Response, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	url := p.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Accept", accept)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &llm.TransportError{Op: "chat/completions", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, &llm.TransportError{Op: "chat/completions", Err: fmt.Errorf("status %d (unreadable body: %v)", resp.StatusCode, readErr)}
		}
		return nil, &llm.TransportError{Op: "chat/completions", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}

	return resp, nil
}

// processStream reads SSE lines from the response and forwards chunks.
func (p *Provider) processStream(ctx context.Context, resp *http.Response, chunks chan<- *llm.StreamChunk) {
	defer close(chunks)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	firstChunk := true

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") || !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			p.emit(ctx, chunks, &llm.StreamChunk{Finished: true})
			return
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"delta"`
				FinishReason *string `json:"finish_reason"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // skip malformed chunks
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		out := &llm.StreamChunk{Content: delta.Content}
		if firstChunk && delta.Role != "" {
			out.Role = delta.Role
			firstChunk = false
		}
		if fr := chunk.Choices[0].FinishReason; fr != nil && *fr == "stop" {
			out.Finished = true
		}
		if out.Content != "" || out.Role != "" || out.Finished {
			if !p.emit(ctx, chunks, out) {
				return
			}
		}
		// finish_reason "stop" is the real terminator; the [DONE] sentinel
		// that follows must not produce a second Finished chunk.
		if out.Finished {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		p.emit(ctx, chunks, &llm.StreamChunk{Error: &llm.TransportError{Op: "stream read", Err: err}})
	}
}

// emit sends a chunk unless the context is done. On a done context the
// cancellation error is offered without blocking; a consumer that has
// walked away must not pin this goroutine forever.
func (p *Provider) emit(ctx context.Context, chunks chan<- *llm.StreamChunk, chunk *llm.StreamChunk) bool {
	select {
	case chunks <- chunk:
		return true
	case <-ctx.Done():
		select {
		case chunks <- &llm.StreamChunk{Error: ctx.Err()}:
		default:
		}
		return false
	}
}

// convertMessages converts Recall messages to OpenAI's param union format.
func convertMessages(messages []types.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case types.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
