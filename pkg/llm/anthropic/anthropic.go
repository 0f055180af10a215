// Package anthropic provides the Anthropic-backed reply provider.
//
// Recall uses it for user-facing reply generation, where streaming quality
// matters; structured collaborator calls go through the OpenAI-compatible
// provider instead.
package anthropic

import (
	"context"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/parchmentlabs/recall/pkg/llm"
	"github.com/parchmentlabs/recall/pkg/types"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-20250514"

const defaultMaxTokens = 8192

// Provider implements llm.Provider using the Anthropic Messages API.
type Provider struct {
	client    *anthropicsdk.Client
	model     string
	maxTokens int64
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithModel sets the model to use.
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		p.model = model
	}
}

// WithMaxTokens sets the response token limit.
func WithMaxTokens(n int64) ProviderOption {
	return func(p *Provider) {
		p.maxTokens = n
	}
}

// NewProvider creates an Anthropic provider. The API key is read from
// ANTHROPIC_API_KEY when apiKey is empty (SDK default behavior).
func NewProvider(apiKey string, opts ...ProviderOption) *Provider {
	var client anthropicsdk.Client
	if apiKey != "" {
		client = anthropicsdk.NewClient(option.WithAPIKey(apiKey))
	} else {
		client = anthropicsdk.NewClient()
	}

	p := &Provider{
		client:    &client,
		model:     DefaultModel,
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// StreamCompletion streams a completion for the given messages. A leading
// system message becomes the request's system prompt; remaining messages map
// to user/assistant turns.
func (p *Provider) StreamCompletion(ctx context.Context, messages []types.Message) (<-chan *llm.StreamChunk, error) {
	params, err := p.buildParams(messages)
	if err != nil {
		return nil, err
	}

	chunks := make(chan *llm.StreamChunk, 10)
	go func() {
		defer close(chunks)

		stream := p.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		first := true
		for stream.Next() {
			event := stream.Current()
			switch evt := event.AsAny().(type) {
			case anthropicsdk.ContentBlockDeltaEvent:
				switch delta := evt.Delta.AsAny().(type) {
				case anthropicsdk.TextDelta:
					out := &llm.StreamChunk{Content: delta.Text}
					if first {
						out.Role = string(types.RoleAssistant)
						first = false
					}
					if !p.emit(ctx, chunks, out) {
						return
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			p.emit(ctx, chunks, &llm.StreamChunk{Error: &llm.TransportError{Op: "messages stream", Err: err}})
			return
		}
		p.emit(ctx, chunks, &llm.StreamChunk{Finished: true})
	}()

	return chunks, nil
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

// Complete accumulates a full streaming response into one message.
func (p *Provider) Complete(ctx context.Context, messages []types.Message) (types.Message, error) {
	stream, err := p.StreamCompletion(ctx, messages)
	if err != nil {
		return types.Message{}, err
	}

	var content string
	for chunk := range stream {
		if chunk.IsError() {
			return types.Message{}, chunk.Error
		}
		content += chunk.Content
	}
	return types.Message{Role: types.RoleAssistant, Content: content}, nil
}

// buildParams converts Recall messages to Anthropic request params.
func (p *Provider) buildParams(messages []types.Message) (anthropicsdk.MessageNewParams, error) {
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(p.model),
		MaxTokens: p.maxTokens,
	}

	var turns []anthropicsdk.MessageParam
	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			params.System = append(params.System, anthropicsdk.TextBlockParam{Text: msg.Content})
		case types.RoleUser:
			turns = append(turns, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(msg.Content)))
		case types.RoleAssistant:
			turns = append(turns, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(msg.Content)))
		default:
			return params, fmt.Errorf("anthropic: unsupported message role %q", msg.Role)
		}
	}
	if len(turns) == 0 {
		return params, fmt.Errorf("anthropic: no user or assistant messages to send")
	}
	params.Messages = turns
	return params, nil
}
