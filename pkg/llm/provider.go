// Package llm defines the collaborator contracts for Recall's language-model
// backends and the error taxonomy decided at that boundary.
//
// Two call shapes exist. Streaming completion generates user-facing replies
// chunk by chunk. Structured completion constrains the model to one of the
// fixed JSON schemas in schema.go and returns the raw bytes; decoding happens
// exactly once, here, producing either a typed value or a *ParseError that
// carries the raw text. Downstream code branches on the error type instead
// of shape-testing responses.
package llm

import (
	"context"

	"github.com/parchmentlabs/recall/pkg/types"
)

// StreamChunk is a piece of a streaming completion.
type StreamChunk struct {
	// Role is set on the first chunk of a response (e.g. "assistant").
	Role string

	// Content is the text delta for this chunk.
	Content string

	// Finished marks the final chunk of a successful stream.
	Finished bool

	// Error is set when the stream failed; no further chunks follow.
	Error error
}

// IsError returns true if this chunk carries a stream failure.
func (c *StreamChunk) IsError() bool {
	return c.Error != nil
}

// Provider generates free-form completions.
type Provider interface {
	// StreamCompletion sends messages to the model and streams back response
	// chunks. The channel is closed when the stream completes or fails.
	StreamCompletion(ctx context.Context, messages []types.Message) (<-chan *StreamChunk, error)

	// Complete accumulates a full streaming response into one message.
	Complete(ctx context.Context, messages []types.Message) (types.Message, error)
}

// StructuredProvider generates completions constrained to a fixed JSON
// schema and returns the raw response bytes for boundary decoding.
type StructuredProvider interface {
	CompleteStructured(ctx context.Context, messages []types.Message, format ResponseFormat) ([]byte, error)
}
