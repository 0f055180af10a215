// Package memory contains Recall's memory maintenance machinery: the
// summarizer collaborator that re-derives a conversation's memory from new
// turns, the per-conversation update scheduler that orders those
// recomputations, and the consolidator that merges several conversations'
// memories into one.
package memory

import (
	"context"

	"github.com/parchmentlabs/recall/pkg/llm"
	"github.com/parchmentlabs/recall/pkg/logging"
	"github.com/parchmentlabs/recall/pkg/prompts"
	"github.com/parchmentlabs/recall/pkg/types"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("memory")
	if err != nil {
		debugLog.Warnf("file logging unavailable, using stderr: %v", err)
	}
}

// Summarizer recomputes a conversation's memory by folding newly completed
// turns into the prior memory. Failures are typed at the llm boundary:
// *llm.TransportError when the backend is unreachable, *llm.ParseError when
// it answered with an uninterpretable shape.
type Summarizer interface {
	Summarize(ctx context.Context, prior types.Memory, newMessages []types.Message) (types.Memory, error)
}

// LLMSummarizer implements Summarizer over a structured-output provider.
type LLMSummarizer struct {
	provider llm.StructuredProvider
}

// NewLLMSummarizer creates a summarizer backed by the given provider.
func NewLLMSummarizer(provider llm.StructuredProvider) *LLMSummarizer {
	return &LLMSummarizer{provider: provider}
}

// Summarize renders the prior memory and new turns into the summarization
// prompt and decodes the structured response.
func (s *LLMSummarizer) Summarize(ctx context.Context, prior types.Memory, newMessages []types.Message) (types.Memory, error) {
	payload := prompts.Summarization(prior.PromptString(), prompts.RenderTranscript(newMessages))

	raw, err := s.provider.CompleteStructured(ctx, payload, llm.MemoryFormat())
	if err != nil {
		return types.Memory{}, err
	}
	return llm.DecodeMemory(raw)
}
