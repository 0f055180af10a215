package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/parchmentlabs/recall/pkg/llm"
	"github.com/parchmentlabs/recall/pkg/llm/tokenizer"
	"github.com/parchmentlabs/recall/pkg/prompts"
	"github.com/parchmentlabs/recall/pkg/types"
)

const (
	// defaultDigestTokens bounds each conversation's slice of the
	// consolidation prompt.
	defaultDigestTokens = 600

	// defaultRecentTurns is how many trailing messages represent a
	// conversation in its digest.
	defaultRecentTurns = 6
)

// Merger is the collaborator that fuses a multi-conversation digest into a
// single memory relevant to the query.
type Merger interface {
	Merge(ctx context.Context, digest, query string) (types.Memory, error)
}

// LLMMerger implements Merger over a structured-output provider.
type LLMMerger struct {
	provider llm.StructuredProvider
}

// NewLLMMerger creates a merger backed by the given provider.
func NewLLMMerger(provider llm.StructuredProvider) *LLMMerger {
	return &LLMMerger{provider: provider}
}

// Merge renders the consolidation prompt and decodes the structured response.
func (m *LLMMerger) Merge(ctx context.Context, digest, query string) (types.Memory, error) {
	raw, err := m.provider.CompleteStructured(ctx, prompts.Consolidation(digest, query), llm.MemoryFormat())
	if err != nil {
		return types.Memory{}, err
	}
	return llm.DecodeMemory(raw)
}

// Consolidator merges the memories of several conversations into one bounded
// memory. It never fails: with no input it returns an empty memory without
// calling the merger, and when the merger fails it returns a degenerate
// memory whose single block records the failure, so callers always get
// something they can attach to a conversation.
type Consolidator struct {
	merger       Merger
	tok          *tokenizer.Tokenizer
	digestTokens int
	recentTurns  int
}

// ConsolidatorOption customizes a Consolidator.
type ConsolidatorOption func(*Consolidator)

// WithDigestTokens sets the per-conversation token budget in the digest.
func WithDigestTokens(n int) ConsolidatorOption {
	return func(c *Consolidator) {
		c.digestTokens = n
	}
}

// WithRecentTurns sets how many trailing messages each digest includes.
func WithRecentTurns(n int) ConsolidatorOption {
	return func(c *Consolidator) {
		c.recentTurns = n
	}
}

// NewConsolidator creates a consolidator over the given merger.
func NewConsolidator(merger Merger, opts ...ConsolidatorOption) *Consolidator {
	c := &Consolidator{
		merger:       merger,
		tok:          tokenizer.New(),
		digestTokens: defaultDigestTokens,
		recentTurns:  defaultRecentTurns,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Consolidate merges the given conversations' memories into one memory
// scoped to the query.
func (c *Consolidator) Consolidate(ctx context.Context, convs []*types.Conversation, query string) types.Memory {
	if len(convs) == 0 {
		return types.Memory{}
	}

	merged, err := c.merger.Merge(ctx, c.buildDigest(convs), query)
	if err != nil {
		debugLog.Errorf("consolidation of %d conversations failed: %v", len(convs), err)
		return types.Memory{
			Summary: fmt.Sprintf("Consolidation of %d conversations failed", len(convs)),
			Blocks: []types.Block{{
				Topic:       "consolidation_error",
				Description: err.Error(),
			}},
		}
	}
	return merged.Bounded()
}

// buildDigest renders each conversation as a titled section holding its
// current memory and a tail of recent turns, each section truncated to the
// per-conversation token budget.
func (c *Consolidator) buildDigest(convs []*types.Conversation) string {
	var b strings.Builder
	for i, conv := range convs {
		title := conv.Title
		if title == "" {
			title = "Untitled conversation"
		}

		var section strings.Builder
		section.WriteString(conv.CurrentMemory().PromptString())
		if recent := conv.RecentMessages(c.recentTurns); len(recent) > 0 {
			section.WriteString("\n\nRecent messages:\n")
			section.WriteString(prompts.RenderTranscript(recent))
		}

		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "### %d. %s\n", i+1, title)
		b.WriteString(c.tok.Truncate(section.String(), c.digestTokens))
	}
	return b.String()
}
