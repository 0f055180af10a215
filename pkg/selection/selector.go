// Package selection picks the stored conversations most relevant to an
// incoming query. A language-model judge sees an enumerated candidate list
// and answers with 1-indexed picks; everything the judge says is validated
// here, and every failure mode degrades to "no relevant context" rather
// than an error. Missing context only costs answer quality, so selection
// never blocks a chat turn.
package selection

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/parchmentlabs/recall/pkg/llm"
	"github.com/parchmentlabs/recall/pkg/logging"
	"github.com/parchmentlabs/recall/pkg/prompts"
	"github.com/parchmentlabs/recall/pkg/types"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("selection")
	if err != nil {
		debugLog.Warnf("file logging unavailable, using stderr: %v", err)
	}
}

const (
	// defaultMaxSelections caps how many conversations a query pulls in.
	defaultMaxSelections = 3

	// defaultCacheTTL bounds how long a verdict stays valid.
	defaultCacheTTL = 5 * time.Minute
)

// RelevanceJudge ranks an enumerated candidate list against a query and
// answers with up to k 1-indexed positions.
type RelevanceJudge interface {
	Judge(ctx context.Context, candidateList, query string, k int) ([]int, error)
}

// LLMJudge implements RelevanceJudge over a structured-output provider.
type LLMJudge struct {
	provider llm.StructuredProvider
}

// NewLLMJudge creates a judge backed by the given provider.
func NewLLMJudge(provider llm.StructuredProvider) *LLMJudge {
	return &LLMJudge{provider: provider}
}

// Judge renders the selection prompt and decodes the structured response.
func (j *LLMJudge) Judge(ctx context.Context, candidateList, query string, k int) ([]int, error) {
	raw, err := j.provider.CompleteStructured(ctx, prompts.Selection(candidateList, query, k), llm.SelectionFormat(k))
	if err != nil {
		return nil, err
	}
	return llm.DecodeSelection(raw, k)
}

// Selector chooses the conversations most relevant to a query.
type Selector struct {
	judge         RelevanceJudge
	maxSelections int
	cache         *ristretto.Cache
	cacheTTL      time.Duration
}

// SelectorOption customizes a Selector.
type SelectorOption func(*Selector)

// WithMaxSelections caps how many conversations Select returns.
func WithMaxSelections(k int) SelectorOption {
	return func(s *Selector) {
		s.maxSelections = k
	}
}

// WithCacheTTL sets how long judge verdicts are reused. Zero disables
// caching.
func WithCacheTTL(ttl time.Duration) SelectorOption {
	return func(s *Selector) {
		s.cacheTTL = ttl
	}
}

// NewSelector creates a selector over the given judge.
func NewSelector(judge RelevanceJudge, opts ...SelectorOption) *Selector {
	s := &Selector{
		judge:         judge,
		maxSelections: defaultMaxSelections,
		cacheTTL:      defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.cacheTTL > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 10_000,
			MaxCost:     1 << 20,
			BufferItems: 64,
		})
		if err != nil {
			debugLog.Warnf("verdict cache unavailable, judging every query: %v", err)
		} else {
			s.cache = cache
		}
	}
	return s
}

// Select returns up to maxSelections conversations relevant to the query,
// most relevant first. With no candidates the judge is never consulted.
// Judge transport or parse failures yield an empty result.
func (s *Selector) Select(ctx context.Context, candidates []*types.Conversation, query string) []*types.Conversation {
	if len(candidates) == 0 {
		return nil
	}

	key := s.verdictKey(candidates, query)
	if indices, ok := s.cachedVerdict(key); ok {
		debugLog.Debugf("verdict cache hit for query %q", query)
		return pick(candidates, indices)
	}

	raw, err := s.judge.Judge(ctx, renderCandidates(candidates), query, s.maxSelections)
	if err != nil {
		debugLog.Warnf("relevance judge failed, selecting nothing: %v", err)
		return nil
	}

	indices := s.validate(raw, len(candidates))
	s.storeVerdict(key, indices)
	return pick(candidates, indices)
}

// validate filters the judge's raw picks down to usable 0-based indices:
// zeros are dropped silently (the judge's "nothing relevant" marker),
// out-of-range picks are logged and dropped, duplicates keep their first
// occurrence, and at most maxSelections survive.
func (s *Selector) validate(raw []int, n int) []int {
	seen := make(map[int]bool, len(raw))
	var out []int
	for _, pick := range raw {
		if pick == 0 {
			continue
		}
		if pick < 1 || pick > n {
			debugLog.Warnf("judge selected position %d outside 1..%d, ignoring", pick, n)
			continue
		}
		if seen[pick] {
			continue
		}
		seen[pick] = true
		out = append(out, pick-1)
		if len(out) == s.maxSelections {
			break
		}
	}
	return out
}

func pick(candidates []*types.Conversation, indices []int) []*types.Conversation {
	out := make([]*types.Conversation, 0, len(indices))
	for _, i := range indices {
		out = append(out, candidates[i])
	}
	return out
}

// renderCandidates produces the 1-indexed list the judge sees: each line is
// the conversation's title plus its current memory's topic names. Block
// descriptions stay out of the prompt to keep it cheap.
func renderCandidates(candidates []*types.Conversation) string {
	lines := make([]string, 0, len(candidates))
	for i, conv := range candidates {
		title := conv.Title
		if title == "" {
			title = "Untitled conversation"
		}

		line := fmt.Sprintf("%d. %s", i+1, title)
		if topics := topicNames(conv); len(topics) > 0 {
			line += " (topics: " + strings.Join(topics, ", ") + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func topicNames(conv *types.Conversation) []string {
	mem := conv.CurrentMemory()
	names := make([]string, 0, len(mem.Blocks))
	for _, block := range mem.Blocks {
		names = append(names, block.Topic)
	}
	return names
}

// verdictKey fingerprints the query against the candidate set. Indices are
// positional, so the key covers each candidate's id and snapshot sequence;
// any reordering or memory update invalidates the cached verdict.
func (s *Selector) verdictKey(candidates []*types.Conversation, query string) string {
	h := sha256.New()
	h.Write([]byte(query))
	for _, conv := range candidates {
		fmt.Fprintf(h, "\x00%s:%d", conv.ID, conv.LastSequence())
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Selector) cachedVerdict(key string) ([]int, bool) {
	if s.cache == nil {
		return nil, false
	}
	val, ok := s.cache.Get(key)
	if !ok {
		return nil, false
	}
	indices, ok := val.([]int)
	return indices, ok
}

func (s *Selector) storeVerdict(key string, indices []int) {
	if s.cache == nil {
		return
	}
	s.cache.SetWithTTL(key, indices, int64(len(indices)+1), s.cacheTTL)
}
