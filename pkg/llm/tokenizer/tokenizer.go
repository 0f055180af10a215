// Package tokenizer wraps tiktoken for client-side token counting and
// token-bounded truncation of prompt material.
package tokenizer

import (
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// defaultEncoding is the cl100k BPE used by the models Recall targets.
const defaultEncoding = "cl100k_base"

// estimateDivisor approximates tokens as len/4 when no encoding is
// available (e.g. offline environments where the BPE ranks cannot load).
const estimateDivisor = 4

// Tokenizer counts and truncates text by token.
type Tokenizer struct {
	encoding *tiktoken.Tiktoken // nil when estimation fallback is active
}

// New creates a tokenizer, degrading to length-based estimation if the
// encoding cannot be initialized. It never fails: an approximate budget is
// better than no budget.
func New() *Tokenizer {
	enc, err := tiktoken.GetEncoding(defaultEncoding)
	if err != nil {
		return &Tokenizer{}
	}
	return &Tokenizer{encoding: enc}
}

// CountTokens returns the number of tokens in text.
func (t *Tokenizer) CountTokens(text string) int {
	if t.encoding == nil {
		return (len(text) + estimateDivisor - 1) / estimateDivisor
	}
	return len(t.encoding.Encode(text, nil, nil))
}

// Truncate returns text cut down to at most maxTokens tokens, with an
// ellipsis marker when content was dropped. Zero or negative budgets yield
// an empty string.
func (t *Tokenizer) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if t.encoding == nil {
		limit := maxTokens * estimateDivisor
		if len(text) <= limit {
			return text
		}
		for limit > 0 && !utf8.RuneStart(text[limit]) {
			limit--
		}
		return strings.TrimSpace(text[:limit]) + "..."
	}

	tokens := t.encoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return strings.TrimSpace(t.encoding.Decode(tokens[:maxTokens])) + "..."
}
