package chat

import (
	"context"
	"strings"

	"github.com/parchmentlabs/recall/pkg/llm"
	"github.com/parchmentlabs/recall/pkg/prompts"
)

// DefaultTitle names conversations until a real title is derived, and
// stands in whenever title generation fails.
const DefaultTitle = "New conversation"

// maxTitleRunes caps generated titles; models occasionally ignore the
// length instruction.
const maxTitleRunes = 80

// TitleGenerator derives a conversation title from its opening message.
type TitleGenerator struct {
	provider llm.Provider
}

// NewTitleGenerator creates a title generator backed by the given provider.
func NewTitleGenerator(provider llm.Provider) *TitleGenerator {
	return &TitleGenerator{provider: provider}
}

// Generate returns a title for a conversation opening with firstMessage.
// It never fails: any provider error or unusable response yields
// DefaultTitle.
func (g *TitleGenerator) Generate(ctx context.Context, firstMessage string) string {
	if g == nil || g.provider == nil {
		return DefaultTitle
	}

	msg, err := g.provider.Complete(ctx, prompts.Title(firstMessage))
	if err != nil {
		debugLog.Warnf("title generation failed: %v", err)
		return DefaultTitle
	}

	title := strings.TrimSpace(msg.Content)
	title = strings.Trim(title, `"'`)
	title = strings.TrimSpace(title)
	if title == "" {
		return DefaultTitle
	}
	if runes := []rune(title); len(runes) > maxTitleRunes {
		title = string(runes[:maxTitleRunes])
	}
	return title
}
