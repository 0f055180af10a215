// Package prompts builds the prompt payloads sent to Recall's language-model
// collaborators. Each builder returns a ready-to-send message list; callers
// pass the result straight to a provider.
package prompts

import (
	"fmt"
	"strings"

	"github.com/parchmentlabs/recall/pkg/types"
)

// Summarization builds the memory-recomputation prompt: fold newly completed
// turns into the prior memory and emit a fresh memory.
func Summarization(priorMemory, newTurns string) []types.Message {
	var b strings.Builder
	b.WriteString("You maintain the long-lived memory of an ongoing conversation.\n\n")
	b.WriteString("CURRENT MEMORY:\n")
	b.WriteString(priorMemory)
	b.WriteString("\n\nNEW MESSAGES:\n")
	b.WriteString(newTurns)
	b.WriteString("\n\nINSTRUCTIONS:\n")
	b.WriteString("1. Merge the new messages into the current memory\n")
	b.WriteString("2. Keep the summary under 20 words\n")
	b.WriteString(fmt.Sprintf("3. Keep at most %d topic blocks, dropping the least useful ones\n", types.MaxMemoryBlocks))
	b.WriteString("4. Preserve facts that will matter in future conversations\n")
	b.WriteString("5. Prefer specific details (names, dates, decisions) over generic phrasing\n")

	return []types.Message{
		types.NewSystemMessage("You are a memory summarizer. Respond only with the requested structured memory."),
		types.NewUserMessage(b.String()),
	}
}

// Selection builds the relevance-judge prompt over an enumerated,
// 1-indexed candidate list.
func Selection(candidateList, query string, k int) []types.Message {
	var b strings.Builder
	b.WriteString("Find the conversations most relevant to the query below.\n\n")
	b.WriteString("QUERY:\n")
	b.WriteString(query)
	b.WriteString("\n\nCANDIDATE CONVERSATIONS (1-indexed):\n")
	b.WriteString(candidateList)
	b.WriteString("\n\nINSTRUCTIONS:\n")
	b.WriteString(fmt.Sprintf("1. Select up to %d conversations that genuinely help answer the query\n", k))
	b.WriteString("2. Answer with their 1-indexed positions, most relevant first\n")
	b.WriteString("3. Select nothing if no conversation is relevant — do not pad the list\n")

	return []types.Message{
		types.NewSystemMessage("You are a relevance judge. Respond only with the requested structured selection."),
		types.NewUserMessage(b.String()),
	}
}

// Consolidation builds the prompt that merges several conversations'
// digests into one bounded memory relevant to the query.
func Consolidation(digest, query string) []types.Message {
	var b strings.Builder
	b.WriteString("Consolidate the following conversations into a single memory.\n\n")
	b.WriteString("USER QUERY THESE CONVERSATIONS ARE RELEVANT TO:\n")
	b.WriteString(query)
	b.WriteString("\n\nCONVERSATIONS:\n")
	b.WriteString(digest)
	b.WriteString("\n\nINSTRUCTIONS:\n")
	b.WriteString("1. Extract the information that matters for the query\n")
	b.WriteString(fmt.Sprintf("2. Produce at most %d topic blocks and a summary under 20 words\n", types.MaxMemoryBlocks))
	b.WriteString("3. Merge overlapping topics across conversations rather than repeating them\n")

	return []types.Message{
		types.NewSystemMessage("You are a memory consolidator. Respond only with the requested structured memory."),
		types.NewUserMessage(b.String()),
	}
}

// Title builds the conversation-title prompt from the opening message.
func Title(firstMessage string) []types.Message {
	var b strings.Builder
	b.WriteString("Create a concise, descriptive title for a chat that starts with this message:\n\n")
	b.WriteString(firstMessage)
	b.WriteString("\n\nINSTRUCTIONS:\n")
	b.WriteString("1. Capture the main topic or intent\n")
	b.WriteString("2. Keep it under 50 characters\n")
	b.WriteString("3. Avoid generic titles like \"New Chat\" or \"Conversation\"\n")
	b.WriteString("4. Respond with the title only, no quotes or punctuation around it\n")

	return []types.Message{
		types.NewSystemMessage("You name conversations. Respond with the title text only."),
		types.NewUserMessage(b.String()),
	}
}

// Reply builds the user-facing response prompt from current memory, recent
// history, and the incoming message.
func Reply(memory, recentHistory, userMessage string) []types.Message {
	var b strings.Builder
	b.WriteString("CURRENT MEMORY:\n")
	b.WriteString(memory)
	b.WriteString("\n\nRECENT CHAT HISTORY:\n")
	b.WriteString(recentHistory)
	b.WriteString("\n\nCURRENT USER MESSAGE:\n")
	b.WriteString(userMessage)
	b.WriteString("\n\nUse the memory and history to respond with continuity; reference remembered details when they are relevant.")

	return []types.Message{
		types.NewSystemMessage("You are a helpful AI assistant with access to contextual memory and chat history."),
		types.NewUserMessage(b.String()),
	}
}

// RenderTranscript renders messages as role-prefixed lines for prompt
// injection, e.g. "USER: ...".
func RenderTranscript(messages []types.Message) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(string(msg.Role)), msg.Content))
	}
	return strings.Join(lines, "\n")
}
