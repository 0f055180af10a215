// Package types defines the core data model for the Recall memory service:
// messages, memories, memory snapshots, and conversations.
//
// Everything here is a value type. Messages and snapshots are created once
// and never mutated; conversations grow only by appending messages and
// snapshots (plus title assignment). Cloning helpers produce fully
// independent copies so forked conversations never alias their source.
package types

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies the author of a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"      // RoleUser is an end-user message.
	RoleAssistant MessageRole = "assistant" // RoleAssistant is a model-generated reply.
	RoleSystem    MessageRole = "system"    // RoleSystem is a prompt-only instruction, never stored in a conversation.
)

// Message is a single conversation turn entry. Created once, immutable
// thereafter; ordering within a conversation is insertion order.
type Message struct {
	ID        string      `json:"id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewUserMessage creates a user message with a fresh id and timestamp.
func NewUserMessage(content string) Message {
	return newMessage(RoleUser, content)
}

// NewAssistantMessage creates an assistant message with a fresh id and timestamp.
func NewAssistantMessage(content string) Message {
	return newMessage(RoleAssistant, content)
}

// NewSystemMessage creates a system message. System messages only ever live
// inside prompt payloads; they are not appended to conversation history.
func NewSystemMessage(content string) Message {
	return newMessage(RoleSystem, content)
}

func newMessage(role MessageRole, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}
