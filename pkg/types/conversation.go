package types

import "time"

// Conversation owns its messages and memory snapshots exclusively. It is
// mutated only by appending messages (on turn completion), appending
// snapshots (on successful recomputation), and title assignment.
type Conversation struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Messages        []Message        `json:"messages"`
	MemorySnapshots []MemorySnapshot `json:"memory_snapshots"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// CurrentMemory returns the last snapshot's memory, or an empty Memory when
// no recomputation has completed yet.
func (c *Conversation) CurrentMemory() Memory {
	if len(c.MemorySnapshots) == 0 {
		return Memory{}
	}
	return c.MemorySnapshots[len(c.MemorySnapshots)-1].Memory.Clone()
}

// AssistantCount returns the number of assistant-role messages in the
// conversation.
func (c *Conversation) AssistantCount() int {
	n := 0
	for _, msg := range c.Messages {
		if msg.Role == RoleAssistant {
			n++
		}
	}
	return n
}

// AssistantCountThrough returns the number of assistant-role messages in the
// prefix ending at (and including) the message with the given id, and the
// index of that message. ok is false when the id is not present.
func (c *Conversation) AssistantCountThrough(messageID string) (count, index int, ok bool) {
	for i, msg := range c.Messages {
		if msg.Role == RoleAssistant {
			count++
		}
		if msg.ID == messageID {
			return count, i, true
		}
	}
	return 0, 0, false
}

// LastSequence returns the sequence number of the most recent snapshot, or 0
// when none exist.
func (c *Conversation) LastSequence() int {
	if len(c.MemorySnapshots) == 0 {
		return 0
	}
	return c.MemorySnapshots[len(c.MemorySnapshots)-1].Sequence
}

// Clone returns a deep copy of the conversation. The copy shares no mutable
// storage with the receiver; appending to either afterwards leaves the other
// untouched.
func (c *Conversation) Clone() *Conversation {
	out := &Conversation{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if len(c.Messages) > 0 {
		out.Messages = make([]Message, len(c.Messages))
		copy(out.Messages, c.Messages)
	}
	if len(c.MemorySnapshots) > 0 {
		out.MemorySnapshots = make([]MemorySnapshot, 0, len(c.MemorySnapshots))
		for _, snap := range c.MemorySnapshots {
			out.MemorySnapshots = append(out.MemorySnapshots, snap.Clone())
		}
	}
	return out
}

// RecentMessages returns up to n trailing messages from the conversation.
// The returned slice is a copy.
func (c *Conversation) RecentMessages(n int) []Message {
	if n <= 0 || len(c.Messages) == 0 {
		return nil
	}
	start := len(c.Messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]Message, len(c.Messages)-start)
	copy(out, c.Messages[start:])
	return out
}
