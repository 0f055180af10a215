package types

import (
	"fmt"
	"strings"
	"time"
)

// MaxMemoryBlocks is the advisory upper bound on blocks a memory carries.
// Collaborator output is truncated to this bound after parsing rather than
// encoded into a per-call schema.
const MaxMemoryBlocks = 6

// Block is one distilled topic of a memory.
type Block struct {
	Topic       string `json:"topic"`
	Description string `json:"description"`
}

// Memory is the distilled state of a conversation: a short overall summary
// plus an ordered set of topic blocks. Memories are immutable; a new one is
// produced by each recomputation.
type Memory struct {
	Summary string  `json:"summary"`
	Blocks  []Block `json:"blocks"`
}

// IsEmpty reports whether the memory carries no information.
func (m Memory) IsEmpty() bool {
	return m.Summary == "" && len(m.Blocks) == 0
}

// Clone returns a memory sharing no storage with the receiver.
func (m Memory) Clone() Memory {
	out := Memory{Summary: m.Summary}
	if len(m.Blocks) > 0 {
		out.Blocks = make([]Block, len(m.Blocks))
		copy(out.Blocks, m.Blocks)
	}
	return out
}

// Bounded returns the memory truncated to MaxMemoryBlocks blocks. The
// returned value never aliases the receiver's block slice.
func (m Memory) Bounded() Memory {
	out := m.Clone()
	if len(out.Blocks) > MaxMemoryBlocks {
		out.Blocks = out.Blocks[:MaxMemoryBlocks]
	}
	return out
}

// PromptString renders the memory as flat text for consumption by a
// language-model collaborator.
func (m Memory) PromptString() string {
	var b strings.Builder
	b.WriteString("Memory Summary: ")
	b.WriteString(m.Summary)
	b.WriteString("\n\n")

	if len(m.Blocks) > 0 {
		b.WriteString("Memory Blocks:\n")
		for i, block := range m.Blocks {
			b.WriteString(fmt.Sprintf("%d. Topic: %s\n", i+1, block.Topic))
			b.WriteString(fmt.Sprintf("   Description: %s\n\n", block.Description))
		}
	}

	return strings.TrimSpace(b.String())
}

// MemorySnapshot records the memory derived after one completed turn.
// Snapshots are append-only: created exactly once per successful
// recomputation, never mutated or removed.
type MemorySnapshot struct {
	Memory Memory `json:"memory"`

	// AssistantMessageID is the id of the assistant message whose turn
	// triggered this recomputation. Empty when the submission carried no
	// assistant message.
	AssistantMessageID string `json:"assistant_message_id,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// Sequence is strictly increasing per conversation, starting at 1.
	Sequence int `json:"sequence"`
}

// Clone returns a snapshot sharing no storage with the receiver.
func (s MemorySnapshot) Clone() MemorySnapshot {
	out := s
	out.Memory = s.Memory.Clone()
	return out
}
