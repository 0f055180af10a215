package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConversation() *Conversation {
	u1 := NewUserMessage("first question")
	a1 := NewAssistantMessage("first answer")
	u2 := NewUserMessage("second question")
	a2 := NewAssistantMessage("second answer")
	return &Conversation{
		ID:       "conv-1",
		Title:    "Test",
		Messages: []Message{u1, a1, u2, a2},
		MemorySnapshots: []MemorySnapshot{
			{
				Memory:             Memory{Summary: "after turn one"},
				AssistantMessageID: a1.ID,
				Timestamp:          time.Now().UTC(),
				Sequence:           1,
			},
		},
	}
}

func TestCurrentMemory(t *testing.T) {
	c := &Conversation{}
	assert.True(t, c.CurrentMemory().IsEmpty())

	c = testConversation()
	assert.Equal(t, "after turn one", c.CurrentMemory().Summary)
}

func TestAssistantCountThrough(t *testing.T) {
	c := testConversation()

	count, idx, ok := c.AssistantCountThrough(c.Messages[1].ID)
	require.True(t, ok)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, idx)

	count, idx, ok = c.AssistantCountThrough(c.Messages[3].ID)
	require.True(t, ok)
	assert.Equal(t, 2, count)
	assert.Equal(t, 3, idx)

	// Prefix ending at a user message counts only preceding assistants.
	count, _, ok = c.AssistantCountThrough(c.Messages[2].ID)
	require.True(t, ok)
	assert.Equal(t, 1, count)

	_, _, ok = c.AssistantCountThrough("missing")
	assert.False(t, ok)
}

func TestConversationCloneIsDeep(t *testing.T) {
	src := testConversation()
	cp := src.Clone()

	require.Equal(t, src.Messages, cp.Messages)
	require.Equal(t, src.MemorySnapshots, cp.MemorySnapshots)

	cp.Messages = append(cp.Messages, NewUserMessage("only in copy"))
	cp.MemorySnapshots[0].Memory.Summary = "mutated"
	cp.Title = "renamed"

	assert.Len(t, src.Messages, 4)
	assert.Equal(t, "after turn one", src.MemorySnapshots[0].Memory.Summary)
	assert.Equal(t, "Test", src.Title)
}

func TestRecentMessages(t *testing.T) {
	c := testConversation()

	recent := c.RecentMessages(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "second question", recent[0].Content)
	assert.Equal(t, "second answer", recent[1].Content)

	assert.Len(t, c.RecentMessages(10), 4)
	assert.Nil(t, c.RecentMessages(0))

	// Returned slice is a copy.
	recent[0].Content = "mutated"
	assert.Equal(t, "second question", c.Messages[2].Content)
}

func TestLastSequence(t *testing.T) {
	c := &Conversation{}
	assert.Equal(t, 0, c.LastSequence())
	assert.Equal(t, 1, testConversation().LastSequence())
}
