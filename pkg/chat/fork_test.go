package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchmentlabs/recall/pkg/store"
	"github.com/parchmentlabs/recall/pkg/types"
)

// forkableConversation holds two completed turns with a snapshot per
// assistant message, so history and memory are fully in step.
func forkableConversation() *types.Conversation {
	now := time.Now().UTC()
	return &types.Conversation{
		ID:    "source",
		Title: "Trip planning",
		Messages: []types.Message{
			types.NewUserMessage("book a hotel"),
			types.NewAssistantMessage("booked for the 12th"),
			types.NewUserMessage("and a flight"),
			types.NewAssistantMessage("flight booked too"),
		},
		MemorySnapshots: []types.MemorySnapshot{
			{Memory: types.Memory{Summary: "hotel booked"}, Sequence: 1, Timestamp: now},
			{Memory: types.Memory{Summary: "hotel and flight booked"}, Sequence: 2, Timestamp: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func forkFixture(t *testing.T, conv *types.Conversation) *serviceFixture {
	t.Helper()
	f := newFixture(t, &stubReplier{}, &stubJudge{}, types.Memory{})
	f.store.Put(conv)
	return f
}

func TestForkCopiesPrefix(t *testing.T) {
	source := forkableConversation()
	f := forkFixture(t, source)

	fork, err := f.service.Fork("source", source.Messages[3].ID)
	require.NoError(t, err)

	assert.NotEqual(t, source.ID, fork.ID)
	assert.Equal(t, "Trip planning (fork)", fork.Title)
	require.Len(t, fork.Messages, 4)
	assert.Equal(t, source.Messages, fork.Messages)
	require.Len(t, fork.MemorySnapshots, 2)
	assert.Equal(t, "hotel and flight booked", fork.MemorySnapshots[1].Memory.Summary)

	// Both live in the store independently.
	stored, err := f.service.Get(fork.ID)
	require.NoError(t, err)
	assert.Equal(t, fork.Messages, stored.Messages)

	original, err := f.service.Get("source")
	require.NoError(t, err)
	assert.Len(t, original.Messages, 4)
	assert.Len(t, original.MemorySnapshots, 2)
}

func TestForkAtCaughtUpTurnSucceeds(t *testing.T) {
	// Two assistant messages, one snapshot: the first assistant message is
	// the point where history and memory agree.
	source := forkableConversation()
	source.MemorySnapshots = source.MemorySnapshots[:1]
	f := forkFixture(t, source)

	fork, err := f.service.Fork("source", source.Messages[1].ID)
	require.NoError(t, err)
	assert.Len(t, fork.Messages, 2)
	require.Len(t, fork.MemorySnapshots, 1)
	assert.Equal(t, "hotel booked", fork.MemorySnapshots[0].Memory.Summary)
}

func TestForkDivergesFromSource(t *testing.T) {
	source := forkableConversation()
	f := forkFixture(t, source)

	fork, err := f.service.Fork("source", source.Messages[3].ID)
	require.NoError(t, err)

	require.NoError(t, f.store.AppendMessages(fork.ID, types.NewUserMessage("different direction")))

	original, err := f.service.Get("source")
	require.NoError(t, err)
	assert.Len(t, original.Messages, 4)

	forked, err := f.service.Get(fork.ID)
	require.NoError(t, err)
	assert.Len(t, forked.Messages, 5)
}

func TestForkAheadOfMemoryViolatesInvariant(t *testing.T) {
	source := forkableConversation()
	source.MemorySnapshots = source.MemorySnapshots[:1] // second update still in flight
	f := forkFixture(t, source)

	_, err := f.service.Fork("source", source.Messages[3].ID)
	var invErr *InvariantError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "source", invErr.ConversationID)
	assert.Contains(t, invErr.Reason, "in flight")
}

func TestForkBehindMemoryViolatesInvariant(t *testing.T) {
	source := forkableConversation()
	f := forkFixture(t, source)

	_, err := f.service.Fork("source", source.Messages[1].ID)
	var invErr *InvariantError
	require.ErrorAs(t, err, &invErr)
	assert.Contains(t, invErr.Reason, "advanced past")
}

func TestForkUnknownMessage(t *testing.T) {
	f := forkFixture(t, forkableConversation())

	_, err := f.service.Fork("source", "no-such-message")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestForkUnknownConversation(t *testing.T) {
	f := newFixture(t, &stubReplier{}, &stubJudge{}, types.Memory{})

	_, err := f.service.Fork("missing", "any")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
