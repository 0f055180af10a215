package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/parchmentlabs/recall/pkg/types"
)

// ErrMessageNotFound is returned when a fork point names a message the
// conversation does not contain.
var ErrMessageNotFound = errors.New("chat: message not found in conversation")

// InvariantError reports a conversation whose history and snapshot trail
// disagree. Forking refuses to proceed on such a conversation rather than
// producing a fork with a misaligned memory.
type InvariantError struct {
	ConversationID string
	MessageID      string
	Reason         string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("chat: invariant violation in %s at %s: %s", e.ConversationID, e.MessageID, e.Reason)
}

// Fork creates a new conversation from the prefix of an existing one ending
// at the given message. Forking is permitted only where history and memory
// are provably in step: the number of assistant messages in the prefix must
// equal the conversation's snapshot count. The fork carries deep copies of
// the prefix messages and of one snapshot per assistant message in it, so
// it resumes with exactly the memory the source had at that point. The fork
// and its source share no storage; they diverge freely afterwards.
func (s *Service) Fork(id, messageID string) (*types.Conversation, error) {
	conv, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	count, index, ok := conv.AssistantCountThrough(messageID)
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrMessageNotFound, messageID, id)
	}
	if count != len(conv.MemorySnapshots) {
		reason := fmt.Sprintf("memory has advanced past this point (%d snapshots, prefix holds %d assistant messages)",
			len(conv.MemorySnapshots), count)
		if count > len(conv.MemorySnapshots) {
			reason = fmt.Sprintf("prefix holds %d assistant messages but only %d memory snapshots exist; a memory update may still be in flight",
				count, len(conv.MemorySnapshots))
		}
		return nil, &InvariantError{
			ConversationID: id,
			MessageID:      messageID,
			Reason:         reason,
		}
	}

	now := time.Now().UTC()
	fork := &types.Conversation{
		ID:        uuid.New().String(),
		Title:     forkTitle(conv.Title),
		CreatedAt: now,
		UpdatedAt: now,
	}
	fork.Messages = make([]types.Message, index+1)
	copy(fork.Messages, conv.Messages[:index+1])
	for _, snap := range conv.MemorySnapshots[:count] {
		fork.MemorySnapshots = append(fork.MemorySnapshots, snap.Clone())
	}

	s.store.Put(fork)
	debugLog.Infof("forked %s at %s into %s (%d messages, %d snapshots)", id, messageID, fork.ID, len(fork.Messages), count)
	return fork, nil
}

func forkTitle(title string) string {
	if title == "" {
		return "Forked conversation"
	}
	return title + " (fork)"
}
