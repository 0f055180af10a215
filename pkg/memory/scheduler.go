package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/parchmentlabs/recall/pkg/store"
	"github.com/parchmentlabs/recall/pkg/types"
)

// defaultUpdateTimeout bounds a single memory recomputation, summarizer call
// included.
const defaultUpdateTimeout = 2 * time.Minute

// Scheduler serializes memory recomputations per conversation. Each Submit
// becomes a work unit chained behind the conversation's previous one, so
// updates for a single conversation always run and land in submission order
// while different conversations proceed concurrently. A failed unit is
// logged and the chain continues; one bad recomputation never wedges a
// conversation.
type Scheduler struct {
	store      *store.Store
	summarizer Summarizer
	timeout    time.Duration

	mu   sync.Mutex
	tail map[string]*task // latest work unit per conversation
}

type task struct {
	done chan struct{}
	err  error // valid once done is closed
}

func (t *task) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// SchedulerOption customizes a Scheduler.
type SchedulerOption func(*Scheduler)

// WithUpdateTimeout bounds each recomputation. Zero disables the bound.
func WithUpdateTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.timeout = d
	}
}

// NewScheduler creates a scheduler writing snapshots into st.
func NewScheduler(st *store.Store, summarizer Summarizer, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		store:      st,
		summarizer: summarizer,
		timeout:    defaultUpdateTimeout,
		tail:       make(map[string]*task),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit enqueues a memory recomputation for the conversation covering the
// given newly appended messages. It returns immediately; the recomputation
// runs in the background after every previously submitted unit for the same
// conversation has finished.
func (s *Scheduler) Submit(conversationID string, newMessages []types.Message) {
	msgs := make([]types.Message, len(newMessages))
	copy(msgs, newMessages)

	t := &task{done: make(chan struct{})}

	s.mu.Lock()
	prev := s.tail[conversationID]
	s.tail[conversationID] = t
	s.mu.Unlock()

	go s.run(conversationID, msgs, prev, t)
}

func (s *Scheduler) run(conversationID string, msgs []types.Message, prev, t *task) {
	defer close(t.done)

	if prev != nil {
		<-prev.done
		if prev.err != nil {
			debugLog.Warnf("prior memory update for %s failed, continuing chain: %v", conversationID, prev.err)
		}
	}

	t.err = s.recompute(conversationID, msgs)
	if t.err != nil {
		debugLog.Errorf("memory update for %s failed: %v", conversationID, t.err)
	}
}

// recompute reads the conversation's current memory, folds the new messages
// in via the summarizer, and appends the result as the next snapshot. The
// chain guarantees no other unit appends to this conversation concurrently,
// so the sequence read here is still current at append time.
func (s *Scheduler) recompute(conversationID string, msgs []types.Message) error {
	conv, err := s.store.Get(conversationID)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	updated, err := s.summarizer.Summarize(ctx, conv.CurrentMemory(), msgs)
	if err != nil {
		return fmt.Errorf("memory: summarize %s: %w", conversationID, err)
	}

	snap := types.MemorySnapshot{
		Memory:             updated.Bounded(),
		AssistantMessageID: lastAssistantID(msgs),
		Timestamp:          time.Now().UTC(),
		Sequence:           conv.LastSequence() + 1,
	}
	return s.store.AppendSnapshot(conversationID, snap)
}

// Pending returns the number of conversations with an unfinished update.
func (s *Scheduler) Pending() int {
	return len(s.PendingIDs())
}

// PendingIDs returns the ids of conversations with an unfinished update.
func (s *Scheduler) PendingIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, t := range s.tail {
		if !t.finished() {
			ids = append(ids, id)
		}
	}
	return ids
}

// AwaitAll blocks until every update submitted so far has finished, then
// forgets the completed chains. Updates submitted while AwaitAll runs are
// not waited for.
func (s *Scheduler) AwaitAll() {
	s.mu.Lock()
	waiting := make(map[string]*task, len(s.tail))
	for id, t := range s.tail {
		waiting[id] = t
	}
	s.mu.Unlock()

	for id, t := range waiting {
		<-t.done
		if t.err != nil {
			debugLog.Warnf("update for %s finished with error: %v", id, t.err)
		}
	}

	s.mu.Lock()
	for id, t := range waiting {
		if s.tail[id] == t {
			delete(s.tail, id)
		}
	}
	s.mu.Unlock()
}

// lastAssistantID returns the id of the last assistant message in msgs, or
// "" when the batch carries none.
func lastAssistantID(msgs []types.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == types.RoleAssistant {
			return msgs[i].ID
		}
	}
	return ""
}
