// Package store provides the in-memory conversation table.
//
// The store is a process-wide id → conversation map created at startup and
// injected into every component; nothing reaches it as ambient state. It
// performs no per-conversation coordination of its own — ordering of memory
// recomputations is owned entirely by the update scheduler. The internal
// RWMutex exists only so overlapping readers and appenders are memory-safe,
// and it is never held across network-bound work.
//
// Reads hand out deep clones: callers can serialize, inspect, or fork the
// returned conversation without ever aliasing state the scheduler may be
// appending to.
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/parchmentlabs/recall/pkg/types"
)

// ErrNotFound is returned when a conversation id is unknown.
var ErrNotFound = errors.New("store: conversation not found")

// Store is the conversation table.
type Store struct {
	mu    sync.RWMutex
	convs map[string]*types.Conversation
}

// New creates an empty store.
func New() *Store {
	return &Store{convs: make(map[string]*types.Conversation)}
}

// Get returns a deep clone of the conversation with the given id.
func (s *Store) Get(id string) (*types.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.convs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return conv.Clone(), nil
}

// Put inserts or overwrites the conversation under its id. The store keeps
// its own clone so later mutation of the argument cannot leak in.
func (s *Store) Put(conv *types.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[conv.ID] = conv.Clone()
}

// Delete removes the conversation with the given id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.convs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.convs, id)
	return nil
}

// List returns deep clones of all conversations, most recently updated first.
func (s *Store) List() []*types.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Conversation, 0, len(s.convs))
	for _, conv := range s.convs {
		out = append(out, conv.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Len returns the number of stored conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs)
}

// AppendMessages appends messages to the conversation's history.
func (s *Store) AppendMessages(id string, msgs ...types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	conv.Messages = append(conv.Messages, msgs...)
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

// AppendSnapshot appends a memory snapshot. The snapshot's sequence number
// must continue the conversation's strictly increasing sequence; a stale or
// duplicate sequence is rejected so a misbehaving caller can never corrupt
// the append-only history.
func (s *Store) AppendSnapshot(id string, snap types.MemorySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if last := conv.LastSequence(); snap.Sequence != last+1 {
		return fmt.Errorf("store: snapshot sequence %d does not follow %d for %s", snap.Sequence, last, id)
	}
	conv.MemorySnapshots = append(conv.MemorySnapshots, snap.Clone())
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

// SetTitle assigns the conversation title.
func (s *Store) SetTitle(id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	conv.Title = title
	conv.UpdatedAt = time.Now().UTC()
	return nil
}
