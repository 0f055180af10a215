// Package chat is Recall's conversation service: it owns turn handling,
// context loading from related conversations, forking, and the plumbing
// that keeps the update scheduler fed as turns complete.
package chat

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/parchmentlabs/recall/pkg/llm"
	"github.com/parchmentlabs/recall/pkg/logging"
	"github.com/parchmentlabs/recall/pkg/memory"
	"github.com/parchmentlabs/recall/pkg/prompts"
	"github.com/parchmentlabs/recall/pkg/selection"
	"github.com/parchmentlabs/recall/pkg/store"
	"github.com/parchmentlabs/recall/pkg/types"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("chat")
	if err != nil {
		debugLog.Warnf("file logging unavailable, using stderr: %v", err)
	}
}

// defaultHistoryWindow is how many trailing messages the reply prompt sees.
const defaultHistoryWindow = 6

// Service coordinates conversations end to end. Turn handling appends the
// user message, streams the reply, and on completion appends the assistant
// message and submits the finished turn to the scheduler.
type Service struct {
	store         *store.Store
	scheduler     *memory.Scheduler
	selector      *selection.Selector
	consolidator  *memory.Consolidator
	titles        *TitleGenerator
	replier       llm.Provider
	historyWindow int
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithHistoryWindow sets how many trailing messages reply prompts include.
func WithHistoryWindow(n int) ServiceOption {
	return func(s *Service) {
		s.historyWindow = n
	}
}

// NewService wires the conversation service together.
func NewService(st *store.Store, sched *memory.Scheduler, sel *selection.Selector, cons *memory.Consolidator, titles *TitleGenerator, replier llm.Provider, opts ...ServiceOption) *Service {
	s := &Service{
		store:         st,
		scheduler:     sched,
		selector:      sel,
		consolidator:  cons,
		titles:        titles,
		replier:       replier,
		historyWindow: defaultHistoryWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a conversation, optionally seeded with a first user
// message. With a first message the title is derived from it; otherwise the
// placeholder title stands until the first message arrives. Creation never
// fails: a title-collaborator error just leaves the placeholder.
func (s *Service) Create(ctx context.Context, firstMessage string) *types.Conversation {
	conv := &types.Conversation{
		ID:    uuid.New().String(),
		Title: DefaultTitle,
	}
	if firstMessage != "" {
		conv.Messages = []types.Message{types.NewUserMessage(firstMessage)}
		conv.Title = s.titles.Generate(ctx, firstMessage)
	}
	s.store.Put(conv)
	return conv.Clone()
}

// Get returns the conversation with the given id.
func (s *Service) Get(id string) (*types.Conversation, error) {
	return s.store.Get(id)
}

// List returns all conversations, most recently updated first.
func (s *Service) List() []*types.Conversation {
	return s.store.List()
}

// Delete removes the conversation with the given id.
func (s *Service) Delete(id string) error {
	return s.store.Delete(id)
}

// SendMessage handles one turn: it appends the user message, assembles the
// reply prompt from current memory, related-conversation context, and recent
// history, and streams the assistant's reply. When the stream finishes the
// completed turn is appended and submitted for memory recomputation. A
// failed stream ends the turn without an assistant message; the user message
// stays and is folded in with the next successful turn.
func (s *Service) SendMessage(ctx context.Context, id, content string) (<-chan *llm.StreamChunk, error) {
	conv, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	userMsg := types.NewUserMessage(content)
	firstTurn := len(conv.Messages) == 0
	if err := s.store.AppendMessages(id, userMsg); err != nil {
		return nil, err
	}
	if firstTurn {
		if err := s.store.SetTitle(id, s.titles.Generate(ctx, content)); err != nil {
			debugLog.Warnf("title assignment for %s failed: %v", id, err)
		}
	}

	related := s.relatedContext(ctx, id, content)
	payload := prompts.Reply(
		replyMemory(conv.CurrentMemory(), related),
		prompts.RenderTranscript(conv.RecentMessages(s.historyWindow)),
		content,
	)

	upstream, err := s.replier.StreamCompletion(ctx, payload)
	if err != nil {
		return nil, err
	}

	out := make(chan *llm.StreamChunk)
	go s.relay(id, userMsg, upstream, out)
	return out, nil
}

// relay forwards reply chunks to the caller while accumulating the full
// text, then finishes the turn in the store before the final chunk is
// delivered.
func (s *Service) relay(id string, userMsg types.Message, upstream <-chan *llm.StreamChunk, out chan<- *llm.StreamChunk) {
	defer close(out)

	var reply strings.Builder
	for chunk := range upstream {
		if chunk.IsError() {
			debugLog.Errorf("reply stream for %s failed: %v", id, chunk.Error)
			out <- chunk
			return
		}
		reply.WriteString(chunk.Content)

		if chunk.Finished {
			assistantMsg := types.NewAssistantMessage(reply.String())
			if err := s.store.AppendMessages(id, assistantMsg); err != nil {
				debugLog.Errorf("appending reply to %s failed: %v", id, err)
				out <- &llm.StreamChunk{Error: err}
				return
			}
			s.scheduler.Submit(id, []types.Message{userMsg, assistantMsg})
			out <- chunk
			// The turn is finished. A provider that keeps sending after
			// its final chunk must not produce a second assistant message.
			return
		}
		out <- chunk
	}
}

// AppendTurn records a completed turn whose reply was generated elsewhere
// and submits it for memory recomputation. SendMessage takes the same path
// internally once its stream finishes.
func (s *Service) AppendTurn(id string, userMsg, assistantMsg types.Message) error {
	if err := s.store.AppendMessages(id, userMsg, assistantMsg); err != nil {
		return err
	}
	s.scheduler.Submit(id, []types.Message{userMsg, assistantMsg})
	return nil
}

// SetContext pulls context from other conversations into this one. With
// explicit source ids those conversations are consolidated directly; with
// none, the query drives selection first. The consolidated memory is
// recorded as an assistant-role context note so the next recomputation
// folds it in as a normal turn. When nothing relevant is found the
// conversation is left untouched.
func (s *Service) SetContext(ctx context.Context, id, query string, sourceIDs []string) (types.Memory, error) {
	if _, err := s.store.Get(id); err != nil {
		return types.Memory{}, err
	}

	var consolidated types.Memory
	if len(sourceIDs) > 0 {
		sources := make([]*types.Conversation, 0, len(sourceIDs))
		for _, sourceID := range sourceIDs {
			src, err := s.store.Get(sourceID)
			if err != nil {
				return types.Memory{}, err
			}
			sources = append(sources, src)
		}
		consolidated = s.consolidator.Consolidate(ctx, sources, query)
	} else {
		consolidated = s.relatedContext(ctx, id, query)
	}
	if consolidated.IsEmpty() {
		debugLog.Infof("no related context found for %s", id)
		return consolidated, nil
	}

	note := types.NewAssistantMessage("Context loaded from related conversations:\n\n" + consolidated.PromptString())
	if err := s.store.AppendMessages(id, note); err != nil {
		return types.Memory{}, err
	}
	s.scheduler.Submit(id, []types.Message{note})
	return consolidated, nil
}

// AwaitUpdates blocks until all in-flight memory updates have finished.
func (s *Service) AwaitUpdates() {
	s.scheduler.AwaitAll()
}

// relatedContext selects the other conversations relevant to the query and
// consolidates their memories. Selection and consolidation both degrade to
// an empty memory, so turn handling never stalls on them.
func (s *Service) relatedContext(ctx context.Context, id, query string) types.Memory {
	var candidates []*types.Conversation
	for _, conv := range s.store.List() {
		if conv.ID != id {
			candidates = append(candidates, conv)
		}
	}

	selected := s.selector.Select(ctx, candidates, query)
	if len(selected) == 0 {
		return types.Memory{}
	}
	return s.consolidator.Consolidate(ctx, selected, query)
}

// replyMemory renders the memory section of the reply prompt.
func replyMemory(current, related types.Memory) string {
	if related.IsEmpty() {
		return current.PromptString()
	}
	return current.PromptString() + "\n\nRELATED CONTEXT FROM OTHER CONVERSATIONS:\n" + related.PromptString()
}
