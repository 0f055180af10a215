// Package importer seeds the conversation store from a ChatGPT data-export
// conversations.json file.
//
// The export is a list of conversations, each holding a mapping of message
// nodes. Only user and assistant messages survive the import; tool and
// system nodes, and nodes with empty text, are dropped. Content parts come
// in two shapes, plain strings and objects carrying a text or content key,
// and both are handled. Node order inside the mapping is not meaningful, so
// messages are ordered by their create_time.
package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parchmentlabs/recall/pkg/logging"
	"github.com/parchmentlabs/recall/pkg/memory"
	"github.com/parchmentlabs/recall/pkg/store"
	"github.com/parchmentlabs/recall/pkg/types"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("importer")
	if err != nil {
		debugLog.Warnf("file logging unavailable, using stderr: %v", err)
	}
}

type exportConversation struct {
	Title      string                `json:"title"`
	CreateTime float64               `json:"create_time"`
	UpdateTime float64               `json:"update_time"`
	Mapping    map[string]exportNode `json:"mapping"`
}

type exportNode struct {
	Message *exportMessage `json:"message"`
}

type exportMessage struct {
	Author struct {
		Role string `json:"role"`
	} `json:"author"`
	CreateTime float64 `json:"create_time"`
	Content    struct {
		Parts []json.RawMessage `json:"parts"`
	} `json:"content"`
}

// Parse reads a ChatGPT export and returns the conversations it contains.
// Conversations that end up with no usable messages are dropped.
func Parse(r io.Reader) ([]*types.Conversation, error) {
	var exported []exportConversation
	if err := json.NewDecoder(r).Decode(&exported); err != nil {
		return nil, fmt.Errorf("importer: decode export: %w", err)
	}

	var out []*types.Conversation
	for _, exp := range exported {
		conv := convert(exp)
		if len(conv.Messages) == 0 {
			continue
		}
		out = append(out, conv)
	}
	return out, nil
}

// ParseFile reads a ChatGPT export from disk.
func ParseFile(path string) ([]*types.Conversation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("importer: open export: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Seed loads the export at path into the store. When a scheduler is given,
// each imported turn is also submitted for memory recomputation so seeded
// conversations end up with a full snapshot trail; pass nil to import the
// raw history only. Returns the number of conversations imported.
func Seed(st *store.Store, sched *memory.Scheduler, path string) (int, error) {
	convs, err := ParseFile(path)
	if err != nil {
		return 0, err
	}

	for _, conv := range convs {
		st.Put(conv)
		if sched != nil {
			submitTurns(sched, conv)
		}
	}
	debugLog.Infof("seeded %d conversations from %s", len(convs), path)
	return len(convs), nil
}

// submitTurns replays the conversation's history through the scheduler,
// one batch per assistant message, rebuilding the snapshot trail turn by
// turn.
func submitTurns(sched *memory.Scheduler, conv *types.Conversation) {
	var batch []types.Message
	for _, msg := range conv.Messages {
		batch = append(batch, msg)
		if msg.Role == types.RoleAssistant {
			sched.Submit(conv.ID, batch)
			batch = nil
		}
	}
}

func convert(exp exportConversation) *types.Conversation {
	type timedMessage struct {
		msg     types.Message
		created float64
	}

	var collected []timedMessage
	for _, node := range exp.Mapping {
		if node.Message == nil {
			continue
		}
		role := node.Message.Author.Role
		if role != "user" && role != "assistant" {
			continue
		}

		text := joinParts(node.Message.Content.Parts)
		if text == "" {
			continue
		}

		msg := types.Message{
			ID:        uuid.New().String(),
			Role:      types.MessageRole(role),
			Content:   text,
			Timestamp: timeFromUnix(node.Message.CreateTime),
		}
		collected = append(collected, timedMessage{msg: msg, created: node.Message.CreateTime})
	}

	sort.SliceStable(collected, func(i, j int) bool {
		return collected[i].created < collected[j].created
	})

	title := strings.TrimSpace(exp.Title)
	if title == "" {
		title = "Imported conversation"
	}

	conv := &types.Conversation{
		ID:        uuid.New().String(),
		Title:     title,
		CreatedAt: timeFromUnix(exp.CreateTime),
		UpdatedAt: timeFromUnix(exp.UpdateTime),
	}
	for _, tm := range collected {
		conv.Messages = append(conv.Messages, tm.msg)
	}
	return conv
}

// joinParts flattens a message's content parts into one text block.
func joinParts(parts []json.RawMessage) string {
	var texts []string
	for _, raw := range parts {
		if text := partText(raw); text != "" {
			texts = append(texts, text)
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n"))
}

// partText extracts text from one content part. Parts are usually plain
// strings; multimodal exports wrap them in objects with a text or content
// key.
func partText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if v, ok := obj["text"]; ok {
			return fmt.Sprint(v)
		}
		if v, ok := obj["content"]; ok {
			return fmt.Sprint(v)
		}
		return string(raw)
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err == nil && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func timeFromUnix(seconds float64) time.Time {
	if seconds <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(int64(seconds), 0).UTC()
}
