package llm

import (
	"encoding/json"
	"fmt"

	"github.com/parchmentlabs/recall/pkg/types"
)

// ResponseFormat names a JSON schema a structured completion must satisfy.
type ResponseFormat struct {
	Name   string
	Schema map[string]interface{}
}

// MemoryFormat is the schema for memory summarization and consolidation
// responses: a short summary plus topic blocks.
func MemoryFormat() ResponseFormat {
	return ResponseFormat{
		Name: "memory",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"summary": map[string]interface{}{
					"type":        "string",
					"description": "Overall summary of the conversation, at most 20 words",
				},
				"blocks": map[string]interface{}{
					"type":     "array",
					"maxItems": types.MaxMemoryBlocks,
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"topic":       map[string]interface{}{"type": "string"},
							"description": map[string]interface{}{"type": "string"},
						},
						"required": []string{"topic", "description"},
					},
				},
			},
			"required": []string{"summary", "blocks"},
		},
	}
}

// SelectionFormat is the schema for relevance-judge responses: a bounded
// list of 1-indexed candidate positions. The shape is fixed; only the bound
// varies. Out-of-range and duplicate entries are filtered by the core, not
// the schema.
func SelectionFormat(maxSelections int) ResponseFormat {
	return ResponseFormat{
		Name: "selection",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"selections": map[string]interface{}{
					"type":        "array",
					"maxItems":    maxSelections,
					"items":       map[string]interface{}{"type": "integer"},
					"description": "1-indexed positions of the relevant conversations, most relevant first",
				},
			},
			"required": []string{"selections"},
		},
	}
}

// DecodeMemory decodes a memory-schema response. On malformed input it
// returns a *ParseError carrying the raw text; it never returns a partial
// memory alongside an error.
func DecodeMemory(raw []byte) (types.Memory, error) {
	var wire struct {
		Summary string `json:"summary"`
		Blocks  []struct {
			Topic       string `json:"topic"`
			Description string `json:"description"`
		} `json:"blocks"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return types.Memory{}, &ParseError{Target: "memory", Raw: string(raw), Err: err}
	}

	mem := types.Memory{Summary: wire.Summary}
	for _, b := range wire.Blocks {
		mem.Blocks = append(mem.Blocks, types.Block{Topic: b.Topic, Description: b.Description})
	}
	return mem.Bounded(), nil
}

// DecodeSelection decodes a selection-schema response into the judge's raw
// index list, truncated to maxSelections. Validation against the candidate
// set is the caller's concern.
func DecodeSelection(raw []byte, maxSelections int) ([]int, error) {
	var wire struct {
		Selections []int `json:"selections"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &ParseError{Target: "selection", Raw: string(raw), Err: err}
	}
	if wire.Selections == nil {
		return nil, &ParseError{Target: "selection", Raw: string(raw), Err: fmt.Errorf("missing selections field")}
	}
	if maxSelections >= 0 && len(wire.Selections) > maxSelections {
		wire.Selections = wire.Selections[:maxSelections]
	}
	return wire.Selections, nil
}
