package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchmentlabs/recall/pkg/types"
)

func TestDecodeMemory(t *testing.T) {
	raw := []byte(`{"summary":"planning a move","blocks":[{"topic":"housing","description":"looking in Oakland"}]}`)
	mem, err := DecodeMemory(raw)
	require.NoError(t, err)
	assert.Equal(t, "planning a move", mem.Summary)
	require.Len(t, mem.Blocks, 1)
	assert.Equal(t, "housing", mem.Blocks[0].Topic)
}

func TestDecodeMemoryMalformed(t *testing.T) {
	cases := []string{
		`not json at all`,
		`{"summary": 12}`,
		`{"blocks": "nope"}`,
	}
	for _, raw := range cases {
		mem, err := DecodeMemory([]byte(raw))
		require.Error(t, err, raw)

		var parseErr *ParseError
		require.True(t, errors.As(err, &parseErr), raw)
		assert.Equal(t, "memory", parseErr.Target)
		assert.Equal(t, raw, parseErr.Raw)
		assert.True(t, mem.IsEmpty(), "no partial memory on parse failure")
	}
}

func TestDecodeMemoryTruncatesBlocks(t *testing.T) {
	raw := []byte(`{"summary":"s","blocks":[
		{"topic":"1","description":""},{"topic":"2","description":""},
		{"topic":"3","description":""},{"topic":"4","description":""},
		{"topic":"5","description":""},{"topic":"6","description":""},
		{"topic":"7","description":""},{"topic":"8","description":""}]}`)
	mem, err := DecodeMemory(raw)
	require.NoError(t, err)
	assert.Len(t, mem.Blocks, types.MaxMemoryBlocks)
}

func TestDecodeSelection(t *testing.T) {
	got, err := DecodeSelection([]byte(`{"selections":[2,5,1]}`), 5)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5, 1}, got)
}

func TestDecodeSelectionTruncates(t *testing.T) {
	got, err := DecodeSelection([]byte(`{"selections":[1,2,3,4,5]}`), 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestDecodeSelectionMalformed(t *testing.T) {
	for _, raw := range []string{`garbage`, `{"selections":"1,2,3"}`, `{}`} {
		_, err := DecodeSelection([]byte(raw), 3)
		var parseErr *ParseError
		require.True(t, errors.As(err, &parseErr), raw)
		assert.Equal(t, "selection", parseErr.Target)
	}
}

func TestSelectionFormatShape(t *testing.T) {
	f := SelectionFormat(4)
	assert.Equal(t, "selection", f.Name)
	props := f.Schema["properties"].(map[string]interface{})
	sel := props["selections"].(map[string]interface{})
	assert.Equal(t, 4, sel["maxItems"])
}
