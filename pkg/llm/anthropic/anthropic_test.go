package anthropic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parchmentlabs/recall/pkg/llm"
	"github.com/parchmentlabs/recall/pkg/types"
)

func TestBuildParams(t *testing.T) {
	p := NewProvider("test-key", WithModel("claude-test"), WithMaxTokens(512))

	params, err := p.buildParams([]types.Message{
		types.NewSystemMessage("You are helpful."),
		types.NewUserMessage("hello"),
		types.NewAssistantMessage("hi there"),
	})
	require.NoError(t, err)

	assert.Equal(t, "claude-test", string(params.Model))
	assert.Equal(t, int64(512), params.MaxTokens)
	require.Len(t, params.System, 1)
	assert.Equal(t, "You are helpful.", params.System[0].Text)
	assert.Len(t, params.Messages, 2)
}

func TestBuildParamsRejectsEmptyTurns(t *testing.T) {
	p := NewProvider("test-key")
	_, err := p.buildParams([]types.Message{types.NewSystemMessage("only system")})
	require.Error(t, err)
}

func TestEmitDropsChunkForCanceledConsumer(t *testing.T) {
	p := NewProvider("test-key")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Unbuffered channel with no reader: a blocking send here would hang
	// the test, a dropped send returns immediately.
	ch := make(chan *llm.StreamChunk)
	assert.False(t, p.emit(ctx, ch, &llm.StreamChunk{Finished: true}))
}
