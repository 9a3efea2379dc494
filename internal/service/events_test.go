package service

import (
	"testing"

	"inkwell-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeEvent(t *testing.T) {
	b, err := EncodeEvent(ChunkEvent{Content: "Hel"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ai_chunk","data":"Hel"}`, string(b))

	b, err = EncodeEvent(ErrorEvent{Message: GenericUpstreamMessage})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","data":"AI service is temporarily unavailable, please retry later"}`, string(b))

	msg := model.Message{ID: "m1", ConversationID: "c1", UserID: 1, Role: "assistant", Content: "Hello world"}
	msg.SetUsage(5, 3)
	b, err = EncodeEvent(CompleteEvent{Message: msg})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"type":"ai_complete"`)
	assert.Contains(t, string(b), `"content":"Hello world"`)
	assert.Contains(t, string(b), `"prompt_tokens":5`)
	assert.Contains(t, string(b), `"completion_tokens":3`)
	assert.Contains(t, string(b), `"total_tokens":8`)
}
