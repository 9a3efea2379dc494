package service

import (
	"context"
	"testing"

	"inkwell-go/internal/model"
	"inkwell-go/internal/repository"
	"inkwell-go/internal/testutil"
	"inkwell-go/pkg/llm"
	"inkwell-go/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelay_CompletedTurn(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, 7)
	client := &fakeLLM{fragments: []string{"Hel", "lo"}, usage: &llm.Usage{PromptTokens: 5, CompletionTokens: 3, TotalTokens: 8}, model: "default-model"}
	svc := NewChatService(client, f.convRepo, nil, "")
	sink := &recordingSink{}

	err := svc.Relay(context.Background(), RelayRequest{UserID: 7, ConversationID: conv.ID, Content: "Hi"}, sink)
	require.NoError(t, err)

	assert.Equal(t, []string{EventUserMessage, EventChunk, EventChunk, EventComplete}, sink.types())
	assert.Equal(t, 1, sink.closed)
	assert.Equal(t, "Hi", sink.events[0].(UserMessageEvent).Message.Content)
	assert.Equal(t, "Hel", sink.events[1].(ChunkEvent).Content)
	assert.Equal(t, "lo", sink.events[2].(ChunkEvent).Content)

	final := sink.events[3].(CompleteEvent).Message
	assert.Equal(t, "Hello", final.Content)
	assert.Equal(t, model.MessageRoleAssistant, final.Role)
	require.NotNil(t, final.Model)
	assert.Equal(t, "default-model", *final.Model)
	require.NotNil(t, final.TotalTokens)
	assert.Equal(t, 8, *final.TotalTokens)

	msgs, err := f.convRepo.ListMessages(context.Background(), conv.ID, 7, repository.OrderAsc)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.MessageRoleUser, msgs[0].Role)
	assert.Equal(t, "Hi", msgs[0].Content)
	assert.Equal(t, final.ID, msgs[1].ID)
	assert.Equal(t, "Hello", msgs[1].Content)
	assert.Equal(t, 5, *msgs[1].PromptTokens)
	assert.Equal(t, 3, *msgs[1].CompletionTokens)

	require.Len(t, client.streams, 1)
	assert.True(t, client.streams[0].closed)
}

func TestRelay_HistoryIncludesSystemPromptAndNewMessage(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, 1)
	require.NoError(t, f.convRepo.CreateMessage(context.Background(), &model.Message{
		ConversationID: conv.ID, UserID: 1, Role: model.MessageRoleUser, Content: "earlier",
	}))
	client := &fakeLLM{fragments: []string{"ok"}}
	svc := NewChatService(client, f.convRepo, nil, "  be brief  ")

	require.NoError(t, svc.Relay(context.Background(), RelayRequest{UserID: 1, ConversationID: conv.ID, Content: "now"}, &recordingSink{}))

	require.Len(t, client.requests, 1)
	assert.Equal(t, []llm.Message{
		{Role: model.MessageRoleSystem, Content: "be brief"},
		{Role: model.MessageRoleUser, Content: "earlier"},
		{Role: model.MessageRoleUser, Content: "now"},
	}, client.requests[0])
}

func TestRelay_NonOwnerIsNotFoundAndWritesNothing(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, 1)
	client := &fakeLLM{fragments: []string{"x"}}
	svc := NewChatService(client, f.convRepo, nil, "")
	sink := &recordingSink{}

	err := svc.Relay(context.Background(), RelayRequest{UserID: 2, ConversationID: conv.ID, Content: "Hi"}, sink)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, sink.events)
	assert.Zero(t, sink.closed)
	assert.Empty(t, client.requests)

	n, err := f.convRepo.CountMessages(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRelay_UnknownConversationIsNotFound(t *testing.T) {
	f := newFixture(t)
	svc := NewChatService(&fakeLLM{}, f.convRepo, nil, "")

	err := svc.Relay(context.Background(), RelayRequest{UserID: 1, ConversationID: repository.NewID(), Content: "Hi"}, &recordingSink{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRelay_BlankContentRejected(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, 1)
	svc := NewChatService(&fakeLLM{}, f.convRepo, nil, "")
	sink := &recordingSink{}

	err := svc.Relay(context.Background(), RelayRequest{UserID: 1, ConversationID: conv.ID, Content: "  \n"}, sink)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.False(t, sink.Started())
}

func TestRelay_UpstreamFailureMidStream(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, 3)
	client := &fakeLLM{fragments: []string{"Hel"}, midErr: &llm.UpstreamError{Body: "provider exploded"}}
	svc := NewChatService(client, f.convRepo, nil, "")
	sink := &recordingSink{}

	err := svc.Relay(context.Background(), RelayRequest{UserID: 3, ConversationID: conv.ID, Content: "Hi"}, sink)
	require.NoError(t, err)

	assert.Equal(t, []string{EventUserMessage, EventChunk, EventError}, sink.types())
	assert.Equal(t, GenericUpstreamMessage, sink.events[2].(ErrorEvent).Message)
	assert.Equal(t, 1, sink.closed)

	msgs, err := f.convRepo.ListMessages(context.Background(), conv.ID, 3, repository.OrderAsc)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.MessageRoleUser, msgs[0].Role)
}

func TestRelay_UpstreamRefusesToOpen(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, 3)
	client := &fakeLLM{openErr: &llm.UpstreamError{StatusCode: 429, Status: "429 Too Many Requests", Body: "slow down"}}
	svc := NewChatService(client, f.convRepo, nil, "")
	sink := &recordingSink{}

	require.NoError(t, svc.Relay(context.Background(), RelayRequest{UserID: 3, ConversationID: conv.ID, Content: "Hi"}, sink))
	assert.Equal(t, []string{EventUserMessage, EventError}, sink.types())
	for _, ev := range sink.events {
		if e, ok := ev.(ErrorEvent); ok {
			assert.NotContains(t, e.Message, "slow down")
		}
	}
}

func TestRelay_ClientCancelStopsWithoutPersisting(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, 4)
	client := &fakeLLM{fragments: []string{"a", "b", "c"}}
	svc := NewChatService(client, f.convRepo, nil, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &recordingSink{}
	sink.onSend = func(ev StreamEvent) {
		if ev.Type() == EventChunk {
			cancel()
		}
	}

	require.NoError(t, svc.Relay(ctx, RelayRequest{UserID: 4, ConversationID: conv.ID, Content: "Hi"}, sink))
	assert.Equal(t, []string{EventUserMessage, EventChunk}, sink.types())
	assert.Zero(t, sink.closed)

	msgs, err := f.convRepo.ListMessages(context.Background(), conv.ID, 4, repository.OrderAsc)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestRelay_BrokenSinkStopsRelay(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, 4)
	client := &fakeLLM{fragments: []string{"a", "b"}}
	svc := NewChatService(client, f.convRepo, nil, "")
	sink := &recordingSink{failOn: EventChunk}

	require.NoError(t, svc.Relay(context.Background(), RelayRequest{UserID: 4, ConversationID: conv.ID, Content: "Hi"}, sink))
	assert.Equal(t, []string{EventUserMessage}, sink.types())
	assert.Zero(t, sink.closed)
	assert.True(t, client.streams[0].closed)
}

func TestRelay_AssistantSaveFailureIsDeferred(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, 5)
	client := &fakeLLM{fragments: []string{"Hello"}, model: "m", usage: &llm.Usage{PromptTokens: 2, CompletionTokens: 1, TotalTokens: 3}}
	pub := &testutil.RecordingPublisher{}
	svc := NewChatService(client, failingAssistantRepo{f.convRepo}, pub, "")
	sink := &recordingSink{}

	require.NoError(t, svc.Relay(context.Background(), RelayRequest{UserID: 5, ConversationID: conv.ID, Content: "Hi"}, sink))
	assert.Equal(t, []string{EventUserMessage, EventChunk, EventComplete}, sink.types())
	assert.Equal(t, 1, sink.closed)
	final := sink.events[2].(CompleteEvent).Message

	published := pub.Published()
	require.Len(t, published, 1)
	assert.Equal(t, tasks.TypePersistAssistantMessage, published[0].Type)

	var payload tasks.AssistantMessagePayload
	require.NoError(t, published[0].Decode(&payload))
	assert.Equal(t, final.ID, payload.MessageID)
	assert.Equal(t, conv.ID, payload.ConversationID)
	assert.Equal(t, uint(5), payload.UserID)
	assert.Equal(t, "Hello", payload.Content)
	assert.Equal(t, "m", payload.Model)
	require.NotNil(t, payload.TotalTokens)
	assert.Equal(t, 3, *payload.TotalTokens)
}

func TestComplete_MatchesStreamedContent(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, 6)
	client := &fakeLLM{fragments: []string{"Hel", "lo ", "world"}, model: "m"}
	svc := NewChatService(client, f.convRepo, nil, "")

	turn, err := svc.Complete(context.Background(), RelayRequest{UserID: 6, ConversationID: conv.ID, Content: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "Hi", turn.UserMessage.Content)
	assert.Equal(t, "Hello world", turn.AssistantMessage.Content)

	sink := &recordingSink{}
	require.NoError(t, svc.Relay(context.Background(), RelayRequest{UserID: 6, ConversationID: conv.ID, Content: "Again"}, sink))
	assert.Equal(t, turn.AssistantMessage.Content, sink.events[len(sink.events)-1].(CompleteEvent).Message.Content)

	msgs, err := f.convRepo.ListMessages(context.Background(), conv.ID, 6, repository.OrderAsc)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, []string{"user", "assistant", "user", "assistant"},
		[]string{msgs[0].Role, msgs[1].Role, msgs[2].Role, msgs[3].Role})
}

func TestComplete_UpstreamErrorReturned(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, 6)
	svc := NewChatService(&fakeLLM{openErr: &llm.UpstreamError{StatusCode: 502, Status: "502 Bad Gateway"}}, f.convRepo, nil, "")

	_, err := svc.Complete(context.Background(), RelayRequest{UserID: 6, ConversationID: conv.ID, Content: "Hi"})
	assert.True(t, llm.IsUpstreamError(err))
}
