package service

import (
	"encoding/json"

	"inkwell-go/internal/model"
)

// 流式事件类型，对应线上格式 {"type": ..., "data": ...}
const (
	EventUserMessage = "user_message"
	EventChunk       = "ai_chunk"
	EventComplete    = "ai_complete"
	EventError       = "error"

	// DoneSentinel 在所有事件之后单独发送，表示流结束。
	DoneSentinel = "[DONE]"
)

// GenericUpstreamMessage 是流中断时发给客户端的唯一说明，不包含上游细节。
const GenericUpstreamMessage = "AI service is temporarily unavailable, please retry later"

// StreamEvent 是封闭的事件集合，只有本包内的四种类型实现它。
type StreamEvent interface {
	Type() string
	data() any
}

// UserMessageEvent 确认用户消息已落库，总是第一个事件。
type UserMessageEvent struct {
	Message model.Message
}

// ChunkEvent 携带一个上游文本片段。
type ChunkEvent struct {
	Content string
}

// CompleteEvent 携带已持久化的助手消息。
type CompleteEvent struct {
	Message model.Message
}

// ErrorEvent 表示流在中途失败。
type ErrorEvent struct {
	Message string
}

func (UserMessageEvent) Type() string { return EventUserMessage }
func (ChunkEvent) Type() string       { return EventChunk }
func (CompleteEvent) Type() string    { return EventComplete }
func (ErrorEvent) Type() string       { return EventError }

func (e UserMessageEvent) data() any { return e.Message }
func (e ChunkEvent) data() any       { return e.Content }
func (e CompleteEvent) data() any    { return e.Message }
func (e ErrorEvent) data() any       { return e.Message }

type wireEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// EncodeEvent 把事件编码为线上 JSON。
func EncodeEvent(ev StreamEvent) ([]byte, error) {
	return json.Marshal(wireEvent{Type: ev.Type(), Data: ev.data()})
}

// EventSink 是事件的下游，SSE 与 WebSocket 各有一个实现。
// 第一次 Send 时才写出响应头；Close 发送 DoneSentinel。
type EventSink interface {
	Send(ev StreamEvent) error
	Close() error
	// Started 报告是否已经向客户端写出过任何字节。
	Started() bool
}
