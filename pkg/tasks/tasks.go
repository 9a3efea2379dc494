// Package tasks defines the envelope for background jobs sent over Kafka.
package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// TypePersistAssistantMessage retries an assistant message insert that failed at the end of a stream.
	TypePersistAssistantMessage = "assistant_message.persist"
	// TypeIndexPost (re)indexes a post into the search index.
	TypeIndexPost = "post.index"
	// TypeDeletePost removes a post from the search index.
	TypeDeletePost = "post.delete"
)

// Task is the message value written to the task topic.
type Task struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// AssistantMessagePayload carries everything needed to insert the assistant row idempotently.
type AssistantMessagePayload struct {
	MessageID        string    `json:"message_id"`
	ConversationID   string    `json:"conversation_id"`
	UserID           uint      `json:"user_id"`
	Content          string    `json:"content"`
	Model            string    `json:"model"`
	PromptTokens     *int      `json:"prompt_tokens,omitempty"`
	CompletionTokens *int      `json:"completion_tokens,omitempty"`
	TotalTokens      *int      `json:"total_tokens,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// PostPayload identifies the post to index or delete.
type PostPayload struct {
	PostID uint `json:"post_id"`
}

// New builds a task with a fresh id.
func New(taskType string, payload any) (Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Task{}, fmt.Errorf("failed to marshal %s payload: %w", taskType, err)
	}
	return Task{
		ID:        uuid.NewString(),
		Type:      taskType,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into v.
func (t Task) Decode(v any) error {
	if err := json.Unmarshal(t.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", t.Type, err)
	}
	return nil
}
