package model

import (
	"time"

	"gorm.io/gorm"
)

// 消息作者角色
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
	MessageRoleSystem    = "system"
)

// Conversation 是一个 AI 对话，归属于唯一的用户，软删除。
type Conversation struct {
	ID        string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    uint           `gorm:"index;not null" json:"user_id"`
	Title     string         `gorm:"type:varchar(255);not null" json:"title"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// Message 对应 messages 表。流式对话中写入后不再修改。
// 有用量时 TotalTokens = PromptTokens + CompletionTokens。
type Message struct {
	ID               string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ConversationID   string    `gorm:"type:varchar(36);not null;index:idx_messages_conv_created,priority:1" json:"conversation_id"`
	UserID           uint      `gorm:"not null;index" json:"user_id"`
	Role             string    `gorm:"type:varchar(16);not null" json:"role"`
	Content          string    `gorm:"type:text;not null" json:"content"`
	Model            *string   `gorm:"type:varchar(128)" json:"model"`
	PromptTokens     *int      `json:"prompt_tokens"`
	CompletionTokens *int      `json:"completion_tokens"`
	TotalTokens      *int      `json:"total_tokens"`
	CreatedAt        time.Time `gorm:"index:idx_messages_conv_created,priority:2" json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Message) TableName() string {
	return "messages"
}

// SetUsage 记录用量，并保证 total = prompt + completion。
func (m *Message) SetUsage(prompt, completion int) {
	total := prompt + completion
	m.PromptTokens = &prompt
	m.CompletionTokens = &completion
	m.TotalTokens = &total
}

// ConversationDetail 是对话及其全部消息。
type ConversationDetail struct {
	Conversation
	Messages []Message `json:"messages"`
}
