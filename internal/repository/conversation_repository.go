// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"fmt"
	"time"

	"inkwell-go/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepository 定义了对话与消息的持久化操作。
// 所有读写都按 owner 过滤，不属于 owner 的对话一律返回 ErrNotFound。
type ConversationRepository interface {
	CreateConversation(ctx context.Context, ownerID uint, title string) (*model.Conversation, error)
	GetConversation(ctx context.Context, conversationID string, ownerID uint) (*model.Conversation, error)
	ListConversations(ctx context.Context, ownerID uint, offset, limit int) ([]model.Conversation, int64, error)
	RenameConversation(ctx context.Context, conversationID string, ownerID uint, title string) (*model.Conversation, error)
	DeleteConversation(ctx context.Context, conversationID string, ownerID uint) error
	// TouchConversation 在每轮对话后刷新 updated_at，使列表按最近活跃排序。
	TouchConversation(ctx context.Context, conversationID string) error

	// CreateMessage 写入一条消息，msg.UserID 必须是对话的 owner。
	CreateMessage(ctx context.Context, msg *model.Message) error
	// SaveMessage 与 CreateMessage 相同，但主键冲突时什么也不做，供延迟重试使用。
	SaveMessage(ctx context.Context, msg *model.Message) error
	ListMessages(ctx context.Context, conversationID string, ownerID uint, order Order) ([]model.Message, error)
	CountMessages(ctx context.Context) (int64, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// NewID 生成按时间有序的 uuid，同一毫秒内也保持单调。
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (r *conversationRepository) CreateConversation(ctx context.Context, ownerID uint, title string) (*model.Conversation, error) {
	conv := &model.Conversation{ID: NewID(), UserID: ownerID, Title: title}
	if err := r.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

func (r *conversationRepository) GetConversation(ctx context.Context, conversationID string, ownerID uint) (*model.Conversation, error) {
	return r.getConversation(r.db.WithContext(ctx), conversationID, ownerID)
}

func (r *conversationRepository) getConversation(tx *gorm.DB, conversationID string, ownerID uint) (*model.Conversation, error) {
	var conv model.Conversation
	err := tx.Where("id = ? AND user_id = ?", conversationID, ownerID).First(&conv).Error
	if err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

func (r *conversationRepository) ListConversations(ctx context.Context, ownerID uint, offset, limit int) ([]model.Conversation, int64, error) {
	var (
		convs []model.Conversation
		total int64
	)
	q := r.db.WithContext(ctx).Model(&model.Conversation{}).Where("user_id = ?", ownerID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Order("updated_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&convs).Error; err != nil {
		return nil, 0, err
	}
	return convs, total, nil
}

func (r *conversationRepository) RenameConversation(ctx context.Context, conversationID string, ownerID uint, title string) (*model.Conversation, error) {
	conv, err := r.GetConversation(ctx, conversationID, ownerID)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(conv).Update("title", title).Error; err != nil {
		return nil, fmt.Errorf("failed to rename conversation: %w", err)
	}
	return conv, nil
}

func (r *conversationRepository) DeleteConversation(ctx context.Context, conversationID string, ownerID uint) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", conversationID, ownerID).Delete(&model.Conversation{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete conversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *conversationRepository) TouchConversation(ctx context.Context, conversationID string) error {
	return r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", time.Now()).Error
}

func (r *conversationRepository) CreateMessage(ctx context.Context, msg *model.Message) error {
	return r.insertMessage(ctx, msg, false)
}

func (r *conversationRepository) SaveMessage(ctx context.Context, msg *model.Message) error {
	return r.insertMessage(ctx, msg, true)
}

func (r *conversationRepository) insertMessage(ctx context.Context, msg *model.Message, ignoreConflict bool) error {
	if msg.ID == "" {
		msg.ID = NewID()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := r.getConversation(tx, msg.ConversationID, msg.UserID); err != nil {
			return err
		}
		q := tx
		if ignoreConflict {
			q = q.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true})
		}
		if err := q.Create(msg).Error; err != nil {
			return fmt.Errorf("failed to create message: %w", translate(err))
		}
		return nil
	})
}

func (r *conversationRepository) ListMessages(ctx context.Context, conversationID string, ownerID uint, order Order) ([]model.Message, error) {
	if _, err := r.GetConversation(ctx, conversationID, ownerID); err != nil {
		return nil, err
	}
	dir := "ASC"
	if order == OrderDesc {
		dir = "DESC"
	}
	var msgs []model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, ownerID).
		Order("created_at " + dir).Order("id " + dir).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

func (r *conversationRepository) CountMessages(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).Count(&n).Error
	return n, err
}
