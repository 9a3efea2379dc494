// Package pipeline 定义了后台任务的处理流程，由 Kafka 消费者（或关闭 Kafka 时的同步发布者）驱动。
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"inkwell-go/internal/model"
	"inkwell-go/internal/repository"
	"inkwell-go/pkg/log"
	"inkwell-go/pkg/tasks"
)

// PostIndexer 是帖子的搜索索引，由 pkg/es.PostIndex 实现。
type PostIndexer interface {
	IndexPost(ctx context.Context, doc model.PostDocument) error
	DeletePost(ctx context.Context, postID uint) error
}

// Processor 封装了任务处理的所有依赖和逻辑。
type Processor struct {
	convRepo repository.ConversationRepository
	postRepo repository.PostRepository
	indexer  PostIndexer
}

// NewProcessor 创建一个新的 Processor 实例。indexer 为 nil 时帖子索引任务被忽略。
func NewProcessor(convRepo repository.ConversationRepository, postRepo repository.PostRepository, indexer PostIndexer) *Processor {
	return &Processor{convRepo: convRepo, postRepo: postRepo, indexer: indexer}
}

// Process 按任务类型分发。返回错误表示可以重试；无法处理的任务记录日志后返回 nil。
func (p *Processor) Process(ctx context.Context, task tasks.Task) error {
	switch task.Type {
	case tasks.TypePersistAssistantMessage:
		return p.persistAssistantMessage(ctx, task)
	case tasks.TypeIndexPost:
		return p.indexPost(ctx, task)
	case tasks.TypeDeletePost:
		return p.deletePost(ctx, task)
	default:
		log.Warnf("[Processor] 未知任务类型 %q, task=%s，已丢弃", task.Type, task.ID)
		return nil
	}
}

// persistAssistantMessage 以预生成的 id 幂等写入助手消息，重复投递不会产生重复行。
func (p *Processor) persistAssistantMessage(ctx context.Context, task tasks.Task) error {
	var payload tasks.AssistantMessagePayload
	if err := task.Decode(&payload); err != nil {
		log.Error("[Processor] 助手消息任务无法解析，已丢弃", err)
		return nil
	}

	msg := &model.Message{
		ID:               payload.MessageID,
		ConversationID:   payload.ConversationID,
		UserID:           payload.UserID,
		Role:             model.MessageRoleAssistant,
		Content:          payload.Content,
		PromptTokens:     payload.PromptTokens,
		CompletionTokens: payload.CompletionTokens,
		TotalTokens:      payload.TotalTokens,
		CreatedAt:        payload.CreatedAt,
		UpdatedAt:        payload.CreatedAt,
	}
	if payload.Model != "" {
		m := payload.Model
		msg.Model = &m
	}

	if err := p.convRepo.SaveMessage(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// 对话已被删除，没有可写入的位置
			log.Warnf("[Processor] 对话不存在，丢弃助手消息, conversation=%s, message=%s", msg.ConversationID, msg.ID)
			return nil
		}
		return fmt.Errorf("failed to persist assistant message %s: %w", msg.ID, err)
	}
	if err := p.convRepo.TouchConversation(ctx, msg.ConversationID); err != nil {
		log.Warnf("[Processor] 更新对话时间失败, conversation=%s: %v", msg.ConversationID, err)
	}
	log.Infof("[Processor] 助手消息补写成功, conversation=%s, message=%s", msg.ConversationID, msg.ID)
	return nil
}

func (p *Processor) indexPost(ctx context.Context, task tasks.Task) error {
	if p.indexer == nil {
		return nil
	}
	var payload tasks.PostPayload
	if err := task.Decode(&payload); err != nil {
		log.Error("[Processor] 帖子索引任务无法解析，已丢弃", err)
		return nil
	}

	post, err := p.postRepo.FindByID(ctx, payload.PostID)
	if errors.Is(err, repository.ErrNotFound) {
		// 帖子在任务排队期间被删除
		return p.indexer.DeletePost(ctx, payload.PostID)
	}
	if err != nil {
		return fmt.Errorf("failed to load post %d: %w", payload.PostID, err)
	}
	if !post.Published {
		return p.indexer.DeletePost(ctx, post.ID)
	}

	doc := model.PostDocument{
		PostID:    post.ID,
		AuthorID:  post.AuthorID,
		Title:     post.Title,
		Content:   post.Content,
		CreatedAt: post.CreatedAt,
	}
	if post.Author != nil {
		doc.AuthorName = post.Author.DisplayName
		if doc.AuthorName == "" {
			doc.AuthorName = post.Author.Username
		}
	}
	if err := p.indexer.IndexPost(ctx, doc); err != nil {
		return fmt.Errorf("failed to index post %d: %w", post.ID, err)
	}
	return nil
}

func (p *Processor) deletePost(ctx context.Context, task tasks.Task) error {
	if p.indexer == nil {
		return nil
	}
	var payload tasks.PostPayload
	if err := task.Decode(&payload); err != nil {
		log.Error("[Processor] 帖子删除任务无法解析，已丢弃", err)
		return nil
	}
	return p.indexer.DeletePost(ctx, payload.PostID)
}
