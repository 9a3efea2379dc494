// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"inkwell-go/internal/model"
	"inkwell-go/internal/repository"
)

const (
	defaultConversationTitle = "New chat"
	maxTitleRunes            = 200
)

// ConversationService 定义了对话业务逻辑的接口。所有操作都按 owner 过滤。
type ConversationService interface {
	Create(ctx context.Context, userID uint, title string) (*model.Conversation, error)
	List(ctx context.Context, userID uint, page, size int) (*Page[model.Conversation], error)
	// Get 返回对话及其全部消息。
	Get(ctx context.Context, userID uint, conversationID string, order repository.Order) (*model.ConversationDetail, error)
	Rename(ctx context.Context, userID uint, conversationID, title string) (*model.Conversation, error)
	Delete(ctx context.Context, userID uint, conversationID string) error
}

type conversationService struct {
	repo repository.ConversationRepository
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(repo repository.ConversationRepository) ConversationService {
	return &conversationService{repo: repo}
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) > maxTitleRunes {
		return "", invalidf("title must be at most %d characters", maxTitleRunes)
	}
	return title, nil
}

func (s *conversationService) Create(ctx context.Context, userID uint, title string) (*model.Conversation, error) {
	title, err := normalizeTitle(title)
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = defaultConversationTitle
	}
	return s.repo.CreateConversation(ctx, userID, title)
}

func (s *conversationService) List(ctx context.Context, userID uint, page, size int) (*Page[model.Conversation], error) {
	page, size, offset := normalizePage(page, size)
	convs, total, err := s.repo.ListConversations(ctx, userID, offset, size)
	if err != nil {
		return nil, err
	}
	return newPage(convs, total, page, size), nil
}

func (s *conversationService) Get(ctx context.Context, userID uint, conversationID string, order repository.Order) (*model.ConversationDetail, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListMessages(ctx, conversationID, userID, order)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return &model.ConversationDetail{Conversation: *conv, Messages: msgs}, nil
}

func (s *conversationService) Rename(ctx context.Context, userID uint, conversationID, title string) (*model.Conversation, error) {
	title, err := normalizeTitle(title)
	if err != nil {
		return nil, err
	}
	if title == "" {
		return nil, invalidf("title must not be blank")
	}
	return s.repo.RenameConversation(ctx, conversationID, userID, title)
}

func (s *conversationService) Delete(ctx context.Context, userID uint, conversationID string) error {
	return s.repo.DeleteConversation(ctx, conversationID, userID)
}
