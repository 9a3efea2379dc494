// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"

	"inkwell-go/internal/model"
	"inkwell-go/internal/repository"
)

// SystemStats 是管理后台的概览数据。
type SystemStats struct {
	Users    int64 `json:"users"`
	Messages int64 `json:"messages"`
}

// AdminService 接口定义了所有管理员相关的业务操作。
type AdminService interface {
	ListUsers(ctx context.Context, page, size int) (*Page[model.User], error)
	Stats(ctx context.Context) (*SystemStats, error)
}

// adminService 是 AdminService 接口的实现。
type adminService struct {
	userRepo         repository.UserRepository
	conversationRepo repository.ConversationRepository
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(userRepo repository.UserRepository, conversationRepo repository.ConversationRepository) AdminService {
	return &adminService{
		userRepo:         userRepo,
		conversationRepo: conversationRepo,
	}
}

// ListUsers 分页列出所有用户。
func (s *adminService) ListUsers(ctx context.Context, page, size int) (*Page[model.User], error) {
	page, size, offset := normalizePage(page, size)
	users, total, err := s.userRepo.FindWithPagination(ctx, offset, size)
	if err != nil {
		return nil, err
	}
	return newPage(users, total, page, size), nil
}

// Stats 统计用户数与消息数。
func (s *adminService) Stats(ctx context.Context) (*SystemStats, error) {
	_, users, err := s.userRepo.FindWithPagination(ctx, 0, 1)
	if err != nil {
		return nil, err
	}
	messages, err := s.conversationRepo.CountMessages(ctx)
	if err != nil {
		return nil, err
	}
	return &SystemStats{Users: users, Messages: messages}, nil
}
