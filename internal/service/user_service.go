// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"inkwell-go/internal/model"
	"inkwell-go/internal/repository"
	"inkwell-go/pkg/hash"
	"inkwell-go/pkg/log"
	"inkwell-go/pkg/token"
)

// TokenPair 是登录与刷新返回的 token 组合。
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// ProfileUpdate 是用户可修改的资料字段，nil 表示不修改。
type ProfileUpdate struct {
	DisplayName *string
	Bio         *string
	AvatarKey   *string
}

// UserService 接口定义了所有与用户相关的业务操作。
type UserService interface {
	Register(ctx context.Context, username, password string) (*model.User, error)
	Login(ctx context.Context, username, password string) (*TokenPair, error)
	// RefreshToken 校验 refresh token 并轮换：旧 token 进入黑名单。
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
	// Logout 将 access token（以及可选的 refresh token）加入黑名单。
	Logout(ctx context.Context, accessClaims *token.CustomClaims, refreshToken string) error
	// IsRevoked 判断 token 是否已登出。
	IsRevoked(ctx context.Context, claims *token.CustomClaims) (bool, error)
	GetByID(ctx context.Context, userID uint) (*model.User, error)
	UpdateProfile(ctx context.Context, userID uint, update ProfileUpdate) (*model.User, error)
	PublicProfile(ctx context.Context, userID uint) (*model.UserProfile, error)
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo   repository.UserRepository
	socialRepo repository.SocialRepository
	blacklist  repository.TokenBlacklist
	jwtManager *token.JWTManager
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository, socialRepo repository.SocialRepository, blacklist repository.TokenBlacklist, jwtManager *token.JWTManager) UserService {
	return &userService{
		userRepo:   userRepo,
		socialRepo: socialRepo,
		blacklist:  blacklist,
		jwtManager: jwtManager,
	}
}

func validateCredentials(username, password string) error {
	n := utf8.RuneCountInString(username)
	if n < 3 || n > 64 {
		return invalidf("username must be 3 to 64 characters")
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return invalidf("username must not contain whitespace")
	}
	if len(password) < 6 || len(password) > 72 {
		return invalidf("password must be 6 to 72 bytes")
	}
	return nil
}

// Register 处理用户注册的业务逻辑。
func (s *userService) Register(ctx context.Context, username, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	// 1. 对密码进行哈希处理
	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	// 2. 写入数据库，用户名唯一索引负责去重
	newUser := &model.User{
		Username:    username,
		Password:    hashedPassword,
		Role:        model.RoleUser,
		DisplayName: username,
	}
	if err := s.userRepo.Create(ctx, newUser); err != nil {
		return nil, conflictOr(err, "username already exists")
	}
	return newUser, nil
}

// Login 处理用户登录的业务逻辑。
func (s *userService) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	// 1. 查找用户
	user, err := s.userRepo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		return nil, err
	}

	// 2. 验证密码
	if !hash.CheckPasswordHash(password, user.Password) {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	// 3. 生成 access token 和 refresh token
	return s.issue(user)
}

func (s *userService) issue(user *model.User) (*TokenPair, error) {
	access, err := s.jwtManager.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwtManager.GenerateRefreshToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// RefreshToken 使用 refresh token 换取一对新 token。
func (s *userService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwtManager.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	revoked, err := s.IsRevoked(ctx, claims)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: refresh token revoked", ErrUnauthorized)
	}

	// 角色可能已经变更，以数据库为准
	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: user no longer exists", ErrUnauthorized)
		}
		return nil, err
	}

	if err := s.blacklist.Add(ctx, claims.ID, s.jwtManager.RemainingTTL(claims)); err != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return s.issue(user)
}

// Logout 处理用户登出逻辑，将 token 加入 Redis 黑名单。
func (s *userService) Logout(ctx context.Context, accessClaims *token.CustomClaims, refreshToken string) error {
	if err := s.blacklist.Add(ctx, accessClaims.ID, s.jwtManager.RemainingTTL(accessClaims)); err != nil {
		return fmt.Errorf("failed to revoke access token: %w", err)
	}
	if refreshToken == "" {
		return nil
	}
	claims, err := s.jwtManager.VerifyRefreshToken(refreshToken)
	if err != nil {
		// 无效的 refresh token 无需加入黑名单
		log.Warnf("[UserService] 登出时 refresh token 无效, user=%d: %v", accessClaims.UserID, err)
		return nil
	}
	if claims.UserID != accessClaims.UserID {
		return nil
	}
	return s.blacklist.Add(ctx, claims.ID, s.jwtManager.RemainingTTL(claims))
}

func (s *userService) IsRevoked(ctx context.Context, claims *token.CustomClaims) (bool, error) {
	if claims.ID == "" {
		return false, nil
	}
	return s.blacklist.Contains(ctx, claims.ID)
}

func (s *userService) GetByID(ctx context.Context, userID uint) (*model.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}

func (s *userService) UpdateProfile(ctx context.Context, userID uint, update ProfileUpdate) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if update.DisplayName != nil {
		name := strings.TrimSpace(*update.DisplayName)
		if name == "" || utf8.RuneCountInString(name) > 100 {
			return nil, invalidf("displayName must be 1 to 100 characters")
		}
		user.DisplayName = name
	}
	if update.Bio != nil {
		if utf8.RuneCountInString(*update.Bio) > 2000 {
			return nil, invalidf("bio must be at most 2000 characters")
		}
		user.Bio = *update.Bio
	}
	if update.AvatarKey != nil {
		user.AvatarKey = strings.TrimSpace(*update.AvatarKey)
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) PublicProfile(ctx context.Context, userID uint) (*model.UserProfile, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	followers, following, err := s.socialRepo.CountFollows(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.UserProfile{
		ID:             user.ID,
		Username:       user.Username,
		DisplayName:    user.DisplayName,
		Bio:            user.Bio,
		AvatarKey:      user.AvatarKey,
		FollowerCount:  followers,
		FollowingCount: following,
		CreatedAt:      user.CreatedAt,
	}, nil
}
