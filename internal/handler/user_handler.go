// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"inkwell-go/internal/service"
	"inkwell-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// UserHandler 负责处理所有与普通用户相关的 API 请求。
type UserHandler struct {
	userService   service.UserService
	socialService service.SocialService
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(userService service.UserService, socialService service.SocialService) *UserHandler {
	return &UserHandler{userService: userService, socialService: socialService}
}

// RegisterRequest 定义了用户注册 API 的请求体结构。
type RegisterRequest struct {
	Username string `json:"username" binding:"required,notblank"`
	Password string `json:"password" binding:"required"`
}

// Register 处理用户注册请求。
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	// 绑定并验证 JSON 请求体
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Register", err)
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		fail(c, "Register: User registration failed for '"+req.Username+"'", err)
		return
	}

	log.Infof("User '%s' registered successfully", user.Username)
	created(c, user)
}

// LoginRequest 定义了用户登录 API 的请求体结构。
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 处理用户登录请求。
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Login", err)
		return
	}

	pair, err := h.userService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		fail(c, "Login: Failed login attempt for '"+req.Username+"'", err)
		return
	}

	log.Infof("User '%s' logged in successfully", req.Username)
	ok(c, pair)
}

// GetProfile 返回当前登录用户的资料。
func (h *UserHandler) GetProfile(c *gin.Context) {
	ok(c, currentUser(c))
}

// UpdateProfileRequest 只包含允许用户自行修改的字段。
type UpdateProfileRequest struct {
	DisplayName *string `json:"displayName"`
	Bio         *string `json:"bio"`
	AvatarKey   *string `json:"avatarKey"`
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "UpdateProfile", err)
		return
	}
	user, err := h.userService.UpdateProfile(c.Request.Context(), currentUser(c).ID, service.ProfileUpdate{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		AvatarKey:   req.AvatarKey,
	})
	if err != nil {
		fail(c, "UpdateProfile", err)
		return
	}
	ok(c, user)
}

// LogoutRequest 可以携带 refresh token 一并注销。
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Logout 处理用户登出请求。
func (h *UserHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	if c.Request.ContentLength != 0 {
		_ = c.ShouldBindJSON(&req)
	}
	claims := currentClaims(c)
	if err := h.userService.Logout(c.Request.Context(), claims, req.RefreshToken); err != nil {
		fail(c, "Logout", err)
		return
	}
	log.Infof("User '%s' logged out successfully", claims.Username)
	ok(c, nil)
}

// PublicProfile 返回任意用户的公开资料。
func (h *UserHandler) PublicProfile(c *gin.Context) {
	id, valid := uintParam(c, "id")
	if !valid {
		return
	}
	profile, err := h.userService.PublicProfile(c.Request.Context(), id)
	if err != nil {
		fail(c, "PublicProfile", err)
		return
	}
	ok(c, profile)
}

func (h *UserHandler) Follow(c *gin.Context) {
	id, valid := uintParam(c, "id")
	if !valid {
		return
	}
	if err := h.socialService.Follow(c.Request.Context(), currentUser(c).ID, id); err != nil {
		fail(c, "Follow", err)
		return
	}
	ok(c, nil)
}

func (h *UserHandler) Unfollow(c *gin.Context) {
	id, valid := uintParam(c, "id")
	if !valid {
		return
	}
	if err := h.socialService.Unfollow(c.Request.Context(), currentUser(c).ID, id); err != nil {
		fail(c, "Unfollow", err)
		return
	}
	ok(c, nil)
}

func (h *UserHandler) Followers(c *gin.Context) {
	id, valid := uintParam(c, "id")
	if !valid {
		return
	}
	page, size := pageParams(c)
	result, err := h.socialService.Followers(c.Request.Context(), id, page, size)
	if err != nil {
		fail(c, "Followers", err)
		return
	}
	ok(c, result)
}

func (h *UserHandler) Following(c *gin.Context) {
	id, valid := uintParam(c, "id")
	if !valid {
		return
	}
	page, size := pageParams(c)
	result, err := h.socialService.Following(c.Request.Context(), id, page, size)
	if err != nil {
		fail(c, "Following", err)
		return
	}
	ok(c, result)
}
