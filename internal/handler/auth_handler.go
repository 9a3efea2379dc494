// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"inkwell-go/internal/service"
	"inkwell-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AuthHandler 负责处理认证相关的 API 请求，例如刷新 token。
type AuthHandler struct {
	userService service.UserService
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(userService service.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

// RefreshTokenRequest 定义了刷新 token API 的请求体结构。
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken 处理刷新 token 的请求，旧的 refresh token 随即失效。
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "RefreshToken", err)
		return
	}

	pair, err := h.userService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		fail(c, "RefreshToken: Failed to refresh token", err)
		return
	}

	log.Info("Token refreshed successfully")
	ok(c, pair)
}
