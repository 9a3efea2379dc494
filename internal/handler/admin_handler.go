// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"inkwell-go/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminHandler 负责处理所有与管理员相关的 API 请求。
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// ListUsers 处理分页获取用户列表的请求。
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, size := pageParams(c)
	users, err := h.adminService.ListUsers(c.Request.Context(), page, size)
	if err != nil {
		fail(c, "ListUsers: Failed to list users", err)
		return
	}
	ok(c, users)
}

// Stats 返回系统概览。
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.adminService.Stats(c.Request.Context())
	if err != nil {
		fail(c, "AdminStats", err)
		return
	}
	ok(c, stats)
}
