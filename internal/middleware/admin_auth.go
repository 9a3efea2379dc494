// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"

	"inkwell-go/internal/model"

	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware 检查用户是否具有管理员权限。
// 此中间件必须在 AuthMiddleware 之后使用。
func AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 从 AuthMiddleware 设置的上下文中获取 user 对象
		user, exists := c.Get("user")
		if !exists {
			abort(c, http.StatusInternalServerError, "user missing from context")
			return
		}

		currentUser, ok := user.(*model.User)
		if !ok {
			abort(c, http.StatusInternalServerError, "unexpected user type in context")
			return
		}

		if !currentUser.IsAdmin() {
			abort(c, http.StatusForbidden, "admin role required")
			return
		}
		c.Next()
	}
}
