// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"inkwell-go/internal/service"
	"inkwell-go/pkg/log"
	"inkwell-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": status, "message": message, "data": nil})
}

// bearerToken 从 Authorization 头中提取 token。
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	// Token 通常以 "Bearer <token>" 的形式提供，我们需要提取出 token 本身
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", false
	}
	t := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
	return t, t != ""
}

// authenticate 校验 token、黑名单与用户，成功时把 user 和 claims 放入上下文。
func authenticate(c *gin.Context, jwtManager *token.JWTManager, userService service.UserService) (int, string) {
	tokenString, found := bearerToken(c)
	if !found {
		return http.StatusUnauthorized, "missing or malformed authorization header"
	}

	claims, err := jwtManager.VerifyToken(tokenString)
	if err != nil {
		return http.StatusUnauthorized, "invalid or expired token"
	}

	revoked, err := userService.IsRevoked(c.Request.Context(), claims)
	if err != nil {
		log.Error("AuthMiddleware: 查询 token 黑名单失败", err)
		return http.StatusServiceUnavailable, "authentication temporarily unavailable"
	}
	if revoked {
		return http.StatusUnauthorized, "token has been revoked"
	}

	// 从数据库获取完整的用户信息，角色以数据库为准
	user, err := userService.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		// 如果根据 token 中的用户信息无法找到用户，说明该用户可能已被删除
		return http.StatusUnauthorized, "user not found"
	}

	c.Set("user", user)
	c.Set("claims", claims)
	return 0, ""
}

// AuthMiddleware 创建一个 Gin 中间件，用于 JWT 认证。
// 它会从请求头中提取 token，验证其有效性，并将完整的 User 对象存入 Gin 的上下文中。
func AuthMiddleware(jwtManager *token.JWTManager, userService service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if status, msg := authenticate(c, jwtManager, userService); status != 0 {
			abort(c, status, msg)
			return
		}
		c.Next()
	}
}

// OptionalAuthMiddleware 用于公开接口：有合法 token 时识别用户，否则按匿名访问继续。
func OptionalAuthMiddleware(jwtManager *token.JWTManager, userService service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, found := bearerToken(c); found {
			if status, msg := authenticate(c, jwtManager, userService); status != 0 {
				abort(c, status, msg)
				return
			}
		}
		c.Next()
	}
}
