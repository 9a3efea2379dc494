// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"inkwell-go/internal/model"
	"inkwell-go/internal/service"
	"inkwell-go/pkg/llm"
	"inkwell-go/pkg/log"
	"inkwell-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	// notblank 拒绝只包含空白字符的字符串
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	}
}

// respond 写出统一的 {code, message, data} 响应。
func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{"code": status, "message": message, "data": data})
}

func ok(c *gin.Context, data interface{}) {
	respond(c, http.StatusOK, "success", data)
}

func created(c *gin.Context, data interface{}) {
	respond(c, http.StatusCreated, "success", data)
}

func badRequest(c *gin.Context, where string, err error) {
	log.Warnf("%s: Invalid request payload, error: %v", where, err)
	respond(c, http.StatusBadRequest, "invalid request payload", nil)
}

// statusFor 把业务错误映射为 HTTP 状态码与对外消息。
func statusFor(err error) (int, string) {
	var perr *service.PersistenceError
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrInvalidInput):
		status := http.StatusConflict
		if errors.Is(err, service.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		// 校验与冲突信息可以直接返回给客户端
		msg := err.Error()
		if i := strings.Index(msg, ": "); i >= 0 {
			msg = msg[i+2:]
		}
		return status, msg
	case llm.IsUpstreamError(err):
		return http.StatusBadGateway, service.GenericUpstreamMessage
	case errors.As(err, &perr):
		return http.StatusInternalServerError, "failed to save data"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// fail 记录并写出错误响应：客户端错误用 Warnf，服务端错误用 Error。
func fail(c *gin.Context, where string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error(where, err)
	} else {
		log.Warnf("%s: %v", where, err)
	}
	respond(c, status, msg, nil)
}

// currentUser 返回 AuthMiddleware 放入上下文的用户。
func currentUser(c *gin.Context) *model.User {
	v, exists := c.Get("user")
	if !exists {
		return nil
	}
	u, _ := v.(*model.User)
	return u
}

func currentClaims(c *gin.Context) *token.CustomClaims {
	v, exists := c.Get("claims")
	if !exists {
		return nil
	}
	claims, _ := v.(*token.CustomClaims)
	return claims
}

// actor 返回当前请求的操作者，未登录时为零值。
func actor(c *gin.Context) service.Actor {
	u := currentUser(c)
	if u == nil {
		return service.Actor{}
	}
	return service.Actor{ID: u.ID, Admin: u.IsAdmin()}
}

// pageParams 读取 ?page=&size=，非法值交给 service 层归一化。
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	return page, size
}

// uintParam 解析路径参数中的数字 id。
func uintParam(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		respond(c, http.StatusBadRequest, "invalid "+name, nil)
		return 0, false
	}
	return uint(n), true
}
