// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"bytes"
	"io"
	"strings"
	"time"

	"inkwell-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// maxLoggedBody 限制日志中请求体和响应体的长度
const maxLoggedBody = 4 << 10

// bodyLogWriter 用于捕获响应体。事件流响应不捕获。
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 实现了 io.Writer 接口，将响应写入 gin.ResponseWriter 和一个内部的 buffer
func (w *bodyLogWriter) Write(b []byte) (int, error) {
	if w.capture() && w.body.Len() < maxLoggedBody {
		w.body.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

func (w *bodyLogWriter) capture() bool {
	return !strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream")
}

func truncate(s string) string {
	if len(s) > maxLoggedBody {
		return s[:maxLoggedBody] + "...(truncated)"
	}
	return s
}

// RequestLogger 是一个 Gin 中间件，用于记录请求和响应日志。
// 只有 JSON 请求会记录请求体；SSE 和 WebSocket 响应只记录状态与耗时。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 记录请求开始时间
		startTime := time.Now()

		var requestBody []byte
		if c.Request.Body != nil && strings.HasPrefix(c.ContentType(), "application/json") {
			requestBody, _ = io.ReadAll(io.LimitReader(c.Request.Body, maxLoggedBody+1))
			// 将读取的部分与剩余的请求体拼接，以便后续处理函数可以正常读取
			c.Request.Body = struct {
				io.Reader
				io.Closer
			}{io.MultiReader(bytes.NewReader(requestBody), c.Request.Body), c.Request.Body}
		}

		var blw *bodyLogWriter
		if !strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
			blw = &bodyLogWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
			c.Writer = blw
		}

		// 处理请求
		c.Next()

		fields := []interface{}{
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		}
		if len(requestBody) > 0 && !strings.Contains(c.Request.URL.Path, "/login") && !strings.Contains(c.Request.URL.Path, "/register") {
			fields = append(fields, "requestBody", truncate(string(requestBody)))
		}
		if blw != nil && blw.body.Len() > 0 {
			fields = append(fields, "responseBody", truncate(blw.body.String()))
		}
		log.Infow("HTTP Request Log", fields...)
	}
}
