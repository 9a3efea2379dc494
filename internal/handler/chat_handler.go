// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"inkwell-go/internal/service"
	"inkwell-go/pkg/log"
	"inkwell-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/gorilla/websocket"
)

// ChatRequest 是一轮对话的请求体。
type ChatRequest struct {
	Content     string   `json:"content" binding:"required,notblank,max=32000"`
	Model       string   `json:"model" binding:"max=200"`
	Temperature *float64 `json:"temperature"`
}

// wsChatRequest 是 WebSocket 上每一帧的请求。
type wsChatRequest struct {
	ConversationID string `json:"conversation_id"`
	ChatRequest
}

// ChatHandler 负责聊天相关请求：SSE 流式、非流式与 WebSocket。
type ChatHandler struct {
	chatService service.ChatService
	userService service.UserService
	jwtManager  *token.JWTManager
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, userService service.UserService, jwtManager *token.JWTManager) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		userService: userService,
		jwtManager:  jwtManager,
	}
}

func (r ChatRequest) toRelay(userID uint, conversationID string) service.RelayRequest {
	return service.RelayRequest{
		UserID:         userID,
		ConversationID: conversationID,
		Content:        r.Content,
		Model:          r.Model,
		Temperature:    r.Temperature,
	}
}

// Stream 处理 POST /conversations/:id/stream。
// 在第一个事件发出之前的错误返回普通 JSON 错误；之后的错误由 ChatService 在流内发送。
func (h *ChatHandler) Stream(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "ChatStream", err)
		return
	}
	user := currentUser(c)

	sink := newSSESink(c.Writer)
	err := h.chatService.Relay(c.Request.Context(), req.toRelay(user.ID, c.Param("id")), sink)
	if err != nil && !sink.Started() {
		fail(c, "ChatStream: relay rejected", err)
	}
}

// Send 处理 POST /conversations/:id/messages，一次性返回用户消息与助手回复。
func (h *ChatHandler) Send(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "ChatSend", err)
		return
	}
	user := currentUser(c)

	turn, err := h.chatService.Complete(c.Request.Context(), req.toRelay(user.ID, c.Param("id")))
	if err != nil {
		fail(c, "ChatSend: completion failed", err)
		return
	}
	ok(c, turn)
}

// Handle 处理 GET /chat/ws/:token。连接建立后，每个文本帧是一轮对话，
// 回复以与 SSE 相同的 {type, data} 帧发送，并以 [DONE] 帧结束。
func (h *ChatHandler) Handle(c *gin.Context) {
	claims, err := h.jwtManager.VerifyToken(c.Param("token"))
	if err != nil {
		respond(c, http.StatusUnauthorized, "invalid token", nil)
		return
	}
	if revoked, err := h.userService.IsRevoked(c.Request.Context(), claims); err != nil || revoked {
		respond(c, http.StatusUnauthorized, "invalid token", nil)
		return
	}
	user, err := h.userService.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		respond(c, http.StatusUnauthorized, "user not found", nil)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()
	log.Infof("WebSocket 连接已建立，用户: %s", user.Username)

	// 连接被劫持后 net/http 不再取消请求 context，断开由读协程负责取消
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	frames := readFrames(ctx, cancel, conn)

	for message := range frames {
		if ctx.Err() != nil {
			return
		}
		sink := newWSSink(conn)
		var req wsChatRequest
		if err := json.Unmarshal(message, &req); err != nil || req.ConversationID == "" {
			h.rejectFrame(sink, "invalid request payload")
			continue
		}
		if err := binding.Validator.ValidateStruct(&req.ChatRequest); err != nil {
			h.rejectFrame(sink, "invalid request payload")
			continue
		}

		err = h.chatService.Relay(ctx, req.toRelay(user.ID, req.ConversationID), sink)
		if err != nil && !sink.Started() && ctx.Err() == nil {
			_, msg := statusFor(err)
			h.rejectFrame(sink, msg)
		}
	}
}

// wsFrameBuffer 是对话进行中可以排队的请求帧数量。
const wsFrameBuffer = 8

// readFrames 在独立协程中持续读取文本帧，使对话进行中也能发现客户端断开。
// 读取出错（包括对端关闭）时调用 cancel 并关闭返回的 channel。
func readFrames(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) <-chan []byte {
	frames := make(chan []byte, wsFrameBuffer)
	go func() {
		defer close(frames)
		defer cancel()
		for {
			msgType, message, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warnf("从 WebSocket 读取消息失败: %v", err)
				}
				return
			}
			if msgType != websocket.TextMessage {
				continue
			}
			select {
			case frames <- message:
			case <-ctx.Done():
				return
			}
		}
	}()
	return frames
}

// rejectFrame 在 WebSocket 上报告流开始前的错误，连接保持可用。
func (h *ChatHandler) rejectFrame(sink *wsSink, msg string) {
	if err := sink.Send(service.ErrorEvent{Message: msg}); err != nil {
		log.Warnf("WebSocket 写入错误帧失败: %v", err)
		return
	}
	_ = sink.Close()
}
