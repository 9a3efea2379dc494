package handler

import (
	"inkwell-go/internal/repository"
	"inkwell-go/internal/service"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 负责对话的增删改查。
type ConversationHandler struct {
	conversationService service.ConversationService
}

func NewConversationHandler(conversationService service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

type conversationTitleRequest struct {
	Title string `json:"title" binding:"max=200"`
}

func (h *ConversationHandler) Create(c *gin.Context) {
	var req conversationTitleRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "CreateConversation", err)
			return
		}
	}
	conv, err := h.conversationService.Create(c.Request.Context(), currentUser(c).ID, req.Title)
	if err != nil {
		fail(c, "CreateConversation", err)
		return
	}
	created(c, conv)
}

func (h *ConversationHandler) List(c *gin.Context) {
	page, size := pageParams(c)
	result, err := h.conversationService.List(c.Request.Context(), currentUser(c).ID, page, size)
	if err != nil {
		fail(c, "ListConversations", err)
		return
	}
	ok(c, result)
}

// Get 返回对话与消息，?order=desc 时按倒序返回消息。
func (h *ConversationHandler) Get(c *gin.Context) {
	order := repository.ParseOrder(c.Query("order"))
	detail, err := h.conversationService.Get(c.Request.Context(), currentUser(c).ID, c.Param("id"), order)
	if err != nil {
		fail(c, "GetConversation", err)
		return
	}
	ok(c, detail)
}

func (h *ConversationHandler) Rename(c *gin.Context) {
	var req conversationTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "RenameConversation", err)
		return
	}
	conv, err := h.conversationService.Rename(c.Request.Context(), currentUser(c).ID, c.Param("id"), req.Title)
	if err != nil {
		fail(c, "RenameConversation", err)
		return
	}
	ok(c, conv)
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	if err := h.conversationService.Delete(c.Request.Context(), currentUser(c).ID, c.Param("id")); err != nil {
		fail(c, "DeleteConversation", err)
		return
	}
	ok(c, nil)
}
