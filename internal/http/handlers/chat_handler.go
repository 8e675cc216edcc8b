package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/agent-marketplace/internal/http/handlers/common"
	"github.com/ignatzorin/agent-marketplace/internal/service"
	"github.com/ignatzorin/agent-marketplace/internal/validation"
)

// ChatHandler — HTTP слой чата задания.
type ChatHandler struct {
	chat *service.ChatService
}

// NewChatHandler создаёт хэндлер.
func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Send обрабатывает POST /jobs/:id/messages.
func (h *ChatHandler) Send(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	jobID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateMessageContent(req.Content); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	msg, err := h.chat.SendMessage(c.Request.Context(), jobID, userID, req.Content)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// List обрабатывает GET /jobs/:id/messages.
func (h *ChatHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	jobID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	messages, err := h.chat.ListMessages(c.Request.Context(), jobID, userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// MarkRead обрабатывает POST /jobs/:id/messages/read.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	jobID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		MessageIDs []int64 `json:"message_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.chat.MarkMessagesRead(c.Request.Context(), jobID, userID, req.MessageIDs); err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, http.StatusOK, "сообщения прочитаны", nil)
}

// UnreadCount обрабатывает GET /jobs/:id/messages/unread.
func (h *ChatHandler) UnreadCount(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	jobID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	count, err := h.chat.CountUnread(c.Request.Context(), jobID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}
