package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/telemetry"
)

// AdminHandler serves operator endpoints. Every mutating action is audited.
type AdminHandler struct {
	chat    ChatAPI
	system  SystemMessages
	cleaner Cleaner
	audit   Auditor
}

func NewAdminHandler(chat ChatAPI, system SystemMessages, cleaner Cleaner, audit Auditor) *AdminHandler {
	return &AdminHandler{chat: chat, system: system, cleaner: cleaner, audit: audit}
}

type systemMessageRequest struct {
	Text     string `json:"text" binding:"required"`
	TextAr   string `json:"textAr"`
	ImageURL string `json:"imageUrl" binding:"omitempty,url"`
}

type individualMessageRequest struct {
	systemMessageRequest
	ReceiverID string `json:"receiverId" binding:"required"`
}

func (r systemMessageRequest) content() models.SystemContent {
	return models.SystemContent{Text: r.Text, TextAr: r.TextAr, ImageURL: r.ImageURL}
}

func (h *AdminHandler) CleanupStatistics(c *gin.Context) {
	stats, err := h.cleaner.Statistics(c.Request.Context())
	if err != nil {
		respondError(c, "cleanup statistics", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// TriggerCleanup runs one media expiry pass synchronously.
func (h *AdminHandler) TriggerCleanup(c *gin.Context) {
	result, err := h.cleaner.Cleanup(c.Request.Context())
	if err != nil {
		respondError(c, "trigger cleanup", err)
		return
	}
	h.emit(c, telemetry.ActionMediaCleanup, "media cleanup triggered", map[string]string{
		"processed": strconv.Itoa(result.TotalProcessed),
		"failed":    strconv.Itoa(result.FailedDeletions),
	})
	c.JSON(http.StatusOK, result)
}

// PurgeConversation removes a conversation and all of its messages.
func (h *AdminHandler) PurgeConversation(c *gin.Context) {
	conversationID := c.Param("conversationId")
	if err := h.chat.PurgeConversation(c.Request.Context(), conversationID, currentUser(c)); err != nil {
		respondError(c, "purge conversation", err)
		return
	}
	h.emit(c, telemetry.ActionConversationPurge, "conversation purged", map[string]string{"conversation_id": conversationID})
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) SendSystemMessage(c *gin.Context) {
	var req individualMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	msg, err := h.system.SendIndividual(c.Request.Context(), req.ReceiverID, req.content())
	if err != nil {
		respondError(c, "send system message", err)
		return
	}
	h.emit(c, telemetry.ActionSystemMessageSend, "system message sent", map[string]string{
		"message_id":  msg.ID,
		"receiver_id": req.ReceiverID,
	})
	c.JSON(http.StatusCreated, msg)
}

func (h *AdminHandler) BroadcastSystemMessage(c *gin.Context) {
	var req systemMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	msg, err := h.system.Broadcast(c.Request.Context(), req.content())
	if err != nil {
		respondError(c, "broadcast system message", err)
		return
	}
	h.emit(c, telemetry.ActionSystemMessageBroadcast, "system message broadcast", map[string]string{"message_id": msg.ID})
	c.JSON(http.StatusCreated, msg)
}

func (h *AdminHandler) emit(c *gin.Context, action, text string, fields map[string]string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), "INFO", action, text, requestIDFromContext(c), userIDFromContext(c), fields)
}
