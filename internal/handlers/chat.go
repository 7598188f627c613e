package handlers

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
	"messaging-service/internal/services"
)

// ChatHandler serves the private conversation endpoints.
type ChatHandler struct {
	chat ChatAPI
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chat ChatAPI) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// SendMessage posts a text or sticker message into a conversation.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req struct {
		Text      string `json:"text"`
		StickerID string `json:"stickerId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	conversationID, userID := c.Param("conversationId"), currentUser(c)

	var (
		msg models.Message
		err error
	)
	if req.StickerID != "" {
		msg, err = h.chat.SendSticker(ctx, conversationID, userID, req.StickerID)
	} else {
		msg, err = h.chat.SendText(ctx, conversationID, userID, req.Text)
	}
	if err != nil {
		respondError(c, "send message", err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// SendMedia accepts a multipart image or voice note, stores it and posts the message.
func (h *ChatHandler) SendMedia(c *gin.Context) {
	kind := models.MessageType(c.PostForm("type"))
	duration, _ := strconv.ParseFloat(c.PostForm("audioDuration"), 64)

	header, err := c.FormFile("file")
	if err != nil {
		respondError(c, "send media", apperrors.ErrFileRequired)
		return
	}
	upload, closeFn, err := openUpload(header)
	if err != nil {
		respondError(c, "send media", apperrors.ErrFileRequired)
		return
	}
	defer closeFn()

	msg, err := h.chat.UploadMedia(c.Request.Context(), c.Param("conversationId"), currentUser(c), kind, upload, duration)
	if err != nil {
		respondError(c, "send media", err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// GetMessages returns a page of messages. Page one also carries the conversation context.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	page, limit := pageParams(c)
	details, err := h.chat.ConversationMessages(c.Request.Context(), c.Param("conversationId"), currentUser(c), page, limit)
	if err != nil {
		respondError(c, "get messages", err)
		return
	}
	if details.Messages.Page != 1 {
		c.JSON(http.StatusOK, gin.H{"messages": details.Messages})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages":   details.Messages,
		"areFriends": details.AreFriends,
		"isBlocked":  details.IsBlocked,
		"targetUser": details.TargetUser,
		"isSecure":   details.IsSecure,
		"background": details.Background,
	})
}

func (h *ChatHandler) ConversationImages(c *gin.Context) {
	urls, err := h.chat.ConversationImages(c.Request.Context(), c.Param("conversationId"), currentUser(c))
	if err != nil {
		respondError(c, "conversation images", err)
		return
	}
	if len(urls) == 0 {
		respondError(c, "conversation images", apperrors.ErrNoImages)
		return
	}
	c.JSON(http.StatusOK, urls)
}

// StartConversation creates an empty conversation with the receiver.
func (h *ChatHandler) StartConversation(c *gin.Context) {
	var req struct {
		ReceiverID string `json:"receiverId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	conv, err := h.chat.StartConversation(c.Request.Context(), services.StartConversationInput{
		SenderID:   currentUser(c),
		ReceiverID: req.ReceiverID,
	})
	if err != nil {
		respondError(c, "start conversation", err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

// GetConversationWith opens the conversation with another user, creating it when missing.
func (h *ChatHandler) GetConversationWith(c *gin.Context) {
	details, created, err := h.chat.OpenConversationWith(c.Request.Context(), currentUser(c), c.Param("userId"))
	if err != nil {
		respondError(c, "get conversation", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, details)
}

func (h *ChatHandler) ListConversations(c *gin.Context) {
	h.listConversations(c, false)
}

func (h *ChatHandler) ListUnreadConversations(c *gin.Context) {
	h.listConversations(c, true)
}

func (h *ChatHandler) listConversations(c *gin.Context, unreadOnly bool) {
	page, limit := pageParams(c)
	list, err := h.chat.ListConversations(c.Request.Context(), currentUser(c), page, limit, unreadOnly)
	if err != nil {
		respondError(c, "list conversations", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ChatHandler) TotalUnread(c *gin.Context) {
	total, err := h.chat.TotalUnread(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, "total unread", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"totalUnreadMessages": total})
}

func (h *ChatHandler) IsUserOnline(c *gin.Context) {
	status, err := h.chat.IsUserOnline(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, "is user online", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// DeleteMessage replaces the caller's own message with the deletion placeholder.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	msg, err := h.chat.DeleteChatMessage(c.Request.Context(), c.Param("messageId"), currentUser(c))
	if err != nil {
		respondError(c, "delete message", err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// DeleteConversation hides the conversation for the caller, or for both sides when
// selfDelete is explicitly false. An omitted selfDelete only affects the caller.
func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	var req struct {
		ConversationID string `json:"conversationId" binding:"required,objectid"`
		SelfDelete     *bool  `json:"selfDelete"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	selfDelete := req.SelfDelete == nil || *req.SelfDelete
	if err := h.chat.DeleteConversation(c.Request.Context(), req.ConversationID, currentUser(c), selfDelete); err != nil {
		respondError(c, "delete conversation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted", "messageAr": "تم حذف المحادثة"})
}

func (h *ChatHandler) ToggleSecure(c *gin.Context) {
	var req struct {
		ConversationID string `json:"conversationId" binding:"required,objectid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	conv, err := h.chat.ToggleSecure(c.Request.Context(), req.ConversationID, currentUser(c))
	if err != nil {
		respondError(c, "toggle secure", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversationId":  conv.ID,
		"isSecure":        conv.IsSecure,
		"secureEnabledBy": conv.SecureEnabledBy,
	})
}

// UploadBackground stores a multipart "image" as the caller's background.
func (h *ChatHandler) UploadBackground(c *gin.Context) {
	header, err := c.FormFile("image")
	if err != nil {
		respondError(c, "upload background", apperrors.ErrFileRequired)
		return
	}
	upload, closeFn, err := openUpload(header)
	if err != nil {
		respondError(c, "upload background", apperrors.ErrFileRequired)
		return
	}
	defer closeFn()

	url, err := h.chat.UploadBackground(c.Request.Context(), c.Param("conversationId"), currentUser(c), upload)
	if err != nil {
		respondError(c, "upload background", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"background": url})
}

func (h *ChatHandler) GetBackground(c *gin.Context) {
	url, err := h.chat.GetBackground(c.Request.Context(), c.Param("conversationId"), currentUser(c))
	if err != nil {
		respondError(c, "get background", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"background": url})
}

func (h *ChatHandler) ClearBackground(c *gin.Context) {
	if err := h.chat.SetBackground(c.Request.Context(), c.Param("conversationId"), currentUser(c), nil); err != nil {
		respondError(c, "clear background", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"background": nil})
}

func (h *ChatHandler) ListStickers(c *gin.Context) {
	groups, err := h.chat.ListStickers(c.Request.Context())
	if err != nil {
		respondError(c, "list stickers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stickers": groups})
}

func openUpload(header *multipart.FileHeader) (services.Upload, func(), error) {
	f, err := header.Open()
	if err != nil {
		return services.Upload{}, nil, err
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return services.Upload{
		Filename:    strings.TrimSpace(header.Filename),
		ContentType: contentType,
		Size:        header.Size,
		Body:        f,
	}, func() { _ = f.Close() }, nil
}
