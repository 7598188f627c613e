package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// InboxHandler serves the system message and stranger gift inboxes.
type InboxHandler struct {
	system SystemMessages
	gifts  StrangerGifts
}

func NewInboxHandler(system SystemMessages, gifts StrangerGifts) *InboxHandler {
	return &InboxHandler{system: system, gifts: gifts}
}

// SystemUnreadCount reports unread system messages and unread stranger gifts together,
// as the client shows them under one badge.
func (h *InboxHandler) SystemUnreadCount(c *gin.Context) {
	ctx, userID := c.Request.Context(), currentUser(c)

	systemCount, err := h.system.UnreadCount(ctx, userID)
	if err != nil {
		respondError(c, "system unread count", err)
		return
	}
	giftsCount, err := h.gifts.UnreadCount(ctx, userID)
	if err != nil {
		respondError(c, "gift unread count", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"systemCount": systemCount, "giftsCount": giftsCount})
}

// SystemMessages lists the caller's system messages and advances their read marker.
func (h *InboxHandler) SystemMessages(c *gin.Context) {
	page, limit := pageParams(c)
	list, err := h.system.ListForUser(c.Request.Context(), currentUser(c), page, limit)
	if err != nil {
		respondError(c, "system messages", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": list})
}

func (h *InboxHandler) StrangerGiftsUnreadCount(c *gin.Context) {
	count, err := h.gifts.UnreadCount(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, "stranger gifts unread count", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// StrangerGifts lists gifts from non-friends and marks them read.
func (h *InboxHandler) StrangerGifts(c *gin.Context) {
	views, err := h.gifts.ListForUser(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, "stranger gifts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"strangerGifts": views})
}
