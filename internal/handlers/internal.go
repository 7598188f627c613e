package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/services"
)

// ChatHooks are the operations other platform services trigger: gifts, invitations and
// friendship changes.
type ChatHooks interface {
	SendGiftMessage(ctx context.Context, senderID, receiverID string, gift models.GiftRef, fromChat bool) error
	SendInvitationMessage(ctx context.Context, senderID, receiverID string, inv services.Invitation) error
	RefreshFriendship(ctx context.Context, a, b string, areFriends bool) error
}

var _ ChatHooks = (*services.ChatService)(nil)

// InternalHandler serves service-to-service endpoints. Callers authenticate with a
// service token carrying the admin role.
type InternalHandler struct {
	hooks ChatHooks
}

func NewInternalHandler(hooks ChatHooks) *InternalHandler {
	return &InternalHandler{hooks: hooks}
}

func (h *InternalHandler) SendGift(c *gin.Context) {
	var req struct {
		SenderID   string         `json:"senderId" binding:"required"`
		ReceiverID string         `json:"receiverId" binding:"required"`
		Gift       models.GiftRef `json:"gift"`
		FromChat   bool           `json:"fromChat"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.hooks.SendGiftMessage(c.Request.Context(), req.SenderID, req.ReceiverID, req.Gift, req.FromChat); err != nil {
		respondError(c, "send gift", err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *InternalHandler) SendInvitation(c *gin.Context) {
	var req struct {
		SenderID   string `json:"senderId" binding:"required"`
		ReceiverID string `json:"receiverId" binding:"required"`
		services.Invitation
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.hooks.SendInvitationMessage(c.Request.Context(), req.SenderID, req.ReceiverID, req.Invitation); err != nil {
		respondError(c, "send invitation", err)
		return
	}
	c.Status(http.StatusAccepted)
}

// RefreshFriendship updates the cached friendship flag on the pair's conversation.
func (h *InternalHandler) RefreshFriendship(c *gin.Context) {
	var req struct {
		UserA      string `json:"userA" binding:"required"`
		UserB      string `json:"userB" binding:"required"`
		AreFriends bool   `json:"areFriends"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.hooks.RefreshFriendship(c.Request.Context(), req.UserA, req.UserB, req.AreFriends); err != nil {
		respondError(c, "refresh friendship", err)
		return
	}
	c.Status(http.StatusNoContent)
}
