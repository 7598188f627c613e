package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
	"messaging-service/internal/services"
)

func TestInternalRoutesRequireRole(t *testing.T) {
	f := setupRouter(t, false)
	rec := f.json(http.MethodPost, "/v1/chat/internal/friendships", `{"userA":"a","userB":"b","areFriends":true}`)
	requireStatus(t, rec, http.StatusForbidden)
}

func TestInternalSendGift(t *testing.T) {
	f := setupRouter(t, true)
	gift := models.GiftRef{GiftID: "rose", Amount: 50, Body: "a rose"}
	f.hooks.On("SendGiftMessage", mock.Anything, callerID, otherID, gift, true).Return(nil).Once()

	rec := f.json(http.MethodPost, "/v1/chat/internal/gifts",
		`{"senderId":"`+callerID+`","receiverId":"`+otherID+`","fromChat":true,"gift":{"giftId":"rose","amount":50,"body":"a rose"}}`)

	requireStatus(t, rec, http.StatusAccepted)
}

func TestInternalSendInvitation(t *testing.T) {
	f := setupRouter(t, true)
	inv := services.Invitation{Type: models.InvitationRoom, ID: "room-9"}
	f.hooks.On("SendInvitationMessage", mock.Anything, callerID, otherID, inv).Return(apperrors.ErrNotFriends).Once()

	rec := f.json(http.MethodPost, "/v1/chat/internal/invitations",
		`{"senderId":"`+callerID+`","receiverId":"`+otherID+`","invitationType":"room","invitationId":"room-9"}`)
	requireStatus(t, rec, http.StatusForbidden)

	rec = f.json(http.MethodPost, "/v1/chat/internal/invitations",
		`{"senderId":"`+callerID+`","receiverId":"`+otherID+`","invitationType":"party","invitationId":"x"}`)
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestInternalRefreshFriendship(t *testing.T) {
	f := setupRouter(t, true)
	f.hooks.On("RefreshFriendship", mock.Anything, callerID, otherID, false).Return(nil).Once()

	rec := f.json(http.MethodPost, "/v1/chat/internal/friendships", `{"userA":"`+callerID+`","userB":"`+otherID+`"}`)

	requireStatus(t, rec, http.StatusNoContent)
}
