package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

const mediaFolder = "chat"

func (s *ChatService) SendText(ctx context.Context, conversationID, senderID, text string) (models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, apperrors.ErrEmptyMessage
	}
	if s.filter != nil && s.filter.ContainsForbidden(ctx, text) {
		return models.Message{}, apperrors.ErrForbiddenWords
	}
	return s.SendMessage(ctx, OutgoingMessage{
		ConversationID: conversationID,
		SenderID:       senderID,
		Type:           models.MessageText,
		Content:        models.Content{Body: text},
	})
}

func (s *ChatService) SendSticker(ctx context.Context, conversationID, senderID, stickerID string) (models.Message, error) {
	if _, err := s.CheckAccessForConversation(ctx, conversationID, senderID); err != nil {
		return models.Message{}, err
	}
	sticker, err := s.CheckStickerAccess(ctx, senderID, stickerID)
	if err != nil {
		return models.Message{}, err
	}
	return s.SendMessage(ctx, OutgoingMessage{
		ConversationID: conversationID,
		SenderID:       senderID,
		Type:           models.MessageSticker,
		Content:        models.Content{Body: sticker.File, Duration: sticker.Duration},
	})
}

// CheckStickerAccess returns the sticker if the user's tier unlocks it.
func (s *ChatService) CheckStickerAccess(ctx context.Context, userID, stickerID string) (models.Sticker, error) {
	sticker, err := s.stickers.Get(ctx, stickerID)
	if err != nil {
		return models.Sticker{}, translate("load sticker", err)
	}

	switch sticker.Tier {
	case models.StickerFree:
		return sticker, nil
	case models.StickerPro:
		pro, err := s.users.IsPro(ctx, userID)
		if err != nil {
			return models.Sticker{}, translate("check pro", err)
		}
		if pro {
			return sticker, nil
		}
	case models.StickerVIP:
		level, err := s.users.VIPLevel(ctx, userID)
		if err != nil {
			return models.Sticker{}, translate("check vip", err)
		}
		if level > 0 && level >= sticker.VIPLevel {
			return sticker, nil
		}
	}
	return models.Sticker{}, apperrors.ErrStickerLocked
}

func (s *ChatService) ListStickers(ctx context.Context) ([]models.StickerCategory, error) {
	stickers, err := s.stickers.List(ctx)
	if err != nil {
		return nil, translate("list stickers", err)
	}
	return models.GroupStickers(stickers), nil
}

// SendMedia sends an already uploaded image or voice note.
func (s *ChatService) SendMedia(ctx context.Context, conversationID, senderID string, kind models.MessageType, url string, duration float64) (models.Message, error) {
	if !kind.IsMedia() {
		return models.Message{}, apperrors.ErrInvalidMessageType
	}
	content := models.Content{Body: url}
	if kind == models.MessageVoice {
		content.Duration = duration
	}
	return s.SendMessage(ctx, OutgoingMessage{
		ConversationID: conversationID,
		SenderID:       senderID,
		Type:           kind,
		Content:        content,
	})
}

// UploadMedia stores the file and sends it as a media message. The access check runs
// before the upload so strangers cannot park files in the bucket.
func (s *ChatService) UploadMedia(ctx context.Context, conversationID, senderID string, kind models.MessageType, file Upload, duration float64) (models.Message, error) {
	if !kind.IsMedia() {
		return models.Message{}, apperrors.ErrInvalidMessageType
	}
	if file.Body == nil || file.Size == 0 {
		return models.Message{}, apperrors.ErrFileRequired
	}
	if kind == models.MessageVoice && duration <= 0 {
		return models.Message{}, apperrors.ErrDurationRequired
	}
	if _, err := s.CheckAccessForConversation(ctx, conversationID, senderID); err != nil {
		return models.Message{}, err
	}

	url, err := s.media.Upload(ctx, fmt.Sprintf("%s/%s", mediaFolder, kind), file.Filename, file.ContentType, file.Body, file.Size)
	if err != nil {
		return models.Message{}, fmt.Errorf("upload media: %w", err)
	}
	msg, err := s.SendMessage(ctx, OutgoingMessage{
		ConversationID: conversationID,
		SenderID:       senderID,
		Type:           kind,
		Content:        models.Content{Body: url, Duration: duration},
	})
	if err != nil {
		if rmErr := s.media.RemoveURL(context.WithoutCancel(ctx), url); rmErr != nil {
			s.log.Warn().Err(rmErr).Str("url", url).Msg("remove orphaned upload")
		}
		return models.Message{}, err
	}
	return msg, nil
}

// SendGiftMessage routes a gift by relationship. Strangers land in the gift ledger;
// friends get a gift message when the gift was sent from the chat.
func (s *ChatService) SendGiftMessage(ctx context.Context, senderID, receiverID string, gift models.GiftRef, fromChat bool) error {
	if senderID == "" || receiverID == "" || senderID == receiverID {
		return nil
	}
	if gift.Amount <= 0 {
		gift.Amount = 1
	}

	friends, err := s.relations.IsFriend(ctx, senderID, receiverID)
	if err != nil {
		return translate("check friendship", err)
	}
	if !friends {
		_, err := s.ledger.Record(ctx, receiverID, senderID, gift)
		return err
	}
	if !fromChat {
		return nil
	}

	content := models.Content{Body: gift.Body, GiftID: gift.GiftID, Amount: gift.Amount}
	return s.sendOrStart(ctx, senderID, receiverID, models.MessageGift, content, &friends, false)
}

type Invitation struct {
	Type models.InvitationType `json:"invitationType" binding:"required,oneof=room group agency"`
	ID   string                `json:"invitationId" binding:"required"`
}

// SendInvitationMessage invites the receiver to a room, group or agency. Invitations
// are free; without an existing conversation they are only allowed between friends.
func (s *ChatService) SendInvitationMessage(ctx context.Context, senderID, receiverID string, inv Invitation) error {
	if senderID == "" || receiverID == "" {
		return apperrors.ErrInvalidID
	}
	content := models.Content{InvitationType: inv.Type, InvitationID: inv.ID}

	_, err := s.conversations.FindByPair(ctx, senderID, receiverID)
	if errors.Is(err, repositories.ErrConversationNotFound) {
		friends, err := s.relations.IsFriend(ctx, senderID, receiverID)
		if err != nil {
			return translate("check friendship", err)
		}
		if !friends {
			return apperrors.ErrNotFriends
		}
		return s.sendOrStart(ctx, senderID, receiverID, models.MessageInvitation, content, &friends, true)
	}
	if err != nil {
		return translate("find conversation", err)
	}
	return s.sendOrStart(ctx, senderID, receiverID, models.MessageInvitation, content, nil, true)
}

// sendOrStart sends into the pair's conversation, starting it with the message when the
// pair has none.
func (s *ChatService) sendOrStart(ctx context.Context, senderID, receiverID string, kind models.MessageType, content models.Content, friends *bool, free bool) error {
	conv, err := s.conversations.FindByPair(ctx, senderID, receiverID)
	if err == nil {
		_, err = s.SendMessage(ctx, OutgoingMessage{
			ConversationID: conv.ID,
			SenderID:       senderID,
			ReceiverID:     receiverID,
			Type:           kind,
			Content:        content,
			Free:           free,
		})
		return err
	}
	if !errors.Is(err, repositories.ErrConversationNotFound) {
		return translate("find conversation", err)
	}
	_, err = s.StartConversation(ctx, StartConversationInput{
		SenderID:   senderID,
		ReceiverID: receiverID,
		First:      &FirstMessage{Type: kind, Content: content},
		AreFriends: friends,
	})
	return err
}
