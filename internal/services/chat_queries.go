package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

const backgroundFolder = "backgrounds"

// ConversationDetails is what a client needs to render an open conversation.
type ConversationDetails struct {
	ConversationID string                      `json:"conversationId"`
	Messages       models.Page[models.Message] `json:"messages"`
	AreFriends     bool                        `json:"areFriends"`
	IsBlocked      bool                        `json:"isBlocked"`
	TargetUser     models.UserInfo             `json:"targetUser"`
	IsSecure       bool                        `json:"isSecure"`
	Background     *string                     `json:"background"`
}

type OnlineStatus struct {
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// ListConversations returns the user's visible conversations, most recent first.
func (s *ChatService) ListConversations(ctx context.Context, userID string, page, limit int64, unreadOnly bool) (models.Page[models.ConversationSummary], error) {
	page, limit = models.NormalizePage(page, limit)
	convs, total, err := s.conversations.ListForUser(ctx, userID, repositories.ConversationFilter{
		UnreadOnly: unreadOnly,
		Skip:       models.Skip(page, limit),
		Limit:      limit,
	})
	if err != nil {
		return models.Page[models.ConversationSummary]{}, translate("list conversations", err)
	}

	messageIDs := make([]string, 0, len(convs))
	otherIDs := make([]string, 0, len(convs))
	for _, c := range convs {
		if c.LastMessageID != "" {
			messageIDs = append(messageIDs, c.LastMessageID)
		}
		otherIDs = append(otherIDs, c.Other(userID))
	}
	lastMessages, err := s.messages.GetMany(ctx, messageIDs)
	if err != nil {
		return models.Page[models.ConversationSummary]{}, translate("load last messages", err)
	}
	users, err := s.users.GetDisplayInfos(ctx, otherIDs)
	if err != nil {
		return models.Page[models.ConversationSummary]{}, translate("load participants", err)
	}
	live, err := s.presence.OnlineUsers(ctx, otherIDs)
	if err != nil {
		s.log.Warn().Err(err).Msg("presence lookup failed")
	}

	list := make([]models.ConversationSummary, 0, len(convs))
	for _, c := range convs {
		other := c.Other(userID)
		user, ok := users[other]
		if !ok {
			user = models.DeletedUserPlaceholder(other)
		}
		if live[other] {
			user.IsOnline = true
		}
		var last *models.Message
		if m, ok := lastMessages[c.LastMessageID]; ok {
			last = &m
		} else {
			last = models.DeletedPlaceholderMessage(c.ID, userID, other, c.LastMessageAt)
		}
		list = append(list, models.ConversationSummary{
			ConversationID: c.ID,
			IsSecure:       c.IsSecure,
			LastMessage:    last,
			User:           user,
			UnreadCount:    c.UnreadFor(userID),
		})
	}
	return models.NewPage(list, total, page, limit), nil
}

func (s *ChatService) TotalUnread(ctx context.Context, userID string) (int64, error) {
	n, err := s.conversations.SumUnread(ctx, userID)
	if err != nil {
		return 0, translate("sum unread", err)
	}
	return n, nil
}

// ConversationImages lists image URLs the user can still see, newest first.
func (s *ChatService) ConversationImages(ctx context.Context, conversationID, userID string) ([]string, error) {
	conv, err := s.CheckAccessForConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListImages(ctx, conv.ID, conv.DeletedAtFor(userID))
	if err != nil {
		return nil, translate("list images", err)
	}
	urls := make([]string, 0, len(msgs))
	for _, m := range msgs {
		urls = append(urls, m.Content.Body)
	}
	return urls, nil
}

// ConversationMessages fetches a page of messages. The first page also carries the
// relationship and display context of the other participant.
func (s *ChatService) ConversationMessages(ctx context.Context, conversationID, userID string, page, limit int64) (ConversationDetails, error) {
	conv, err := s.CheckAccessForConversation(ctx, conversationID, userID)
	if err != nil {
		return ConversationDetails{}, err
	}
	msgs, err := s.fetchVisible(ctx, conv, userID, page, limit)
	if err != nil {
		return ConversationDetails{}, err
	}
	details := ConversationDetails{ConversationID: conv.ID, Messages: msgs}
	if msgs.Page != 1 {
		return details, nil
	}
	return s.withContext(ctx, details, conv, userID, conv.Other(userID))
}

func (s *ChatService) withContext(ctx context.Context, d ConversationDetails, conv models.Conversation, userID, otherID string) (ConversationDetails, error) {
	var err error
	if d.IsBlocked, err = s.relations.IsBlocked(ctx, userID, otherID); err != nil {
		return ConversationDetails{}, translate("check block", err)
	}
	if d.AreFriends, err = s.relations.IsFriend(ctx, userID, otherID); err != nil {
		return ConversationDetails{}, translate("check friendship", err)
	}
	d.TargetUser = s.displayInfo(ctx, otherID)
	d.IsSecure = conv.IsSecure
	d.Background = conv.BackgroundFor(userID)
	return d, nil
}

// OpenConversationWith returns the conversation with otherID, starting an empty one when
// the pair has none. created reports whether it was started by this call.
func (s *ChatService) OpenConversationWith(ctx context.Context, userID, otherID string) (details ConversationDetails, created bool, err error) {
	if userID == otherID {
		return ConversationDetails{}, false, apperrors.ErrSelfConversation
	}
	conv, err := s.conversations.FindByPair(ctx, userID, otherID)
	switch {
	case err == nil:
		msgs, err := s.fetchVisible(ctx, conv, userID, 1, 20)
		if err != nil {
			return ConversationDetails{}, false, err
		}
		details, err = s.withContext(ctx, ConversationDetails{ConversationID: conv.ID, Messages: msgs}, conv, userID, otherID)
		return details, false, err
	case !errors.Is(err, repositories.ErrConversationNotFound):
		return ConversationDetails{}, false, translate("find conversation", err)
	}

	friends, err := s.relations.IsFriend(ctx, userID, otherID)
	if err != nil {
		return ConversationDetails{}, false, translate("check friendship", err)
	}
	conv, err = s.StartConversation(ctx, StartConversationInput{SenderID: userID, ReceiverID: otherID, AreFriends: &friends})
	if err != nil {
		return ConversationDetails{}, false, err
	}
	empty := models.NewPage([]models.Message{}, 0, 1, 20)
	details, err = s.withContext(ctx, ConversationDetails{ConversationID: conv.ID, Messages: empty}, conv, userID, otherID)
	return details, true, err
}

// SetBackground sets or clears (url == nil) the caller's background. The other
// participant's background is never touched. Access goes through
// CheckAccessForConversation, so a non-participant gets ErrAccessDenied and a
// malformed or unknown id gets ErrConversationNotFound.
func (s *ChatService) SetBackground(ctx context.Context, conversationID, userID string, url *string) error {
	conv, err := s.CheckAccessForConversation(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if err := s.conversations.SetBackground(ctx, conv.ID, userID, url); err != nil {
		return translate("set background", err)
	}
	if previous := conv.BackgroundFor(userID); previous != nil && (url == nil || *url != *previous) {
		if err := s.media.RemoveURL(ctx, *previous); err != nil {
			s.log.Debug().Err(err).Str("url", *previous).Msg("previous background not removed")
		}
	}
	return nil
}

// UploadBackground stores an image and makes it the caller's background.
func (s *ChatService) UploadBackground(ctx context.Context, conversationID, userID string, file Upload) (string, error) {
	if file.Body == nil || file.Size == 0 {
		return "", apperrors.ErrFileRequired
	}
	if _, err := s.CheckAccessForConversation(ctx, conversationID, userID); err != nil {
		return "", err
	}
	url, err := s.media.Upload(ctx, backgroundFolder, file.Filename, file.ContentType, file.Body, file.Size)
	if err != nil {
		return "", fmt.Errorf("upload background: %w", err)
	}
	if err := s.SetBackground(ctx, conversationID, userID, &url); err != nil {
		return "", err
	}
	return url, nil
}

func (s *ChatService) GetBackground(ctx context.Context, conversationID, userID string) (*string, error) {
	conv, err := s.CheckAccessForConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	return conv.BackgroundFor(userID), nil
}

// IsUserOnline prefers live presence and falls back to the stored last-seen state.
func (s *ChatService) IsUserOnline(ctx context.Context, userID string) (OnlineStatus, error) {
	online, err := s.presence.IsOnline(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("presence lookup failed")
	}
	if online {
		return OnlineStatus{IsOnline: true}, nil
	}
	info, err := s.users.GetDisplayInfo(ctx, userID)
	if err != nil {
		return OnlineStatus{}, translate("load user", err)
	}
	return OnlineStatus{IsOnline: info.IsOnline, LastSeen: info.LastSeen}, nil
}
