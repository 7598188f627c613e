package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/models"
	"messaging-service/internal/services"
)

type ChatServiceMock struct {
	mock.Mock
}

func (m *ChatServiceMock) SendText(ctx context.Context, conversationID, senderID, text string) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, text)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *ChatServiceMock) SendSticker(ctx context.Context, conversationID, senderID, stickerID string) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, stickerID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *ChatServiceMock) UploadMedia(ctx context.Context, conversationID, senderID string, kind models.MessageType, file services.Upload, duration float64) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, kind, file, duration)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *ChatServiceMock) ConversationMessages(ctx context.Context, conversationID, userID string, page, limit int64) (services.ConversationDetails, error) {
	args := m.Called(ctx, conversationID, userID, page, limit)
	var details services.ConversationDetails
	if val := args.Get(0); val != nil {
		details = val.(services.ConversationDetails)
	}
	return details, args.Error(1)
}

func (m *ChatServiceMock) ConversationImages(ctx context.Context, conversationID, userID string) ([]string, error) {
	args := m.Called(ctx, conversationID, userID)
	var urls []string
	if val := args.Get(0); val != nil {
		urls = val.([]string)
	}
	return urls, args.Error(1)
}

func (m *ChatServiceMock) StartConversation(ctx context.Context, in services.StartConversationInput) (models.Conversation, error) {
	args := m.Called(ctx, in)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ChatServiceMock) OpenConversationWith(ctx context.Context, userID, otherID string) (services.ConversationDetails, bool, error) {
	args := m.Called(ctx, userID, otherID)
	var details services.ConversationDetails
	if val := args.Get(0); val != nil {
		details = val.(services.ConversationDetails)
	}
	return details, args.Bool(1), args.Error(2)
}

func (m *ChatServiceMock) ListConversations(ctx context.Context, userID string, page, limit int64, unreadOnly bool) (models.Page[models.ConversationSummary], error) {
	args := m.Called(ctx, userID, page, limit, unreadOnly)
	var list models.Page[models.ConversationSummary]
	if val := args.Get(0); val != nil {
		list = val.(models.Page[models.ConversationSummary])
	}
	return list, args.Error(1)
}

func (m *ChatServiceMock) TotalUnread(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ChatServiceMock) IsUserOnline(ctx context.Context, userID string) (services.OnlineStatus, error) {
	args := m.Called(ctx, userID)
	var status services.OnlineStatus
	if val := args.Get(0); val != nil {
		status = val.(services.OnlineStatus)
	}
	return status, args.Error(1)
}

func (m *ChatServiceMock) DeleteChatMessage(ctx context.Context, messageID, senderID string) (models.Message, error) {
	args := m.Called(ctx, messageID, senderID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *ChatServiceMock) DeleteConversation(ctx context.Context, conversationID, userID string, selfDelete bool) error {
	args := m.Called(ctx, conversationID, userID, selfDelete)
	return args.Error(0)
}

func (m *ChatServiceMock) ToggleSecure(ctx context.Context, conversationID, userID string) (models.Conversation, error) {
	args := m.Called(ctx, conversationID, userID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ChatServiceMock) UploadBackground(ctx context.Context, conversationID, userID string, file services.Upload) (string, error) {
	args := m.Called(ctx, conversationID, userID, file)
	return args.String(0), args.Error(1)
}

func (m *ChatServiceMock) SetBackground(ctx context.Context, conversationID, userID string, url *string) error {
	args := m.Called(ctx, conversationID, userID, url)
	return args.Error(0)
}

func (m *ChatServiceMock) GetBackground(ctx context.Context, conversationID, userID string) (*string, error) {
	args := m.Called(ctx, conversationID, userID)
	var url *string
	if val := args.Get(0); val != nil {
		url = val.(*string)
	}
	return url, args.Error(1)
}

func (m *ChatServiceMock) ListStickers(ctx context.Context) ([]models.StickerCategory, error) {
	args := m.Called(ctx)
	var groups []models.StickerCategory
	if val := args.Get(0); val != nil {
		groups = val.([]models.StickerCategory)
	}
	return groups, args.Error(1)
}

func (m *ChatServiceMock) PurgeConversation(ctx context.Context, conversationID, adminID string) error {
	args := m.Called(ctx, conversationID, adminID)
	return args.Error(0)
}

type SystemMessagesMock struct {
	mock.Mock
}

func (m *SystemMessagesMock) SendIndividual(ctx context.Context, receiverID string, content models.SystemContent) (models.SystemMessage, error) {
	args := m.Called(ctx, receiverID, content)
	var msg models.SystemMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.SystemMessage)
	}
	return msg, args.Error(1)
}

func (m *SystemMessagesMock) Broadcast(ctx context.Context, content models.SystemContent) (models.SystemMessage, error) {
	args := m.Called(ctx, content)
	var msg models.SystemMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.SystemMessage)
	}
	return msg, args.Error(1)
}

func (m *SystemMessagesMock) ListForUser(ctx context.Context, userID string, page, limit int64) (models.Page[models.SystemMessage], error) {
	args := m.Called(ctx, userID, page, limit)
	var list models.Page[models.SystemMessage]
	if val := args.Get(0); val != nil {
		list = val.(models.Page[models.SystemMessage])
	}
	return list, args.Error(1)
}

func (m *SystemMessagesMock) UnreadCount(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type StrangerGiftsMock struct {
	mock.Mock
}

func (m *StrangerGiftsMock) ListForUser(ctx context.Context, userID string) ([]models.StrangerGiftView, error) {
	args := m.Called(ctx, userID)
	var views []models.StrangerGiftView
	if val := args.Get(0); val != nil {
		views = val.([]models.StrangerGiftView)
	}
	return views, args.Error(1)
}

func (m *StrangerGiftsMock) UnreadCount(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type MediaCleanerMock struct {
	mock.Mock
}

func (m *MediaCleanerMock) Cleanup(ctx context.Context) (services.CleanupResult, error) {
	args := m.Called(ctx)
	var res services.CleanupResult
	if val := args.Get(0); val != nil {
		res = val.(services.CleanupResult)
	}
	return res, args.Error(1)
}

func (m *MediaCleanerMock) Statistics(ctx context.Context) (services.CleanupStatistics, error) {
	args := m.Called(ctx)
	var stats services.CleanupStatistics
	if val := args.Get(0); val != nil {
		stats = val.(services.CleanupStatistics)
	}
	return stats, args.Error(1)
}

type AuditorMock struct {
	mock.Mock
}

func (m *AuditorMock) Emit(ctx context.Context, level, action, text, requestID string, userID *string, fields map[string]string) {
	m.Called(ctx, level, action, text, requestID, userID, fields)
}

type ChatHooksMock struct {
	mock.Mock
}

func (m *ChatHooksMock) SendGiftMessage(ctx context.Context, senderID, receiverID string, gift models.GiftRef, fromChat bool) error {
	args := m.Called(ctx, senderID, receiverID, gift, fromChat)
	return args.Error(0)
}

func (m *ChatHooksMock) SendInvitationMessage(ctx context.Context, senderID, receiverID string, inv services.Invitation) error {
	args := m.Called(ctx, senderID, receiverID, inv)
	return args.Error(0)
}

func (m *ChatHooksMock) RefreshFriendship(ctx context.Context, a, b string, areFriends bool) error {
	args := m.Called(ctx, a, b, areFriends)
	return args.Error(0)
}
