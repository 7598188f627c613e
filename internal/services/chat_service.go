package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/events"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

const (
	DefaultStrangerMessageCost = 300

	strangerReason   = "message sent to a non friend"
	strangerReasonAr = "رسالة إلى شخص غير صديق"

	secureToggleAttempts = 3
)

// ChatDeps wires the collaborators of ChatService.
type ChatDeps struct {
	Conversations repositories.ConversationRepository
	Messages      repositories.MessageRepository
	Stickers      repositories.StickerRepository
	Users         UserDirectory
	Relations     RelationshipGate
	Wallet        Wallet
	Presence      Presence
	Dispatcher    Dispatcher
	Ledger        GiftLedger
	Media         MediaStore
	Events        events.Publisher
	// Filter is optional; without it text is not screened.
	Filter TextFilter
}

// ChatService owns conversations and their messages. Every operation that reads or
// writes a conversation on behalf of a user goes through CheckAccessForConversation.
type ChatService struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	stickers      repositories.StickerRepository
	users         UserDirectory
	relations     RelationshipGate
	wallet        Wallet
	presence      Presence
	dispatcher    Dispatcher
	ledger        GiftLedger
	media         MediaStore
	events        events.Publisher
	filter        TextFilter

	strangerCost int64
	now          func() time.Time
	log          zerolog.Logger
	tracer       trace.Tracer
}

func NewChatService(deps ChatDeps, strangerCost int64, log zerolog.Logger) *ChatService {
	if strangerCost <= 0 {
		strangerCost = DefaultStrangerMessageCost
	}
	pub := deps.Events
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	return &ChatService{
		conversations: deps.Conversations,
		messages:      deps.Messages,
		stickers:      deps.Stickers,
		users:         deps.Users,
		relations:     deps.Relations,
		wallet:        deps.Wallet,
		presence:      deps.Presence,
		dispatcher:    deps.Dispatcher,
		ledger:        deps.Ledger,
		media:         deps.Media,
		events:        pub,
		filter:        deps.Filter,
		strangerCost:  strangerCost,
		now:           func() time.Time { return time.Now().UTC() },
		log:           log,
		tracer:        observability.Tracer("chat"),
	}
}

// OutgoingMessage is a message about to be sent in an existing conversation. Free skips
// the stranger charge.
type OutgoingMessage struct {
	ConversationID string
	SenderID       string
	ReceiverID     string
	Type           models.MessageType
	Content        models.Content
	Free           bool
}

// CheckAccessForConversation returns the conversation if userID takes part in it.
func (s *ChatService) CheckAccessForConversation(ctx context.Context, conversationID, userID string) (models.Conversation, error) {
	conv, err := s.conversations.Get(ctx, conversationID)
	if errors.Is(err, repositories.ErrInvalidID) {
		return models.Conversation{}, apperrors.ErrConversationNotFound
	}
	if err != nil {
		return models.Conversation{}, translate("load conversation", err)
	}
	if !conv.HasParticipant(userID) {
		return models.Conversation{}, apperrors.ErrAccessDenied
	}
	return conv, nil
}

// CheckAccess is CheckAccessForConversation for callers that only need the verdict.
func (s *ChatService) CheckAccess(ctx context.Context, conversationID, userID string) error {
	_, err := s.CheckAccessForConversation(ctx, conversationID, userID)
	return err
}

func validateContent(t models.MessageType, c models.Content) error {
	if !t.Valid() {
		return apperrors.ErrInvalidMessageType
	}
	if c.ValidFor(t) {
		return nil
	}
	if t == models.MessageVoice {
		return apperrors.ErrDurationRequired
	}
	return apperrors.ErrEmptyMessage
}

// SendMessage persists a message and then notifies the receiver. A rejected send leaves
// no message behind and does not touch the conversation.
func (s *ChatService) SendMessage(ctx context.Context, in OutgoingMessage) (models.Message, error) {
	ctx, span := s.tracer.Start(ctx, "chat.send_message", trace.WithAttributes(
		attribute.String("conversation_id", in.ConversationID),
		attribute.String("message_type", string(in.Type)),
	))
	defer span.End()

	if err := validateContent(in.Type, in.Content); err != nil {
		return models.Message{}, err
	}
	conv, err := s.CheckAccessForConversation(ctx, in.ConversationID, in.SenderID)
	if err != nil {
		return models.Message{}, err
	}
	if in.ReceiverID == "" {
		in.ReceiverID = conv.Other(in.SenderID)
	}
	if !conv.HasParticipant(in.ReceiverID) || in.ReceiverID == in.SenderID {
		return models.Message{}, apperrors.ErrNotParticipant
	}

	if err := s.gate(ctx, in.SenderID, in.ReceiverID, in.Free); err != nil {
		return models.Message{}, err
	}

	viewing, err := s.presence.IsUserActivelyViewing(ctx, in.ReceiverID, in.ConversationID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", in.ReceiverID).Msg("viewing check failed; counting message as unread")
		viewing = false
	}

	msg, err := s.messages.Create(ctx, models.Message{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		ReceiverID:     in.ReceiverID,
		Type:           in.Type,
		Content:        in.Content,
		IsRead:         viewing,
		CreatedAt:      s.now(),
	})
	if err != nil {
		return models.Message{}, translate("persist message", err)
	}

	conv, err = s.conversations.RecordMessage(ctx, in.ConversationID, msg.ID, in.ReceiverID, msg.CreatedAt, !viewing)
	if err != nil {
		return models.Message{}, translate("record message on conversation", err)
	}

	observability.IncMessageSent(string(msg.Type))
	s.notifyNewMessage(ctx, conv, msg)
	s.events.Publish(ctx, events.New(events.MessageSent, conv.ID, msg.SenderID, map[string]any{
		"conversationId": conv.ID,
		"messageId":      msg.ID,
		"receiverId":     msg.ReceiverID,
		"messageType":    string(msg.Type),
		"isRead":         msg.IsRead,
	}))
	return msg, nil
}

// gate applies the relationship rules for a send: blocks reject, strangers pay.
func (s *ChatService) gate(ctx context.Context, senderID, receiverID string, free bool) error {
	blocked, err := s.relations.IsBlocked(ctx, senderID, receiverID)
	if err != nil {
		return translate("check block", err)
	}
	if blocked {
		return apperrors.ErrBlocked
	}
	if free {
		return nil
	}
	friends, err := s.relations.IsFriend(ctx, senderID, receiverID)
	if err != nil {
		return translate("check friendship", err)
	}
	if friends {
		return nil
	}
	if _, err := s.wallet.Deduct(ctx, senderID, s.strangerCost, strangerReason, strangerReasonAr); err != nil {
		return translate("charge stranger message", err)
	}
	return nil
}

func (s *ChatService) displayInfo(ctx context.Context, userID string) models.UserInfo {
	info, err := s.users.GetDisplayInfo(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("display info lookup failed")
		return models.DeletedUserPlaceholder(userID)
	}
	return info
}

func (s *ChatService) notifyNewMessage(ctx context.Context, conv models.Conversation, msg models.Message) {
	sender := s.displayInfo(ctx, msg.SenderID)
	payload := models.NewMessagePayload{
		Message:      msg,
		SenderName:   sender.Name,
		SenderAvatar: sender.Avatar,
		UserData:     sender,
		Conversation: models.ConversationSnapshot{
			ID:          conv.ID,
			LastMessage: &msg,
			User:        sender,
			IsSecure:    conv.IsSecure,
			UnreadCount: conv.UnreadFor(msg.ReceiverID),
			UpdatedAt:   conv.UpdatedAt,
		},
	}
	s.dispatcher.DeliverToUser(ctx, models.EventNewMessage, payload, msg.ReceiverID, true)
}

// FetchMessages returns the page of messages visible to userID, newest first, and marks
// every unread message addressed to userID in the conversation as read.
func (s *ChatService) FetchMessages(ctx context.Context, conversationID, userID string, page, limit int64) (models.Page[models.Message], error) {
	conv, err := s.CheckAccessForConversation(ctx, conversationID, userID)
	if err != nil {
		return models.Page[models.Message]{}, err
	}
	return s.fetchVisible(ctx, conv, userID, page, limit)
}

func (s *ChatService) fetchVisible(ctx context.Context, conv models.Conversation, userID string, page, limit int64) (models.Page[models.Message], error) {
	page, limit = models.NormalizePage(page, limit)
	msgs, total, err := s.messages.ListVisible(ctx, conv.ID, conv.DeletedAtFor(userID), models.Skip(page, limit), limit)
	if err != nil {
		return models.Page[models.Message]{}, translate("list messages", err)
	}
	if err := s.MarkRead(ctx, conv.ID, userID); err != nil {
		return models.Page[models.Message]{}, err
	}
	return models.NewPage(msgs, total, page, limit), nil
}

// MarkRead marks the whole conversation read for userID, not only a fetched page.
func (s *ChatService) MarkRead(ctx context.Context, conversationID, userID string) error {
	if _, err := s.messages.MarkRead(ctx, conversationID, userID); err != nil {
		return translate("mark messages read", err)
	}
	if err := s.conversations.ResetUnread(ctx, conversationID, userID); err != nil {
		return translate("reset unread count", err)
	}
	return nil
}

// FirstMessage optionally opens a conversation with a message.
type FirstMessage struct {
	Type    models.MessageType
	Content models.Content
}

type StartConversationInput struct {
	SenderID   string
	ReceiverID string
	First      *FirstMessage
	// AreFriends skips the friendship lookup when the caller already knows the answer.
	AreFriends *bool
}

// StartConversation creates the conversation for a pair that has none yet.
func (s *ChatService) StartConversation(ctx context.Context, in StartConversationInput) (models.Conversation, error) {
	if in.SenderID == in.ReceiverID {
		return models.Conversation{}, apperrors.ErrSelfConversation
	}
	if in.First != nil {
		if err := validateContent(in.First.Type, in.First.Content); err != nil {
			return models.Conversation{}, err
		}
	}

	_, err := s.conversations.FindByPair(ctx, in.SenderID, in.ReceiverID)
	switch {
	case err == nil:
		return models.Conversation{}, apperrors.ErrConversationExists
	case !errors.Is(err, repositories.ErrConversationNotFound):
		return models.Conversation{}, translate("find conversation", err)
	}

	friends := false
	if in.AreFriends != nil {
		friends = *in.AreFriends
	} else if friends, err = s.relations.IsFriend(ctx, in.SenderID, in.ReceiverID); err != nil {
		return models.Conversation{}, translate("check friendship", err)
	}

	conv := models.NewConversation(in.SenderID, in.ReceiverID)
	conv.AreFriends = friends
	conv.CreatedAt = s.now()
	conv, err = s.conversations.Create(ctx, conv)
	if err != nil {
		return models.Conversation{}, translate("create conversation", err)
	}
	s.events.Publish(ctx, events.New(events.ConversationStarted, conv.ID, in.SenderID, map[string]any{
		"conversationId": conv.ID,
		"receiverId":     in.ReceiverID,
		"areFriends":     friends,
	}))

	if in.First == nil {
		return conv, nil
	}

	msg, err := s.messages.Create(ctx, models.Message{
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		ReceiverID:     in.ReceiverID,
		Type:           in.First.Type,
		Content:        in.First.Content,
		CreatedAt:      s.now(),
	})
	if err != nil {
		return models.Conversation{}, translate("persist first message", err)
	}
	conv, err = s.conversations.RecordMessage(ctx, conv.ID, msg.ID, in.ReceiverID, msg.CreatedAt, true)
	if err != nil {
		return models.Conversation{}, translate("record first message", err)
	}
	observability.IncMessageSent(string(msg.Type))
	s.notifyNewMessage(ctx, conv, msg)
	return conv, nil
}

// DeleteConversation hides the conversation from userID and drops everything before now
// from their view. Without selfDelete the other participant gets the same treatment.
func (s *ChatService) DeleteConversation(ctx context.Context, conversationID, userID string, selfDelete bool) error {
	conv, err := s.CheckAccessForConversation(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	targets := []string{userID}
	if !selfDelete {
		targets = append(targets, conv.Other(userID))
	}
	if err := s.conversations.SoftDelete(ctx, conv.ID, targets, s.now()); err != nil {
		return translate("delete conversation", err)
	}
	s.events.Publish(ctx, events.New(events.ConversationDeleted, conv.ID, userID, map[string]any{
		"conversationId": conv.ID,
		"selfDelete":     selfDelete,
	}))
	return nil
}

// ToggleSecure flips secure mode. Once enabled, only the enabling user can disable it.
func (s *ChatService) ToggleSecure(ctx context.Context, conversationID, userID string) (models.Conversation, error) {
	for attempt := 0; ; attempt++ {
		conv, err := s.CheckAccessForConversation(ctx, conversationID, userID)
		if err != nil {
			return models.Conversation{}, err
		}
		if conv.IsSecure && conv.SecureEnabledBy != "" && conv.SecureEnabledBy != userID {
			return models.Conversation{}, apperrors.ErrSecureLocked
		}

		next := !conv.IsSecure
		enabledBy := ""
		if next {
			enabledBy = userID
		}
		updated, err := s.conversations.SetSecure(ctx, conv.ID, conv.IsSecure, next, enabledBy)
		if errors.Is(err, repositories.ErrStaleWrite) && attempt+1 < secureToggleAttempts {
			continue
		}
		if err != nil {
			return models.Conversation{}, translate("toggle secure mode", err)
		}

		s.dispatcher.DeliverToUser(ctx, models.EventConversationSecureToggled, models.SecureToggledPayload{
			ConversationID: updated.ID,
			IsSecure:       updated.IsSecure,
		}, updated.Other(userID), false)
		s.events.Publish(ctx, events.New(events.ConversationSecure, updated.ID, userID, map[string]any{
			"conversationId": updated.ID,
			"isSecure":       updated.IsSecure,
		}))
		return updated, nil
	}
}

// DeleteChatMessage irreversibly replaces a message's content with the deleted
// placeholder. Only the sender may do this.
func (s *ChatService) DeleteChatMessage(ctx context.Context, messageID, senderID string) (models.Message, error) {
	msg, err := s.messages.Get(ctx, messageID)
	if errors.Is(err, repositories.ErrInvalidID) {
		return models.Message{}, apperrors.ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, translate("load message", err)
	}
	if msg.SenderID != senderID {
		return models.Message{}, apperrors.ErrAccessDenied
	}

	msg, err = s.messages.ReplaceContent(ctx, msg.ID, models.MessageText, models.DeletedContent, true, s.now())
	if err != nil {
		return models.Message{}, translate("delete message", err)
	}

	s.dispatcher.DeliverToUser(ctx, models.EventMessageDeleted, models.MessageDeletedPayload{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       senderID,
		Content:        models.DeletedContent,
	}, msg.ReceiverID, false)
	s.events.Publish(ctx, events.New(events.MessageDeleted, msg.ConversationID, senderID, map[string]any{
		"conversationId": msg.ConversationID,
		"messageId":      msg.ID,
	}))
	return msg, nil
}

// RefreshFriendship updates the cached friend flag after a relationship change.
func (s *ChatService) RefreshFriendship(ctx context.Context, a, b string, areFriends bool) error {
	if err := s.conversations.SetFriendship(ctx, a, b, areFriends); err != nil {
		return translate("refresh friendship", err)
	}
	return nil
}

// PurgeConversation hard deletes a conversation and its messages.
func (s *ChatService) PurgeConversation(ctx context.Context, conversationID, adminID string) error {
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return translate("load conversation", err)
	}
	removed, err := s.messages.DeleteByConversation(ctx, conv.ID)
	if err != nil {
		return translate("purge messages", err)
	}
	if err := s.conversations.Delete(ctx, conv.ID); err != nil {
		return translate("purge conversation", err)
	}
	s.log.Info().Str("conversation_id", conv.ID).Int64("messages", removed).Str("admin_id", adminID).Msg("conversation purged")
	s.events.Publish(ctx, events.New(events.ConversationPurged, conv.ID, adminID, map[string]any{
		"conversationId":  conv.ID,
		"messagesRemoved": removed,
	}))
	return nil
}
