package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

type SystemMessageService struct {
	messages   repositories.SystemMessageRepository
	dispatcher Dispatcher
	now        func() time.Time
	log        zerolog.Logger
}

func NewSystemMessageService(messages repositories.SystemMessageRepository, dispatcher Dispatcher, log zerolog.Logger) *SystemMessageService {
	return &SystemMessageService{
		messages:   messages,
		dispatcher: dispatcher,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
}

var errEmptySystemMessage = apperrors.BadRequest("System message text is required", "نص رسالة النظام مطلوب")

// SendIndividual stores a system message for one user and delivers it with fallback.
func (s *SystemMessageService) SendIndividual(ctx context.Context, receiverID string, content models.SystemContent) (models.SystemMessage, error) {
	if receiverID == "" {
		return models.SystemMessage{}, apperrors.ErrInvalidID
	}
	msg, err := s.create(ctx, models.SystemMessage{ReceiverID: receiverID, SenderType: models.SystemIndividual, Content: content})
	if err != nil {
		return models.SystemMessage{}, err
	}
	s.dispatcher.DeliverToUser(ctx, models.EventSystemMessageIndividual, models.SystemMessagePayload{
		ID:      msg.ID,
		Content: msg.Content,
	}, receiverID, true)
	return msg, nil
}

// Broadcast stores a system message for everyone, relays it to every live connection
// and issues one segment-wide push.
func (s *SystemMessageService) Broadcast(ctx context.Context, content models.SystemContent) (models.SystemMessage, error) {
	msg, err := s.create(ctx, models.SystemMessage{SenderType: models.SystemBroadcast, Content: content})
	if err != nil {
		return models.SystemMessage{}, err
	}
	s.dispatcher.BroadcastToAll(ctx, models.EventSystemMessageBroadcast, models.SystemMessagePayload{
		ID:      msg.ID,
		Content: msg.Content,
	}, true)
	return msg, nil
}

func (s *SystemMessageService) create(ctx context.Context, msg models.SystemMessage) (models.SystemMessage, error) {
	if strings.TrimSpace(msg.Content.Text) == "" {
		return models.SystemMessage{}, errEmptySystemMessage
	}
	msg.CreatedAt = s.now()
	out, err := s.messages.Create(ctx, msg)
	if err != nil {
		return models.SystemMessage{}, translate("persist system message", err)
	}
	return out, nil
}

// ListForUser pages through the user's individual and broadcast messages. IsRead
// reflects the marker from before this call; the marker then moves to now.
func (s *SystemMessageService) ListForUser(ctx context.Context, userID string, page, limit int64) (models.Page[models.SystemMessage], error) {
	page, limit = models.NormalizePage(page, limit)
	lastRead, err := s.messages.LastRead(ctx, userID)
	if err != nil {
		return models.Page[models.SystemMessage]{}, translate("load read marker", err)
	}
	msgs, total, err := s.messages.ListForUser(ctx, userID, models.Skip(page, limit), limit)
	if err != nil {
		return models.Page[models.SystemMessage]{}, translate("list system messages", err)
	}
	for i := range msgs {
		msgs[i].IsRead = !msgs[i].CreatedAt.After(lastRead)
	}
	if err := s.messages.SetLastRead(ctx, userID, s.now()); err != nil {
		return models.Page[models.SystemMessage]{}, translate("advance read marker", err)
	}
	return models.NewPage(msgs, total, page, limit), nil
}

func (s *SystemMessageService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	lastRead, err := s.messages.LastRead(ctx, userID)
	if err != nil {
		return 0, translate("load read marker", err)
	}
	n, err := s.messages.CountSince(ctx, userID, lastRead)
	if err != nil {
		return 0, translate("count system messages", err)
	}
	return n, nil
}
