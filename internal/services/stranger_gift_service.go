package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"messaging-service/internal/events"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

const strangerGiftListLimit = 100

// StrangerGiftService keeps the ledger of gifts from users the receiver is not friends
// with and notifies the receiver.
type StrangerGiftService struct {
	gifts      repositories.StrangerGiftRepository
	catalog    GiftCatalog
	users      UserDirectory
	dispatcher Dispatcher
	events     events.Publisher
	now        func() time.Time
	log        zerolog.Logger
}

func NewStrangerGiftService(gifts repositories.StrangerGiftRepository, catalog GiftCatalog, users UserDirectory, dispatcher Dispatcher, pub events.Publisher, log zerolog.Logger) *StrangerGiftService {
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	return &StrangerGiftService{
		gifts:      gifts,
		catalog:    catalog,
		users:      users,
		dispatcher: dispatcher,
		events:     pub,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
}

// Record accumulates the gift on the (receiver, sender, gift) entry and tells the
// receiver, with push fallback.
func (s *StrangerGiftService) Record(ctx context.Context, receiverID, senderID string, gift models.GiftRef) (models.StrangerGift, error) {
	if gift.Amount <= 0 {
		gift.Amount = 1
	}
	entry, err := s.gifts.Record(ctx, receiverID, senderID, gift, s.now())
	if err != nil {
		return models.StrangerGift{}, translate("record stranger gift", err)
	}

	if gift.SenderName == "" {
		sender, err := s.users.GetDisplayInfo(ctx, senderID)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", senderID).Msg("display info lookup failed")
			sender = models.DeletedUserPlaceholder(senderID)
		}
		gift.SenderName, gift.SenderAvatar = sender.Name, sender.Avatar
	}

	s.dispatcher.DeliverToUser(ctx, models.EventStrangerGiftReceived, models.StrangerGiftPayload{
		GiftID:       gift.GiftID,
		GiftImage:    gift.Image,
		SenderID:     senderID,
		RoomID:       gift.RoomID,
		Amount:       gift.Amount,
		SenderName:   gift.SenderName,
		SenderAvatar: gift.SenderAvatar,
	}, receiverID, true)
	s.events.Publish(ctx, events.New(events.StrangerGiftRecorded, receiverID, senderID, map[string]any{
		"receiverId": receiverID,
		"giftId":     gift.GiftID,
		"amount":     gift.Amount,
		"total":      entry.Total,
	}))
	return entry, nil
}

// ListForUser returns the receiver's most recent entries and marks all of them read.
func (s *StrangerGiftService) ListForUser(ctx context.Context, userID string) ([]models.StrangerGiftView, error) {
	entries, err := s.gifts.ListForReceiver(ctx, userID, strangerGiftListLimit)
	if err != nil {
		return nil, translate("list stranger gifts", err)
	}

	senderIDs := make([]string, 0, len(entries))
	giftIDs := make([]string, 0, len(entries))
	for _, e := range entries {
		senderIDs = append(senderIDs, e.SenderID)
		giftIDs = append(giftIDs, e.GiftID)
	}
	senders, err := s.users.GetDisplayInfos(ctx, senderIDs)
	if err != nil {
		return nil, translate("load senders", err)
	}
	gifts := s.giftDetails(ctx, giftIDs)

	views := make([]models.StrangerGiftView, 0, len(entries))
	for _, e := range entries {
		sender, ok := senders[e.SenderID]
		if !ok {
			sender = models.DeletedUserPlaceholder(e.SenderID)
		}
		views = append(views, models.StrangerGiftView{
			User:      sender,
			GiftID:    e.GiftID,
			Gift:      gifts[e.GiftID],
			GiftImage: e.GiftImage,
			Total:     e.Total,
			IsRead:    e.IsRead,
			UpdatedAt: e.UpdatedAt,
		})
	}

	if _, err := s.gifts.MarkAllRead(ctx, userID); err != nil {
		return nil, translate("mark stranger gifts read", err)
	}
	return views, nil
}

// giftDetails is best effort. Entries keep their stored image when the catalog is
// down or the gift was removed.
func (s *StrangerGiftService) giftDetails(ctx context.Context, ids []string) map[string]*models.Gift {
	out := map[string]*models.Gift{}
	if s.catalog == nil || len(ids) == 0 {
		return out
	}
	found, err := s.catalog.GetMany(ctx, ids)
	if err != nil {
		s.log.Warn().Err(err).Msg("gift catalog lookup failed")
		return out
	}
	for id, g := range found {
		g := g
		out[id] = &g
	}
	return out
}

func (s *StrangerGiftService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	n, err := s.gifts.CountUnread(ctx, userID)
	if err != nil {
		return 0, translate("count stranger gifts", err)
	}
	return n, nil
}
