package services

import (
	"context"
	"io"

	"messaging-service/internal/delivery"
	"messaging-service/internal/models"
)

// UserDirectory resolves display data. Missing users come back as placeholders.
type UserDirectory interface {
	GetDisplayInfo(ctx context.Context, userID string) (models.UserInfo, error)
	GetDisplayInfos(ctx context.Context, userIDs []string) (map[string]models.UserInfo, error)
	IsPro(ctx context.Context, userID string) (bool, error)
	VIPLevel(ctx context.Context, userID string) (int, error)
}

type RelationshipGate interface {
	IsFriend(ctx context.Context, a, b string) (bool, error)
	IsBlocked(ctx context.Context, a, b string) (bool, error)
}

// Wallet debits credits. Implementations return apperrors.ErrInsufficientCredits when
// the balance does not cover the amount.
type Wallet interface {
	Deduct(ctx context.Context, userID string, amount int64, reason, reasonAr string) (int64, error)
}

type Presence interface {
	IsOnline(ctx context.Context, userID string) (bool, error)
	IsUserActivelyViewing(ctx context.Context, userID, conversationID string) (bool, error)
	OnlineUsers(ctx context.Context, userIDs []string) (map[string]bool, error)
}

type Dispatcher interface {
	DeliverToUser(ctx context.Context, event string, payload any, userID string, fallback bool) delivery.Result
	DeliverToUsers(ctx context.Context, event string, payload any, userIDs []string, fallback bool) []delivery.Result
	BroadcastToAll(ctx context.Context, event string, payload any, fallback bool) delivery.Result
}

// MediaStore keeps uploaded chat media and returns public URLs.
type MediaStore interface {
	Upload(ctx context.Context, folder, filename, contentType string, r io.Reader, size int64) (string, error)
	RemoveURL(ctx context.Context, rawURL string) error
}

// TextFilter screens message text before it is stored.
type TextFilter interface {
	ContainsForbidden(ctx context.Context, text string) bool
}

// GiftCatalog resolves gift details for ledger listings.
type GiftCatalog interface {
	GetMany(ctx context.Context, ids []string) (map[string]models.Gift, error)
}

// GiftLedger records gifts between users that are not friends.
type GiftLedger interface {
	Record(ctx context.Context, receiverID, senderID string, gift models.GiftRef) (models.StrangerGift, error)
}

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}
