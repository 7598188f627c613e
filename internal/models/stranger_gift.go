package models

import "time"

// GiftRef describes a gift as handed over by the gifting feature.
type GiftRef struct {
	GiftID       string `json:"giftId"`
	Body         string `json:"body,omitempty"`
	Amount       int64  `json:"amount"`
	Image        string `json:"giftImage,omitempty"`
	SenderName   string `json:"senderName,omitempty"`
	SenderAvatar string `json:"senderAvatar,omitempty"`
	RoomID       string `json:"roomId,omitempty"`
}

// StrangerGift accumulates gifts one non-friend sent to a receiver. There is at most one
// entry per (receiver, sender, gift).
type StrangerGift struct {
	ID         string    `json:"id"`
	ReceiverID string    `json:"receiverId"`
	SenderID   string    `json:"senderId"`
	GiftID     string    `json:"giftId"`
	GiftImage  string    `json:"giftImage,omitempty"`
	Total      int64     `json:"total"`
	IsRead     bool      `json:"isRead"`
	Date       time.Time `json:"date"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// StrangerGiftView is a ledger entry joined with the sender's display info and the
// catalog entry of the gift. Gift is nil when the gift left the catalog.
type StrangerGiftView struct {
	User      UserInfo  `json:"user"`
	GiftID    string    `json:"giftId"`
	Gift      *Gift     `json:"gift,omitempty"`
	GiftImage string    `json:"giftImage,omitempty"`
	Total     int64     `json:"total"`
	IsRead    bool      `json:"isRead"`
	UpdatedAt time.Time `json:"updatedAt"`
}
