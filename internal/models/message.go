package models

import (
	"strings"
	"time"
)

type MessageType string

const (
	MessageText       MessageType = "text"
	MessageImage      MessageType = "image"
	MessageVoice      MessageType = "voice"
	MessageSticker    MessageType = "emoji"
	MessageGift       MessageType = "gift"
	MessageInvitation MessageType = "invitation"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageVoice, MessageSticker, MessageGift, MessageInvitation:
		return true
	}
	return false
}

// IsMedia reports whether the message body references an uploaded object.
func (t MessageType) IsMedia() bool {
	return t == MessageImage || t == MessageVoice
}

type InvitationType string

const (
	InvitationRoom   InvitationType = "room"
	InvitationGroup  InvitationType = "group"
	InvitationAgency InvitationType = "agency"
)

// Content is the variant payload of a message. Which fields are meaningful depends on
// the message type.
type Content struct {
	Body           string         `json:"body,omitempty"`
	BodyAr         string         `json:"bodyAr,omitempty"`
	Duration       float64        `json:"duration,omitempty"`
	GiftID         string         `json:"giftId,omitempty"`
	Amount         int64          `json:"amount,omitempty"`
	InvitationType InvitationType `json:"invitationType,omitempty"`
	InvitationID   string         `json:"invitationId,omitempty"`
	OriginalType   MessageType    `json:"originalType,omitempty"`
}

var (
	// DeletedContent replaces the content of a message its sender deleted.
	DeletedContent = Content{Body: "This message was deleted", BodyAr: "تم حذف هذه الرسالة"}
	// ExpiredContent replaces media messages past the retention window.
	ExpiredContent = Content{Body: "رساله محذوفه منذ اكتر من 30 يوم", BodyAr: "رساله محذوفه منذ اكتر من 30 يوم"}
)

// ValidFor checks the content carries what the message type requires.
func (c Content) ValidFor(t MessageType) bool {
	switch t {
	case MessageText, MessageImage, MessageGift, MessageSticker:
		return strings.TrimSpace(c.Body) != ""
	case MessageVoice:
		return strings.TrimSpace(c.Body) != "" && c.Duration > 0
	case MessageInvitation:
		return c.InvitationType != "" && c.InvitationID != ""
	}
	return false
}

// Message is one entry of a conversation's log.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	SenderID       string      `json:"senderId"`
	ReceiverID     string      `json:"receiverId"`
	Type           MessageType `json:"messageType"`
	Content        Content     `json:"content"`
	IsRead         bool        `json:"isRead"`
	IsDeleted      bool        `json:"isDeleted"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// PreviewText is the short text used in push notifications.
func (m Message) PreviewText() string {
	return m.Content.Body
}

// DeletedPlaceholderMessage stands in for a last message that no longer exists.
func DeletedPlaceholderMessage(conversationID, senderID, receiverID string, at time.Time) *Message {
	return &Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Type:           MessageText,
		Content:        DeletedContent,
		IsRead:         true,
		IsDeleted:      true,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}
