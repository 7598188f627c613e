package models

import "time"

type SystemSenderType string

const (
	SystemIndividual SystemSenderType = "individual"
	SystemBroadcast  SystemSenderType = "broadcast"
)

type SystemContent struct {
	Text     string `json:"text"`
	TextAr   string `json:"textAr,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// SystemMessage is a message from the platform, addressed to one user or to everyone.
type SystemMessage struct {
	ID         string           `json:"id"`
	ReceiverID string           `json:"receiverId,omitempty"`
	SenderType SystemSenderType `json:"senderType"`
	Content    SystemContent    `json:"content"`
	IsRead     bool             `json:"isRead"`
	CreatedAt  time.Time        `json:"createdAt"`
}
