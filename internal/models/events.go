package models

// Event names are part of the client wire contract.
const (
	EventNewMessage                = "newMessage"
	EventMessageDeleted            = "messageDeleted"
	EventConversationSecureToggled = "conversationSecureToggled"
	EventStrangerGiftReceived      = "strangerGiftReceived"
	EventSystemMessageIndividual   = "SystemMessage-individual"
	EventSystemMessageBroadcast    = "SystemMessage-Broadcast"
	EventUserBalanceChange         = "userBalanceChange"
	EventNewFollower               = "newFollower"
	EventLiveMessage               = "liveMessage"

	EventJoinConversation   = "joinConversation"
	EventJoinedConversation = "joinedConversation"
	EventLeaveConversation  = "leaveConversation"
	EventLeftConversation   = "leftConversation"
)

// Frame is the envelope written to and read from websocket connections.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// NewMessagePayload is the data of a newMessage event.
type NewMessagePayload struct {
	Message
	SenderName   string               `json:"senderName"`
	SenderAvatar string               `json:"senderAvatar"`
	UserData     UserInfo             `json:"userData"`
	Conversation ConversationSnapshot `json:"conversation"`
}

type MessageDeletedPayload struct {
	MessageID      string  `json:"messageId"`
	ConversationID string  `json:"conversationId"`
	SenderID       string  `json:"senderId"`
	Content        Content `json:"content"`
}

type SecureToggledPayload struct {
	ConversationID string `json:"conversationId"`
	IsSecure       bool   `json:"isSecure"`
}

type StrangerGiftPayload struct {
	GiftID       string `json:"giftId"`
	GiftImage    string `json:"giftImage,omitempty"`
	SenderID     string `json:"senderId"`
	RoomID       string `json:"roomId,omitempty"`
	Amount       int64  `json:"amount"`
	SenderName   string `json:"senderName"`
	SenderAvatar string `json:"senderAvatar"`
}

type SystemMessagePayload struct {
	ID      string        `json:"id"`
	Content SystemContent `json:"content"`
}

type BalanceChangePayload struct {
	Amount        int64  `json:"amount"`
	NewBalance    int64  `json:"newBalance"`
	Type          string `json:"type"`
	Description   string `json:"description"`
	DescriptionAr string `json:"descriptionAr"`
}

type FollowerPayload struct {
	FollowerID string `json:"followerId"`
	Name       string `json:"name"`
	Avatar     string `json:"avatar"`
}

type LiveMessagePayload struct {
	Message   string `json:"message"`
	RoomID    string `json:"room"`
	RoomName  string `json:"roomName"`
	Image     string `json:"image,omitempty"`
	RoomType  string `json:"roomType,omitempty"`
	IsPrivate bool   `json:"isPrivate"`
}
