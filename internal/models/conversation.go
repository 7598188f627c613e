package models

import "time"

// ParticipantState is the per-user slice of a conversation. Every field is owned by
// exactly one participant and is updated independently of the other participant's slot.
type ParticipantState struct {
	UserID      string     `json:"userId"`
	UnreadCount int64      `json:"unreadCount"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
	Hidden      bool       `json:"hidden"`
	Background  *string    `json:"background"`
}

// Conversation is a private conversation between exactly two users.
type Conversation struct {
	ID              string              `json:"id"`
	Members         [2]ParticipantState `json:"members"`
	LastMessageID   string              `json:"lastMessageId,omitempty"`
	LastMessageAt   time.Time           `json:"lastMessageAt"`
	AreFriends      bool                `json:"areFriends"`
	IsSecure        bool                `json:"isSecure"`
	SecureEnabledBy string              `json:"secureEnabledBy,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// NewConversation builds a conversation for the pair with zeroed per-user state.
func NewConversation(senderID, receiverID string) Conversation {
	return Conversation{
		Members: [2]ParticipantState{
			{UserID: senderID},
			{UserID: receiverID},
		},
	}
}

// Participants returns both user ids in storage order.
func (c Conversation) Participants() [2]string {
	return [2]string{c.Members[0].UserID, c.Members[1].UserID}
}

// IndexOf returns the slot of userID, or -1 when the user is not a participant.
func (c Conversation) IndexOf(userID string) int {
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			return i
		}
	}
	return -1
}

func (c Conversation) HasParticipant(userID string) bool {
	return userID != "" && c.IndexOf(userID) >= 0
}

// Other returns the participant that is not userID.
func (c Conversation) Other(userID string) string {
	if c.Members[0].UserID == userID {
		return c.Members[1].UserID
	}
	return c.Members[0].UserID
}

// StateOf returns a copy of the participant's state.
func (c Conversation) StateOf(userID string) (ParticipantState, bool) {
	i := c.IndexOf(userID)
	if i < 0 {
		return ParticipantState{}, false
	}
	return c.Members[i], true
}

func (c Conversation) UnreadFor(userID string) int64 {
	s, _ := c.StateOf(userID)
	return s.UnreadCount
}

func (c Conversation) HiddenFor(userID string) bool {
	s, _ := c.StateOf(userID)
	return s.Hidden
}

// DeletedAtFor returns the user's soft-delete cutoff, or the Unix epoch when unset.
func (c Conversation) DeletedAtFor(userID string) time.Time {
	s, ok := c.StateOf(userID)
	if !ok || s.DeletedAt == nil {
		return time.Unix(0, 0).UTC()
	}
	return *s.DeletedAt
}

func (c Conversation) BackgroundFor(userID string) *string {
	s, _ := c.StateOf(userID)
	return s.Background
}

// ConversationSnapshot is the receiver-facing view embedded in newMessage events.
type ConversationSnapshot struct {
	ID          string    `json:"id"`
	LastMessage *Message  `json:"lastMessage"`
	User        UserInfo  `json:"user"`
	IsSecure    bool      `json:"isSecure"`
	UnreadCount int64     `json:"unreadCount"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	ConversationID string   `json:"conversationId"`
	IsSecure       bool     `json:"isSecure"`
	LastMessage    *Message `json:"lastMessage"`
	User           UserInfo `json:"user"`
	UnreadCount    int64    `json:"unreadCount"`
}
