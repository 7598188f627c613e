package delivery

import (
	"github.com/google/uuid"

	"messaging-service/internal/models"
)

const (
	defaultLargeIcon = "https://www.sawalive.live/logo.png"
	segmentAll       = "All"
)

// userTemplate builds the offline push for one recipient. enabled reads the
// recipient's notification preference for the event.
type userTemplate struct {
	enabled func(models.Settings) bool
	build   func(userID string, payload any) (models.PushNotification, bool)
}

type broadcastTemplate func(payload any) (models.PushNotification, bool)

var userTemplates = map[string]userTemplate{
	models.EventNewMessage: {
		enabled: func(s models.Settings) bool { return s.FriendsMessages },
		build:   newMessagePush,
	},
	models.EventNewFollower: {
		enabled: func(s models.Settings) bool { return s.AddFollowers },
		build:   newFollowerPush,
	},
	models.EventStrangerGiftReceived: {
		enabled: func(s models.Settings) bool { return s.GiftsFromPossibleFriends },
		build:   strangerGiftPush,
	},
	models.EventSystemMessageIndividual: {
		enabled: func(s models.Settings) bool { return s.SystemMessages },
		build:   systemMessagePush,
	},
}

var broadcastTemplates = map[string]broadcastTemplate{
	models.EventSystemMessageBroadcast: systemBroadcastPush,
	models.EventLiveMessage:            liveMessagePush,
}

func same(s string) models.LocalizedText {
	return models.LocalizedText{En: s, Ar: s}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func personal(template, userID string) models.PushNotification {
	return models.PushNotification{
		ID:        uuid.NewString(),
		Template:  template,
		Audience:  models.PushAudience{ExternalIDs: []string{userID}},
		LargeIcon: defaultLargeIcon,
	}
}

// messagePhrases holds the notification body for non-text messages.
var messagePhrases = map[models.MessageType]models.LocalizedText{
	models.MessageImage:      {En: "ارسل صورة جديدة", Ar: "رسالة صورة جديدة"},
	models.MessageGift:       {En: "ارسل هدية", Ar: "رسالة هدية جديدة"},
	models.MessageSticker:    {En: "ارسل ملصق جديد", Ar: "رسالة ملصق جديدة"},
	models.MessageVoice:      {En: "ارسل رسالة صوتية", Ar: "رسالة صوتية جديدة"},
	models.MessageInvitation: {En: "ارسل دعوة", Ar: "رسالة دعوة جديدة"},
}

func newMessagePush(userID string, payload any) (models.PushNotification, bool) {
	p, ok := asValue[models.NewMessagePayload](payload)
	if !ok {
		return models.PushNotification{}, false
	}
	n := personal(models.EventNewMessage, userID)
	n.Headings = same(p.SenderName)
	n.Contents = same(p.Content.Body)
	n.LargeIcon = orDefault(p.SenderAvatar, defaultLargeIcon)
	if phrase, ok := messagePhrases[p.Type]; ok {
		n.Contents = phrase
	}
	if p.Type == models.MessageGift {
		n.LargeIcon = orDefault(p.Content.Body, defaultLargeIcon)
	}
	n.Data = map[string]any{
		"type":           models.EventNewMessage,
		"senderId":       p.SenderID,
		"conversationId": p.ConversationID,
		"messageType":    string(p.Type),
		"senderName":     p.SenderName,
		"senderAvatar":   p.SenderAvatar,
		"userData": map[string]any{
			"id":     p.UserData.ID,
			"name":   p.UserData.Name,
			"avatar": p.UserData.Avatar,
			"userId": p.UserData.UserID,
		},
	}
	return n, true
}

func newFollowerPush(userID string, payload any) (models.PushNotification, bool) {
	p, ok := asValue[models.FollowerPayload](payload)
	if !ok {
		return models.PushNotification{}, false
	}
	n := personal(models.EventNewFollower, userID)
	n.Headings = same(p.Name)
	n.Contents = same("بدأ بمتابعتك!")
	n.LargeIcon = orDefault(p.Avatar, defaultLargeIcon)
	n.Data = map[string]any{
		"type":       models.EventNewFollower,
		"followerId": p.FollowerID,
	}
	return n, true
}

func strangerGiftPush(userID string, payload any) (models.PushNotification, bool) {
	p, ok := asValue[models.StrangerGiftPayload](payload)
	if !ok {
		return models.PushNotification{}, false
	}
	n := personal(models.EventStrangerGiftReceived, userID)
	n.Headings = same(p.SenderName)
	n.Contents = same("ارسل لك هدية")
	n.LargeIcon = orDefault(p.GiftImage, defaultLargeIcon)
	n.Image = p.GiftImage
	n.Data = map[string]any{
		"type":     models.EventStrangerGiftReceived,
		"senderId": p.SenderID,
		"giftId":   p.GiftID,
		"roomId":   p.RoomID,
		"amount":   p.Amount,
	}
	return n, true
}

func systemMessagePush(userID string, payload any) (models.PushNotification, bool) {
	p, ok := asValue[models.SystemMessagePayload](payload)
	if !ok {
		return models.PushNotification{}, false
	}
	n := personal(models.EventSystemMessageIndividual, userID)
	n.Headings = same("رسالة من النظام")
	n.Contents = models.LocalizedText{En: p.Content.Text, Ar: orDefault(p.Content.TextAr, p.Content.Text)}
	n.Image = p.Content.ImageURL
	n.Data = map[string]any{"type": models.EventSystemMessageIndividual}
	return n, true
}

func broadcast(template string, contents models.LocalizedText, image string) models.PushNotification {
	return models.PushNotification{
		ID:        uuid.NewString(),
		Template:  template,
		Audience:  models.PushAudience{Segments: []string{segmentAll}},
		Headings:  same("رسالة عامة"),
		Contents:  contents,
		LargeIcon: defaultLargeIcon,
		Image:     image,
		Data:      map[string]any{"type": template},
	}
}

func systemBroadcastPush(payload any) (models.PushNotification, bool) {
	p, ok := asValue[models.SystemMessagePayload](payload)
	if !ok {
		return models.PushNotification{}, false
	}
	contents := models.LocalizedText{En: p.Content.Text, Ar: orDefault(p.Content.TextAr, p.Content.Text)}
	return broadcast(models.EventSystemMessageBroadcast, contents, p.Content.ImageURL), true
}

func liveMessagePush(payload any) (models.PushNotification, bool) {
	p, ok := asValue[models.LiveMessagePayload](payload)
	if !ok {
		return models.PushNotification{}, false
	}
	n := broadcast(models.EventLiveMessage, same(p.Message), p.Image)
	n.Data["roomId"] = p.RoomID
	n.Data["roomName"] = p.RoomName
	n.Data["roomType"] = p.RoomType
	n.Data["isPrivate"] = p.IsPrivate
	return n, true
}

// asValue accepts a payload passed either by value or by pointer.
func asValue[T any](payload any) (T, bool) {
	switch v := payload.(type) {
	case T:
		return v, true
	case *T:
		if v != nil {
			return *v, true
		}
	}
	var zero T
	return zero, false
}
