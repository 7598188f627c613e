package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
)

func TestNewMessagePushPhrases(t *testing.T) {
	cases := []struct {
		kind      models.MessageType
		body      string
		wantEn    string
		wantAr    string
		wantLarge string
	}{
		{models.MessageText, "hello", "hello", "hello", "https://cdn/a.png"},
		{models.MessageImage, "https://cdn/i.jpg", "ارسل صورة جديدة", "رسالة صورة جديدة", "https://cdn/a.png"},
		{models.MessageGift, "https://cdn/rose.png", "ارسل هدية", "رسالة هدية جديدة", "https://cdn/rose.png"},
		{models.MessageSticker, "https://cdn/s.webp", "ارسل ملصق جديد", "رسالة ملصق جديدة", "https://cdn/a.png"},
		{models.MessageVoice, "https://cdn/v.ogg", "ارسل رسالة صوتية", "رسالة صوتية جديدة", "https://cdn/a.png"},
		{models.MessageInvitation, "", "ارسل دعوة", "رسالة دعوة جديدة", "https://cdn/a.png"},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			payload := models.NewMessagePayload{
				Message:      models.Message{Type: tc.kind, Content: models.Content{Body: tc.body}},
				SenderName:   "Alice",
				SenderAvatar: "https://cdn/a.png",
			}
			n, ok := newMessagePush("bob", payload)
			require.True(t, ok)
			assert.Equal(t, tc.wantEn, n.Contents.En)
			assert.Equal(t, tc.wantAr, n.Contents.Ar)
			assert.Equal(t, tc.wantLarge, n.LargeIcon)
		})
	}
}

func TestTemplatesRejectWrongPayload(t *testing.T) {
	_, ok := newMessagePush("bob", models.FollowerPayload{})
	assert.False(t, ok)
	_, ok = strangerGiftPush("bob", (*models.StrangerGiftPayload)(nil))
	assert.False(t, ok)
}

func TestDefaultIcons(t *testing.T) {
	n, ok := newFollowerPush("bob", &models.FollowerPayload{FollowerID: "carol", Name: "Carol"})
	require.True(t, ok)
	assert.Equal(t, defaultLargeIcon, n.LargeIcon)
	assert.Equal(t, "بدأ بمتابعتك!", n.Contents.En)
	assert.Equal(t, "carol", n.Data["followerId"])

	n, ok = systemMessagePush("bob", models.SystemMessagePayload{Content: models.SystemContent{Text: "hi"}})
	require.True(t, ok)
	assert.Equal(t, "hi", n.Contents.Ar, "arabic falls back to the english text")
	assert.Equal(t, "رسالة من النظام", n.Headings.En)
}
