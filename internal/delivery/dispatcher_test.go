package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
	"messaging-service/internal/presence"
)

type presenceStub struct {
	handles map[string]presence.Handle
	err     error
}

func (p presenceStub) LookupConnection(_ context.Context, userID string) (presence.Handle, bool, error) {
	if p.err != nil {
		return presence.Handle{}, false, p.err
	}
	h, ok := p.handles[userID]
	return h, ok, nil
}

type transportMock struct{ mock.Mock }

func (m *transportMock) Send(ctx context.Context, h presence.Handle, frame models.Frame) error {
	return m.Called(ctx, h, frame).Error(0)
}

func (m *transportMock) Broadcast(ctx context.Context, frame models.Frame) error {
	return m.Called(ctx, frame).Error(0)
}

type settingsStub struct {
	byUser map[string]models.Settings
	err    error
}

func (s settingsStub) GetSettings(_ context.Context, userID string) (models.Settings, error) {
	if s.err != nil {
		return models.Settings{}, s.err
	}
	if v, ok := s.byUser[userID]; ok {
		return v, nil
	}
	return models.DefaultSettings(), nil
}

type gatewayRecorder struct {
	mu   sync.Mutex
	sent []models.PushNotification
	fail map[string]error
}

func (g *gatewayRecorder) Push(_ context.Context, n models.PushNotification) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(n.Audience.ExternalIDs) == 1 {
		if err := g.fail[n.Audience.ExternalIDs[0]]; err != nil {
			return err
		}
	}
	if err := g.fail["*"]; err != nil {
		return err
	}
	g.sent = append(g.sent, n)
	return nil
}

func newTestDispatcher(p Presence, t Transport, s SettingsSource, g NotificationGateway) *Dispatcher {
	return NewDispatcher(p, t, s, g, Options{FanOut: 4}, zerolog.Nop())
}

func textMessage() models.NewMessagePayload {
	return models.NewMessagePayload{
		Message: models.Message{
			ID:             "m1",
			ConversationID: "c1",
			SenderID:       "alice",
			ReceiverID:     "bob",
			Type:           models.MessageText,
			Content:        models.Content{Body: "hi"},
		},
		SenderName:   "Alice",
		SenderAvatar: "https://cdn/alice.png",
		UserData:     models.UserInfo{ID: "alice", UserID: "1001", Name: "Alice"},
	}
}

func TestDeliverToUserLive(t *testing.T) {
	h := presence.Handle{InstanceID: "node-1", ConnID: "c-bob"}
	tr := &transportMock{}
	payload := textMessage()
	tr.On("Send", mock.Anything, h, models.Frame{Event: models.EventNewMessage, Data: payload}).Return(nil).Once()
	gw := &gatewayRecorder{}

	d := newTestDispatcher(presenceStub{handles: map[string]presence.Handle{"bob": h}}, tr, settingsStub{}, gw)
	res := d.DeliverToUser(context.Background(), models.EventNewMessage, payload, "bob", true)

	assert.Equal(t, StatusDeliveredLive, res.Status)
	assert.NoError(t, res.Err)
	assert.Empty(t, gw.sent)
	tr.AssertExpectations(t)
}

func TestDeliverToUserOfflineWithoutFallback(t *testing.T) {
	tr := &transportMock{}
	gw := &gatewayRecorder{}
	d := newTestDispatcher(presenceStub{}, tr, settingsStub{}, gw)

	res := d.DeliverToUser(context.Background(), models.EventUserBalanceChange, models.BalanceChangePayload{}, "bob", false)

	assert.Equal(t, StatusNotDelivered, res.Status)
	assert.NoError(t, res.Err)
	assert.Empty(t, gw.sent)
	tr.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliverToUserFallbackPush(t *testing.T) {
	gw := &gatewayRecorder{}
	d := newTestDispatcher(presenceStub{}, &transportMock{}, settingsStub{}, gw)

	res := d.DeliverToUser(context.Background(), models.EventNewMessage, textMessage(), "bob", true)

	require.Equal(t, StatusDeliveredFallback, res.Status)
	require.Len(t, gw.sent, 1)
	n := gw.sent[0]
	assert.Equal(t, []string{"bob"}, n.Audience.ExternalIDs)
	assert.Equal(t, "Alice", n.Headings.En)
	assert.Equal(t, "hi", n.Contents.Ar)
	assert.Equal(t, "https://cdn/alice.png", n.LargeIcon)
	assert.Equal(t, "c1", n.Data["conversationId"])
	assert.Equal(t, "text", n.Data["messageType"])
	assert.False(t, n.CreatedAt.IsZero())
}

func TestDeliverToUserStaleHandleFallsBack(t *testing.T) {
	h := presence.Handle{InstanceID: "node-2", ConnID: "gone"}
	tr := &transportMock{}
	tr.On("Send", mock.Anything, h, mock.Anything).Return(errors.New("connection gone")).Once()
	gw := &gatewayRecorder{}
	d := newTestDispatcher(presenceStub{handles: map[string]presence.Handle{"bob": h}}, tr, settingsStub{}, gw)

	res := d.DeliverToUser(context.Background(), models.EventNewMessage, textMessage(), "bob", true)

	assert.Equal(t, StatusDeliveredFallback, res.Status)
	assert.Len(t, gw.sent, 1)
}

func TestDeliverToUserPresenceErrorIsOffline(t *testing.T) {
	gw := &gatewayRecorder{}
	d := newTestDispatcher(presenceStub{err: errors.New("redis down")}, &transportMock{}, settingsStub{}, gw)

	res := d.DeliverToUser(context.Background(), models.EventNewMessage, textMessage(), "bob", false)
	assert.Equal(t, StatusNotDelivered, res.Status)
}

func TestDeliverToUserSettingDisabled(t *testing.T) {
	gw := &gatewayRecorder{}
	off := models.DefaultSettings()
	off.FriendsMessages = false
	d := newTestDispatcher(presenceStub{}, &transportMock{}, settingsStub{byUser: map[string]models.Settings{"bob": off}}, gw)

	res := d.DeliverToUser(context.Background(), models.EventNewMessage, textMessage(), "bob", true)

	assert.Equal(t, StatusFallbackSkipped, res.Status)
	assert.Empty(t, gw.sent)

	res = d.DeliverToUser(context.Background(), models.EventNewFollower,
		models.FollowerPayload{FollowerID: "carol", Name: "Carol"}, "bob", true)
	assert.Equal(t, StatusDeliveredFallback, res.Status, "other settings stay enabled")
}

func TestDeliverToUserNoTemplate(t *testing.T) {
	gw := &gatewayRecorder{}
	d := newTestDispatcher(presenceStub{}, &transportMock{}, settingsStub{}, gw)

	res := d.DeliverToUser(context.Background(), models.EventMessageDeleted, models.MessageDeletedPayload{}, "bob", true)

	assert.Equal(t, StatusFallbackSkipped, res.Status)
	assert.ErrorIs(t, res.Err, errNoTemplate)
	assert.Empty(t, gw.sent)
}

func TestDeliverToUserSwallowsPushFailure(t *testing.T) {
	gw := &gatewayRecorder{fail: map[string]error{"bob": errors.New("amqp closed")}}
	d := newTestDispatcher(presenceStub{}, &transportMock{}, settingsStub{}, gw)

	res := d.DeliverToUser(context.Background(), models.EventNewMessage, textMessage(), "bob", true)

	assert.Equal(t, StatusFallbackFailed, res.Status)
	assert.EqualError(t, res.Err, "amqp closed")
}

func TestDeliverToUsersIsolatesFailures(t *testing.T) {
	h := presence.Handle{InstanceID: "node-1", ConnID: "c-live"}
	tr := &transportMock{}
	tr.On("Send", mock.Anything, h, mock.Anything).Return(nil)
	gw := &gatewayRecorder{fail: map[string]error{"u2": errors.New("boom")}}
	d := newTestDispatcher(presenceStub{handles: map[string]presence.Handle{"live": h}}, tr, settingsStub{}, gw)

	payload := models.SystemMessagePayload{ID: "s1", Content: models.SystemContent{Text: "hello"}}
	users := []string{"u1", "u2", "live", "u3"}
	results := d.DeliverToUsers(context.Background(), models.EventSystemMessageIndividual, payload, users, true)

	require.Len(t, results, len(users))
	for i, r := range results {
		assert.Equal(t, users[i], r.UserID)
	}
	assert.Equal(t, StatusDeliveredFallback, results[0].Status)
	assert.Equal(t, StatusFallbackFailed, results[1].Status)
	assert.Equal(t, StatusDeliveredLive, results[2].Status)
	assert.Equal(t, StatusDeliveredFallback, results[3].Status)
	assert.Len(t, gw.sent, 2)
}

func TestBroadcastToAll(t *testing.T) {
	payload := models.SystemMessagePayload{ID: "s1", Content: models.SystemContent{Text: "maintenance", TextAr: "صيانة"}}
	tr := &transportMock{}
	tr.On("Broadcast", mock.Anything, models.Frame{Event: models.EventSystemMessageBroadcast, Data: payload}).Return(nil)
	gw := &gatewayRecorder{}
	d := newTestDispatcher(presenceStub{}, tr, settingsStub{}, gw)

	res := d.BroadcastToAll(context.Background(), models.EventSystemMessageBroadcast, payload, true)

	assert.Equal(t, StatusDeliveredLive, res.Status)
	require.Len(t, gw.sent, 1)
	n := gw.sent[0]
	assert.True(t, n.IsBroadcast())
	assert.Equal(t, []string{"All"}, n.Audience.Segments)
	assert.Equal(t, "صيانة", n.Contents.Ar)
	assert.Equal(t, "maintenance", n.Contents.En)
}

func TestBroadcastToAllWithoutFallback(t *testing.T) {
	tr := &transportMock{}
	tr.On("Broadcast", mock.Anything, mock.Anything).Return(nil)
	gw := &gatewayRecorder{}
	d := newTestDispatcher(presenceStub{}, tr, settingsStub{}, gw)

	res := d.BroadcastToAll(context.Background(), models.EventLiveMessage, models.LiveMessagePayload{Message: "live now"}, false)

	assert.Equal(t, StatusDeliveredLive, res.Status)
	assert.Empty(t, gw.sent)
}

func TestBroadcastToAllPushFailureIsSwallowed(t *testing.T) {
	tr := &transportMock{}
	tr.On("Broadcast", mock.Anything, mock.Anything).Return(nil)
	gw := &gatewayRecorder{fail: map[string]error{"*": errors.New("down")}}
	d := newTestDispatcher(presenceStub{}, tr, settingsStub{}, gw)

	res := d.BroadcastToAll(context.Background(), models.EventLiveMessage, &models.LiveMessagePayload{Message: "live now", RoomID: "r1"}, true)

	assert.Equal(t, StatusFallbackFailed, res.Status)
	assert.Error(t, res.Err)
}
