package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/middleware"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/presence"
	"messaging-service/internal/services"
	"messaging-service/internal/telemetry"
)

func TestAdminRoutesRequireRole(t *testing.T) {
	f := setupRouter(t, false)

	rec := f.json(http.MethodPost, "/v1/chat/admin/cleanup/trigger", "")

	requireStatus(t, rec, http.StatusForbidden)
	assert.Equal(t, apperrors.ErrAdminOnly.(*apperrors.AppError).Message, decode(t, rec)["message"])
}

func TestCleanupEndpoints(t *testing.T) {
	f := setupRouter(t, true)
	cutoff := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	f.cleaner.On("Statistics", mock.Anything).
		Return(services.CleanupStatistics{TotalOldMessages: 4, CutoffDate: cutoff}, nil).Once()
	f.cleaner.On("Cleanup", mock.Anything).
		Return(services.CleanupResult{TotalProcessed: 4, SuccessfulDeletions: 3, FailedDeletions: 1}, nil).Once()
	f.audit.On("Emit", mock.Anything, "INFO", telemetry.ActionMediaCleanup, mock.Anything, mock.Anything,
		mock.MatchedBy(func(id *string) bool { return id != nil && *id == callerID }),
		map[string]string{"processed": "4", "failed": "1"}).Once()

	rec := f.json(http.MethodGet, "/v1/chat/admin/cleanup/statistics", "")
	requireStatus(t, rec, http.StatusOK)
	assert.EqualValues(t, 4, decode(t, rec)["totalOldMessages"])

	rec = f.json(http.MethodPost, "/v1/chat/admin/cleanup/trigger", "")
	requireStatus(t, rec, http.StatusOK)
	assert.EqualValues(t, 3, decode(t, rec)["successfulDeletions"])
}

func TestPurgeConversation(t *testing.T) {
	f := setupRouter(t, true)
	f.chat.On("PurgeConversation", mock.Anything, convID, callerID).Return(nil).Once()
	f.chat.On("PurgeConversation", mock.Anything, otherID, callerID).Return(apperrors.ErrConversationNotFound).Once()
	f.audit.On("Emit", mock.Anything, "INFO", "conversation_purge", mock.Anything, mock.Anything, mock.Anything,
		map[string]string{"conversation_id": convID}).Once()

	rec := f.json(http.MethodDelete, "/v1/chat/admin/conversations/"+convID, "")
	requireStatus(t, rec, http.StatusNoContent)

	rec = f.json(http.MethodDelete, "/v1/chat/admin/conversations/"+otherID, "")
	requireStatus(t, rec, http.StatusNotFound)
}

func TestAdminSystemMessages(t *testing.T) {
	t.Run("individual", func(t *testing.T) {
		f := setupRouter(t, true)
		content := models.SystemContent{Text: "welcome", TextAr: "أهلا"}
		f.system.On("SendIndividual", mock.Anything, otherID, content).
			Return(models.SystemMessage{ID: "sys-1", Content: content}, nil).Once()
		f.audit.On("Emit", mock.Anything, "INFO", "system_message_send", mock.Anything, mock.Anything, mock.Anything,
			map[string]string{"message_id": "sys-1", "receiver_id": otherID}).Once()

		rec := f.json(http.MethodPost, "/v1/chat/admin/system-messages", `{"receiverId":"`+otherID+`","text":"welcome","textAr":"أهلا"}`)

		requireStatus(t, rec, http.StatusCreated)
	})

	t.Run("individual needs receiver", func(t *testing.T) {
		f := setupRouter(t, true)
		rec := f.json(http.MethodPost, "/v1/chat/admin/system-messages", `{"text":"welcome"}`)
		requireStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("broadcast", func(t *testing.T) {
		f := setupRouter(t, true)
		content := models.SystemContent{Text: "maintenance", ImageURL: "https://cdn.example.com/m.png"}
		f.system.On("Broadcast", mock.Anything, content).Return(models.SystemMessage{ID: "sys-2"}, nil).Once()
		f.audit.On("Emit", mock.Anything, "INFO", "system_message_broadcast", mock.Anything, mock.Anything, mock.Anything,
			map[string]string{"message_id": "sys-2"}).Once()

		rec := f.json(http.MethodPost, "/v1/chat/admin/system-messages/broadcast", `{"text":"maintenance","imageUrl":"https://cdn.example.com/m.png"}`)

		requireStatus(t, rec, http.StatusCreated)
	})

	t.Run("broadcast rejects bad image url", func(t *testing.T) {
		f := setupRouter(t, true)
		rec := f.json(http.MethodPost, "/v1/chat/admin/system-messages/broadcast", `{"text":"x","imageUrl":"not a url"}`)
		requireStatus(t, rec, http.StatusBadRequest)
	})
}

type presenceStub struct {
	handle presence.Handle
	online bool
	active string
	err    error
}

func (p presenceStub) LookupConnection(context.Context, string) (presence.Handle, bool, error) {
	return p.handle, p.online, p.err
}

func (p presenceStub) ActiveConversation(context.Context, string) (string, error) {
	return p.active, p.err
}

func serveDebug(router *gin.Engine, path, requestID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set(middleware.RequestIDHeader, requestID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestDebugAuditRoute(t *testing.T) {
	disabled := gin.New()
	RegisterDebugRoutes(disabled, DebugDeps{}, false)
	assert.Equal(t, http.StatusNotFound, serveDebug(disabled, "/debug/audit-test", "r1").Code)

	unconfigured := gin.New()
	RegisterDebugRoutes(unconfigured, DebugDeps{}, true)
	assert.Equal(t, http.StatusServiceUnavailable, serveDebug(unconfigured, "/debug/audit-test", "r2").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serveDebug(unconfigured, "/debug/presence/u1", "r2").Code)

	audit := new(mocks.AuditorMock)
	audit.On("Emit", mock.Anything, "INFO", telemetry.ActionAuditCheck, "audit pipeline check", "r3", (*string)(nil), map[string]string(nil)).Once()
	enabled := gin.New()
	RegisterDebugRoutes(enabled, DebugDeps{Audit: audit}, true)
	rec := serveDebug(enabled, "/debug/audit-test", "r3")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "r3", decode(t, rec)["requestId"])
	audit.AssertExpectations(t)
}

func TestDebugPresenceRoute(t *testing.T) {
	online := gin.New()
	RegisterDebugRoutes(online, DebugDeps{Presence: presenceStub{
		handle: presence.Handle{InstanceID: "node-2", ConnID: "c9"},
		online: true,
		active: convID,
	}}, true)
	rec := serveDebug(online, "/debug/presence/"+otherID, "r4")
	requireStatus(t, rec, http.StatusOK)
	body := decode(t, rec)
	assert.Equal(t, true, body["online"])
	assert.Equal(t, "node-2", body["instanceId"])
	assert.Equal(t, convID, body["activeConversation"])

	offline := gin.New()
	RegisterDebugRoutes(offline, DebugDeps{Presence: presenceStub{}}, true)
	rec = serveDebug(offline, "/debug/presence/"+otherID, "r5")
	requireStatus(t, rec, http.StatusOK)
	body = decode(t, rec)
	assert.Equal(t, false, body["online"])
	assert.NotContains(t, body, "instanceId")

	failing := gin.New()
	RegisterDebugRoutes(failing, DebugDeps{Presence: presenceStub{err: assert.AnError}}, true)
	requireStatus(t, serveDebug(failing, "/debug/presence/"+otherID, "r6"), http.StatusInternalServerError)
}
