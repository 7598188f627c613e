package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/presence"
	"messaging-service/internal/telemetry"
)

// PresenceInspector exposes the registry state a delivery decision is based on.
type PresenceInspector interface {
	LookupConnection(ctx context.Context, userID string) (presence.Handle, bool, error)
	ActiveConversation(ctx context.Context, userID string) (string, error)
}

var _ PresenceInspector = (*presence.Registry)(nil)

// DebugDeps are optional; a nil dependency turns its route into a 503.
type DebugDeps struct {
	Audit    Auditor
	Presence PresenceInspector
}

// RegisterDebugRoutes mounts operator diagnostics when enabled:
// /debug/audit-test pushes a record through the audit exchange and
// /debug/presence/:userId shows where live delivery for the user would go.
func RegisterDebugRoutes(router gin.IRouter, deps DebugDeps, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if deps.Audit == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		requestID := requestIDFromContext(c)
		deps.Audit.Emit(c.Request.Context(), "INFO", telemetry.ActionAuditCheck, "audit pipeline check", requestID, userIDFromContext(c), nil)
		c.JSON(http.StatusOK, gin.H{"status": "ok", "requestId": requestID})
	})

	router.GET("/debug/presence/:userId", func(c *gin.Context) {
		if deps.Presence == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "presence registry not configured"})
			return
		}
		ctx, userID := c.Request.Context(), c.Param("userId")

		handle, online, err := deps.Presence.LookupConnection(ctx, userID)
		if err != nil {
			respondError(c, "debug presence", err)
			return
		}
		viewing, err := deps.Presence.ActiveConversation(ctx, userID)
		if err != nil {
			respondError(c, "debug presence", err)
			return
		}

		body := gin.H{"userId": userID, "online": online, "activeConversation": viewing}
		if online {
			body["instanceId"] = handle.InstanceID
			body["connId"] = handle.ConnID
		}
		c.JSON(http.StatusOK, body)
	})
}
