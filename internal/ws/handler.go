package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/events"
	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	cleanupTimeout = 5 * time.Second
)

// EventError is sent back for client frames that could not be handled.
const EventError = "error"

// ConnInfo describes one accepted websocket connection.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// Registry is the presence side the handler maintains.
type Registry interface {
	RegisterConnection(ctx context.Context, userID string, h presence.Handle) (presence.Handle, error)
	UnregisterConnection(ctx context.Context, userID string, h presence.Handle) (bool, error)
	SetActiveConversation(ctx context.Context, userID, conversationID string) error
	ClearActiveConversation(ctx context.Context, userID string) error
}

// Evictor closes a connection held by another instance.
type Evictor interface {
	Evict(ctx context.Context, h presence.Handle) error
}

// ConversationAccess authorizes joinConversation requests.
type ConversationAccess interface {
	CheckAccess(ctx context.Context, conversationID, userID string) error
}

// Handler upgrades authenticated requests to websocket connections and serves the
// client protocol on them.
type Handler struct {
	hub        *Hub
	registry   Registry
	evictor    Evictor
	access     ConversationAccess
	verifier   middleware.TokenVerifier
	publisher  events.Publisher
	instanceID string
	log        zerolog.Logger
}

func NewHandler(hub *Hub, registry Registry, evictor Evictor, access ConversationAccess, verifier middleware.TokenVerifier, publisher events.Publisher, instanceID string, log zerolog.Logger) *Handler {
	return &Handler{
		hub:        hub,
		registry:   registry,
		evictor:    evictor,
		access:     access,
		verifier:   verifier,
		publisher:  publisher,
		instanceID: instanceID,
		log:        log,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type conversationRef struct {
	ConversationID string `json:"conversationId"`
}

// Handle authenticates the request and upgrades it.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := observability.Tracer("ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	claims, err := h.verifier.Verify(middleware.TokenFromRequest(c.Request))
	if err != nil {
		c.JSON(http.StatusUnauthorized, apperrors.Body(apperrors.ErrUnauthenticated))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      claims.UserID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client, err := h.attach(ctx, info, conn)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", info.UserID).Msg("register connection")
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "presence unavailable"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	go h.serve(client, conn)
}

// attach records the connection in the hub and the presence registry. The user's
// previous connection, if any, is closed, on another instance through the evictor.
func (h *Handler) attach(ctx context.Context, info ConnInfo, conn Conn) (*Client, error) {
	client, replaced := h.hub.Register(info, conn)
	if replaced != nil {
		observability.DecWSActive()
		observability.IncWSEvent("ws_replaced")
		replaced.CloseWith(websocket.ClosePolicyViolation, replacedReason)
	}

	prev, err := h.registry.RegisterConnection(ctx, info.UserID, h.handle(info))
	if err != nil {
		h.hub.Unregister(info.UserID, info.ConnID)
		return nil, err
	}
	if !prev.IsZero() && prev.InstanceID != h.instanceID && h.evictor != nil {
		if err := h.evictor.Evict(ctx, prev); err != nil {
			h.log.Warn().Err(err).Str("user_id", info.UserID).Str("previous", prev.String()).Msg("evict replaced connection")
		}
	}

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publisher.Publish(ctx, events.New(events.WebsocketConnected, info.UserID, info.UserID, map[string]any{
		"connId":    info.ConnID,
		"instance":  h.instanceID,
		"deviceId":  info.DeviceID,
		"ip":        info.IP,
		"requestId": info.RequestID,
		"traceId":   info.TraceID,
	}))
	return client, nil
}

// detach is the inverse of attach. It is a no-op for registry entries that already point
// at a newer connection.
func (h *Handler) detach(info ConnInfo, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if h.hub.Unregister(info.UserID, info.ConnID) {
		observability.DecWSActive()
	}
	if _, err := h.registry.UnregisterConnection(ctx, info.UserID, h.handle(info)); err != nil {
		h.log.Error().Err(err).Str("user_id", info.UserID).Msg("unregister connection")
	}

	observability.IncWSEvent("ws_disconnect")
	h.publisher.Publish(ctx, events.New(events.WebsocketDisconnected, info.UserID, info.UserID, map[string]any{
		"connId":     info.ConnID,
		"instance":   h.instanceID,
		"durationMs": time.Since(info.ConnectedAt).Milliseconds(),
		"reason":     reason,
	}))
}

func (h *Handler) handle(info ConnInfo) presence.Handle {
	return presence.Handle{InstanceID: h.instanceID, ConnID: info.ConnID}
}

func (h *Handler) serve(client *Client, conn *websocket.Conn) {
	info := client.Info()
	log := h.log.With().Str("user_id", info.UserID).Str("conn_id", info.ConnID).Logger()

	done := make(chan struct{})
	var closeReason string
	defer func() {
		close(done)
		h.detach(info, closeReason)
		_ = conn.Close()
	}()

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				client.mu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
				client.mu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.ClosePolicyViolation) {
				observability.IncWSEvent("ws_error")
				log.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}

		ctx := context.Background()
		reply := h.dispatch(ctx, info.UserID, data)
		payload, err := json.Marshal(reply)
		if err != nil {
			continue
		}
		if err := client.Send(payload); err != nil {
			closeReason = err.Error()
			return
		}
	}
}

// dispatch handles one client frame and returns the reply frame.
func (h *Handler) dispatch(ctx context.Context, userID string, data []byte) models.Frame {
	var in inboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		return errorFrame(apperrors.BadRequest("Malformed frame", "إطار غير صالح"))
	}

	switch in.Event {
	case models.EventJoinConversation:
		ref, err := decodeRef(in.Data)
		if err != nil {
			return errorFrame(err)
		}
		if err := h.access.CheckAccess(ctx, ref.ConversationID, userID); err != nil {
			return errorFrame(err)
		}
		if err := h.registry.SetActiveConversation(ctx, userID, ref.ConversationID); err != nil {
			h.log.Error().Err(err).Str("user_id", userID).Msg("set active conversation")
			return errorFrame(err)
		}
		return models.Frame{Event: models.EventJoinedConversation, Data: ref}

	case models.EventLeaveConversation:
		ref, _ := decodeRef(in.Data)
		if err := h.registry.ClearActiveConversation(ctx, userID); err != nil {
			h.log.Error().Err(err).Str("user_id", userID).Msg("clear active conversation")
			return errorFrame(err)
		}
		return models.Frame{Event: models.EventLeftConversation, Data: ref}
	}
	return errorFrame(apperrors.BadRequest("Unknown event", "حدث غير معروف"))
}

func decodeRef(raw json.RawMessage) (conversationRef, error) {
	var ref conversationRef
	if len(raw) == 0 || json.Unmarshal(raw, &ref) != nil || ref.ConversationID == "" {
		return conversationRef{}, apperrors.ErrInvalidID
	}
	return ref, nil
}

func errorFrame(err error) models.Frame {
	return models.Frame{Event: EventError, Data: apperrors.Body(err)}
}
