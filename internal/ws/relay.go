package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
)

const (
	instanceChannelPrefix = "delivery:"
	broadcastChannel      = "delivery:broadcast"

	envelopeEvict = "evict"
)

// relayEnvelope carries a frame for ConnID, or with Kind "evict" a request to close it.
type relayEnvelope struct {
	Kind   string          `json:"kind,omitempty"`
	ConnID string          `json:"connId"`
	Frame  json.RawMessage `json:"frame,omitempty"`
}

// Relay routes frames to a connection handle wherever it lives. Frames for local
// connections go straight to the hub; frames for other instances go over Redis pub/sub.
type Relay struct {
	hub        *Hub
	rdb        redis.UniversalClient
	instanceID string
	log        zerolog.Logger
}

func NewRelay(hub *Hub, rdb redis.UniversalClient, instanceID string, log zerolog.Logger) *Relay {
	return &Relay{hub: hub, rdb: rdb, instanceID: instanceID, log: log}
}

func instanceChannel(instanceID string) string {
	return instanceChannelPrefix + instanceID
}

// Send writes frame to the connection behind h. ErrConnectionGone means the handle no
// longer resolves to a live socket.
func (r *Relay) Send(ctx context.Context, h presence.Handle, frame models.Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if h.InstanceID == r.instanceID {
		return r.hub.SendTo(h.ConnID, payload)
	}

	envelope, err := json.Marshal(relayEnvelope{ConnID: h.ConnID, Frame: payload})
	if err != nil {
		return err
	}
	receivers, err := r.rdb.Publish(ctx, instanceChannel(h.InstanceID), envelope).Result()
	if err != nil {
		return fmt.Errorf("relay publish: %w", err)
	}
	if receivers == 0 {
		return ErrConnectionGone
	}
	return nil
}

// Evict closes the connection behind h. A user that reconnects on another instance
// leaves the old socket here, so the new owner asks for it to be dropped.
func (r *Relay) Evict(ctx context.Context, h presence.Handle) error {
	if h.InstanceID == r.instanceID {
		r.evictLocal(h.ConnID)
		return nil
	}
	envelope, err := json.Marshal(relayEnvelope{Kind: envelopeEvict, ConnID: h.ConnID})
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, instanceChannel(h.InstanceID), envelope).Err(); err != nil {
		return fmt.Errorf("relay evict: %w", err)
	}
	return nil
}

func (r *Relay) evictLocal(connID string) bool {
	client, ok := r.hub.Evict(connID)
	if !ok {
		return false
	}
	observability.DecWSActive()
	observability.IncWSEvent("ws_replaced")
	client.CloseWith(websocket.ClosePolicyViolation, replacedReason)
	r.log.Debug().Str("conn_id", connID).Str("user_id", client.Info().UserID).Msg("evicted replaced connection")
	return true
}

// Broadcast fans frame out to every connection on every instance.
func (r *Relay) Broadcast(ctx context.Context, frame models.Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := r.rdb.Publish(ctx, broadcastChannel, payload).Err(); err != nil {
		r.log.Warn().Err(err).Msg("broadcast relay failed, delivering locally only")
		r.hub.Broadcast(payload)
		return nil
	}
	return nil
}

// Run consumes frames addressed to this instance until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, instanceChannel(r.instanceID), broadcastChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("relay subscribe: %w", err)
	}
	r.log.Info().Str("instance", r.instanceID).Msg("delivery relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(msg)
		}
	}
}

func (r *Relay) handle(msg *redis.Message) {
	if msg.Channel == broadcastChannel {
		r.hub.Broadcast([]byte(msg.Payload))
		return
	}
	var env relayEnvelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		r.log.Warn().Err(err).Msg("drop malformed relay envelope")
		return
	}
	if env.Kind == envelopeEvict {
		r.evictLocal(env.ConnID)
		return
	}
	if err := r.hub.SendTo(env.ConnID, env.Frame); err != nil {
		r.log.Debug().Err(err).Str("conn_id", env.ConnID).Msg("relayed frame not delivered")
	}
}
