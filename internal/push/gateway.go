package push

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

const (
	RoutingKeyUser      = "push.user"
	RoutingKeyBroadcast = "push.broadcast"
)

var ErrNoAudience = errors.New("push notification has no audience")

// Publisher is the subset of the AMQP publisher the gateway needs.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// AMQPGateway enqueues push jobs on the push exchange. A separate worker owns the
// provider API, so a successful Push means the job was accepted, not delivered.
type AMQPGateway struct {
	publisher Publisher
	log       zerolog.Logger
}

func NewAMQPGateway(publisher Publisher, log zerolog.Logger) *AMQPGateway {
	return &AMQPGateway{publisher: publisher, log: log}
}

func (g *AMQPGateway) Push(ctx context.Context, n models.PushNotification) error {
	routingKey := RoutingKeyUser
	switch {
	case n.IsBroadcast():
		routingKey = RoutingKeyBroadcast
	case len(n.Audience.ExternalIDs) == 0:
		observability.IncPushPublished(n.Template, false)
		return ErrNoAudience
	}

	if err := g.publisher.Publish(ctx, routingKey, n); err != nil {
		observability.IncPushPublished(n.Template, false)
		return fmt.Errorf("enqueue push %s: %w", n.Template, err)
	}
	observability.IncPushPublished(n.Template, true)
	g.log.Debug().
		Str("push_id", n.ID).
		Str("template", n.Template).
		Str("routing_key", routingKey).
		Msg("push enqueued")
	return nil
}
