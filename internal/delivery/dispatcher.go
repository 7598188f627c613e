package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
)

type Status string

const (
	StatusDeliveredLive     Status = "delivered_live"
	StatusDeliveredFallback Status = "delivered_fallback"
	StatusNotDelivered      Status = "not_delivered"
	StatusFallbackSkipped   Status = "fallback_skipped"
	StatusFallbackFailed    Status = "fallback_failed"
)

var (
	errNoTemplate     = errors.New("no offline template for event")
	errPayloadType    = errors.New("payload does not match event template")
	errSettingBlocked = errors.New("notification disabled by user setting")
)

// Result is the outcome of a single dispatch. Err carries the swallowed failure, if any.
type Result struct {
	UserID string
	Status Status
	Err    error
}

type Presence interface {
	LookupConnection(ctx context.Context, userID string) (presence.Handle, bool, error)
}

type Transport interface {
	Send(ctx context.Context, h presence.Handle, frame models.Frame) error
	Broadcast(ctx context.Context, frame models.Frame) error
}

type SettingsSource interface {
	GetSettings(ctx context.Context, userID string) (models.Settings, error)
}

// NotificationGateway hands a push job to the provider pipeline.
type NotificationGateway interface {
	Push(ctx context.Context, n models.PushNotification) error
}

type Options struct {
	FanOut      int
	PushTimeout time.Duration
}

// Dispatcher delivers events to live connections and falls back to push
// notifications for users that are offline. It never returns an error to callers.
type Dispatcher struct {
	presence  Presence
	transport Transport
	settings  SettingsSource
	gateway   NotificationGateway
	opts      Options
	log       zerolog.Logger
	tracer    trace.Tracer
}

func NewDispatcher(p Presence, t Transport, s SettingsSource, g NotificationGateway, opts Options, log zerolog.Logger) *Dispatcher {
	if opts.FanOut <= 0 {
		opts.FanOut = 16
	}
	if opts.PushTimeout <= 0 {
		opts.PushTimeout = 5 * time.Second
	}
	return &Dispatcher{
		presence:  p,
		transport: t,
		settings:  s,
		gateway:   g,
		opts:      opts,
		log:       log,
		tracer:    observability.Tracer("delivery"),
	}
}

func (d *Dispatcher) DeliverToUser(ctx context.Context, event string, payload any, userID string, fallback bool) Result {
	ctx, span := d.tracer.Start(ctx, "delivery.user", trace.WithAttributes(
		attribute.String("event", event),
		attribute.String("user_id", userID),
	))
	defer span.End()

	res := d.deliver(ctx, event, payload, userID, fallback)
	span.SetAttributes(attribute.String("status", string(res.Status)))
	observability.IncDelivery(event, string(res.Status))

	logEvent := d.log.Debug()
	switch {
	case res.Status == StatusFallbackFailed:
		logEvent = d.log.Error().Err(res.Err)
	case errors.Is(res.Err, errNoTemplate), errors.Is(res.Err, errPayloadType):
		logEvent = d.log.Warn().Err(res.Err)
	}
	logEvent.Str("event", event).Str("user_id", userID).Str("status", string(res.Status)).Msg("delivery")
	return res
}

func (d *Dispatcher) deliver(ctx context.Context, event string, payload any, userID string, fallback bool) Result {
	res := Result{UserID: userID}

	h, online, err := d.presence.LookupConnection(ctx, userID)
	if err != nil {
		d.log.Warn().Err(err).Str("user_id", userID).Msg("presence lookup failed; treating user as offline")
	}
	if online {
		err := d.transport.Send(ctx, h, models.Frame{Event: event, Data: payload})
		if err == nil {
			res.Status = StatusDeliveredLive
			return res
		}
		d.log.Debug().Err(err).Str("user_id", userID).Str("handle", h.String()).Msg("live send failed; treating user as offline")
	}

	if !fallback {
		res.Status = StatusNotDelivered
		return res
	}
	return d.offline(ctx, event, payload, userID)
}

func (d *Dispatcher) offline(ctx context.Context, event string, payload any, userID string) Result {
	res := Result{UserID: userID, Status: StatusFallbackSkipped}

	tmpl, ok := userTemplates[event]
	if !ok {
		res.Err = errNoTemplate
		return res
	}
	settings, err := d.settings.GetSettings(ctx, userID)
	if err != nil {
		res.Status = StatusFallbackFailed
		res.Err = err
		return res
	}
	if !tmpl.enabled(settings) {
		res.Err = errSettingBlocked
		return res
	}
	n, ok := tmpl.build(userID, payload)
	if !ok {
		res.Err = errPayloadType
		return res
	}
	n.CreatedAt = time.Now().UTC()

	if err := d.push(ctx, n); err != nil {
		res.Status = StatusFallbackFailed
		res.Err = err
		return res
	}
	res.Status = StatusDeliveredFallback
	return res
}

// push detaches from the caller's cancellation so a finished request does not
// abort the enqueue half way.
func (d *Dispatcher) push(ctx context.Context, n models.PushNotification) error {
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.PushTimeout)
	defer cancel()
	return d.gateway.Push(pushCtx, n)
}

// DeliverToUsers fans the event out to every user concurrently. Results are returned in
// the order of userIDs.
func (d *Dispatcher) DeliverToUsers(ctx context.Context, event string, payload any, userIDs []string, fallback bool) []Result {
	results := make([]Result, len(userIDs))
	var g errgroup.Group
	g.SetLimit(d.opts.FanOut)
	for i, userID := range userIDs {
		g.Go(func() error {
			results[i] = d.DeliverToUser(ctx, event, payload, userID, fallback)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// BroadcastToAll relays the event to every live connection on every instance and, with
// fallback, issues one segment-wide push.
func (d *Dispatcher) BroadcastToAll(ctx context.Context, event string, payload any, fallback bool) Result {
	ctx, span := d.tracer.Start(ctx, "delivery.broadcast", trace.WithAttributes(attribute.String("event", event)))
	defer span.End()

	res := Result{Status: StatusDeliveredLive}
	if err := d.transport.Broadcast(ctx, models.Frame{Event: event, Data: payload}); err != nil {
		d.log.Error().Err(err).Str("event", event).Msg("broadcast relay failed")
		res.Status = StatusNotDelivered
		res.Err = err
	}

	if fallback {
		res = d.broadcastPush(ctx, event, payload, res)
	}
	observability.IncDelivery(event, string(res.Status))
	return res
}

func (d *Dispatcher) broadcastPush(ctx context.Context, event string, payload any, res Result) Result {
	tmpl, ok := broadcastTemplates[event]
	if !ok {
		d.log.Warn().Str("event", event).Msg("no broadcast template for event")
		return res
	}
	n, ok := tmpl(payload)
	if !ok {
		d.log.Warn().Str("event", event).Msg("broadcast payload does not match template")
		return res
	}
	n.CreatedAt = time.Now().UTC()
	if err := d.push(ctx, n); err != nil {
		d.log.Error().Err(err).Str("event", event).Msg("broadcast push failed")
		return Result{Status: StatusFallbackFailed, Err: err}
	}
	if res.Err == nil {
		return res
	}
	return Result{Status: StatusDeliveredFallback, Err: res.Err}
}
