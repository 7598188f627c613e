package telemetry

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"messaging-service/internal/observability"
)

// Actions recorded by the messaging service. Consumers of the audit exchange filter on
// these values, so they are part of the wire contract.
const (
	ActionWalletDebit            = "wallet.debit"
	ActionMediaCleanup           = "media_cleanup"
	ActionConversationPurge      = "conversation_purge"
	ActionSystemMessageSend      = "system_message_send"
	ActionSystemMessageBroadcast = "system_message_broadcast"
	ActionAuditCheck             = "audit_test"
)

const envelopeSchemaVersion = 2

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// AuditConfig identifies this instance in every audit record.
type AuditConfig struct {
	RoutingKey  string
	Service     string
	Environment string
	InstanceID  string
}

// AuditEmitter publishes admin actions and credit debits to the audit exchange.
type AuditEmitter struct {
	publisher Publisher
	cfg       AuditConfig
	log       zerolog.Logger
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	InstanceID    string       `json:"instance_id,omitempty"`
	RequestID     string       `json:"request_id"`
	TraceID       string       `json:"trace_id,omitempty"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level  string            `json:"level"`
	Action string            `json:"action"`
	Text   string            `json:"text"`
	Fields map[string]string `json:"fields,omitempty"`
}

func NewAuditEmitter(publisher Publisher, cfg AuditConfig, log zerolog.Logger) *AuditEmitter {
	return &AuditEmitter{publisher: publisher, cfg: cfg, log: log}
}

// Emit publishes one record. A nil emitter or publisher drops it; publish failures are
// logged and never reach the caller.
func (e *AuditEmitter) Emit(ctx context.Context, level, action, text, requestID string, userID *string, fields map[string]string) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := e.envelope(ctx, level, action, text, requestID, userID, fields)
	if err := e.publisher.Publish(ctx, e.cfg.RoutingKey, envelope); err != nil {
		e.log.Error().Err(err).Str("action", action).Str("request_id", requestID).Msg("audit publish failed")
		return
	}
	e.log.Debug().Str("action", action).Str("request_id", requestID).Msg("audit recorded")
}

func (e *AuditEmitter) envelope(ctx context.Context, level, action, text, requestID string, userID *string, fields map[string]string) AuditEnvelope {
	return AuditEnvelope{
		SchemaVersion: envelopeSchemaVersion,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.cfg.Service,
		Environment:   e.cfg.Environment,
		InstanceID:    e.cfg.InstanceID,
		RequestID:     requestID,
		TraceID:       observability.TraceIDFromContext(ctx),
		UserID:        userID,
		Payload: AuditPayload{
			Level:  normalizeLevel(level),
			Action: action,
			Text:   text,
			Fields: fields,
		},
	}
}

// normalizeLevel upper-cases the level and maps unknown values to INFO.
func normalizeLevel(level string) string {
	switch l := strings.ToUpper(strings.TrimSpace(level)); l {
	case "DEBUG", "INFO", "WARN", "ERROR":
		return l
	case "WARNING":
		return "WARN"
	default:
		return "INFO"
	}
}
