package telemetry

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

// Audit actions emitted for membership mutations.
const (
	ActionChannelCreated       = "channel_created"
	ActionMemberAdded          = "team_member_added"
	ActionDirectChannelCreated = "dm_channel_created"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	log         *slog.Logger
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level      string         `json:"level"`
	Text       string         `json:"text"`
	Action     string         `json:"action,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string, log *slog.Logger) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		log:         log,
	}
}

// Emit publishes a free-form audit record.
func (e *AuditEmitter) Emit(ctx context.Context, level, text, requestID string, userID *string) {
	e.emit(ctx, requestID, userID, AuditPayload{Level: level, Text: text})
}

// Record publishes an audit record for a mutation performed by actorID.
func (e *AuditEmitter) Record(ctx context.Context, action, requestID string, actorID int, attrs map[string]any) {
	var userID *string
	if actorID != 0 {
		id := strconv.Itoa(actorID)
		userID = &id
	}
	e.emit(ctx, requestID, userID, AuditPayload{Level: "INFO", Text: action, Action: action, Attributes: attrs})
}

func (e *AuditEmitter) emit(ctx context.Context, requestID string, userID *string, payload AuditPayload) {
	if e == nil || e.publisher == nil {
		return
	}

	e.log.Debug("audit emit", "level", payload.Level, "action", payload.Action, "request_id", requestID, "text", payload.Text)
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		UserID:        userID,
		Payload:       payload,
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		e.log.Warn("audit publish failed", "action", payload.Action, "error", err)
	}
}
