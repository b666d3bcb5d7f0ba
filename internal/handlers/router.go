package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"teamchat-service/internal/auth"
	"teamchat-service/internal/executor"
	"teamchat-service/internal/models"
	"teamchat-service/internal/observability"
	"teamchat-service/internal/repositories"
	"teamchat-service/internal/telemetry"
	"teamchat-service/internal/ws"
)

var (
	errDenied  = errors.New("not authorized")
	errInvalid = errors.New("invalid request")
)

// PresenceTracker reads team presence and marks sessions online for
// teams they gain mid-session.
type PresenceTracker interface {
	Snapshot(ctx context.Context, teamID int) ([]models.Presence, error)
	Connected(ctx context.Context, p auth.Principal, teamIDs []int)
}

// Router dispatches inbound frames. Every handler authorizes against the
// current persisted state, performs one mutation and only then broadcasts.
// Failures are logged and counted; the client never receives an error frame.
type Router struct {
	repos        repositories.Set
	hub          *ws.Hub
	presence     PresenceTracker
	pool         *executor.Pool
	audit        *telemetry.AuditEmitter
	historyLimit int
	log          *slog.Logger
}

func NewRouter(repos repositories.Set, hub *ws.Hub, presence PresenceTracker, pool *executor.Pool, audit *telemetry.AuditEmitter, historyLimit int, log *slog.Logger) *Router {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &Router{
		repos:        repos,
		hub:          hub,
		presence:     presence,
		pool:         pool,
		audit:        audit,
		historyLimit: historyLimit,
		log:          log,
	}
}

// session is the per-event view of the sending connection.
type session struct {
	client   *ws.Client
	userID   int
	username string
	eventID  string
	log      *slog.Logger
}

func (s session) reply(env models.Envelope) {
	if !s.client.SendEnvelope(env) {
		s.log.Debug("reply not delivered", "type", env.Type)
	}
}

// Dispatch implements ws.Dispatcher.
func (r *Router) Dispatch(ctx context.Context, c *ws.Client, raw []byte) {
	start := time.Now()
	eventID := uuid.NewString()
	log := c.Logger().With("event_id", eventID)

	messageType, event, err := DecodeEvent(raw)
	label := metricLabel(messageType, event)
	if state := c.State(); state != ws.StateActive {
		log.Debug("event dropped", "event_type", messageType, "state", state.String())
		observability.ObserveInboundEvent(label, observability.OutcomeDropped, time.Since(start))
		return
	}
	if err != nil {
		if errors.Is(err, ErrUnknownEvent) {
			log.Info("unknown event ignored", "event_type", messageType)
		} else {
			log.Warn("malformed event dropped", "event_type", messageType, "error", err)
		}
		observability.ObserveInboundEvent(label, observability.OutcomeInvalid, time.Since(start))
		return
	}

	info := c.Info()
	log = log.With("event_type", messageType)
	ctx, span := observability.Tracer().Start(ctx, "ws.event "+messageType)
	span.SetAttributes(
		attribute.String("ws.event_id", eventID),
		attribute.String("ws.conn_id", info.ConnID),
		attribute.Int("user.id", info.UserID),
	)
	defer span.End()

	s := session{client: c, userID: info.UserID, username: info.Username, eventID: eventID, log: log}
	err = r.safeHandle(ctx, s, event)
	outcome := classify(err)
	span.SetAttributes(attribute.String("ws.outcome", outcome))
	switch outcome {
	case observability.OutcomeOK:
		log.Debug("event handled", "elapsed", time.Since(start))
	case observability.OutcomeFailed, observability.OutcomePanic:
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		log.Error("event failed", "error", err)
	default:
		log.Info("event abandoned", "outcome", outcome, "error", err)
	}
	observability.ObserveInboundEvent(label, outcome, time.Since(start))
}

type panicError struct {
	value any
}

func (p panicError) Error() string {
	return fmt.Sprintf("handler panic: %v", p.value)
}

func (r *Router) safeHandle(ctx context.Context, s session, event Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("handler panic recovered", "panic", rec, "stack", string(debug.Stack()))
			err = panicError{value: rec}
		}
	}()
	return r.handle(ctx, s, event)
}

func (r *Router) handle(ctx context.Context, s session, event Event) error {
	switch ev := event.(type) {
	case *SendChannelMessage:
		return r.sendChannelMessage(ctx, s, ev)
	case *SendDirectMessage:
		return r.sendDirectMessage(ctx, s, ev)
	case *ForwardMessage:
		return r.forwardMessage(ctx, s, ev)
	case *EditMessage:
		return r.editMessage(ctx, s, ev)
	case *DeleteMessage:
		return r.deleteMessage(ctx, s, ev)
	case *React:
		return r.react(ctx, s, ev)
	case *PinMessage:
		return r.setPin(ctx, s, ev.MessageID, true)
	case *UnpinMessage:
		return r.setPin(ctx, s, ev.MessageID, false)
	case *CreateChannel:
		return r.createChannel(ctx, s, ev)
	case *AddTeamMember:
		return r.addTeamMember(ctx, s, ev)
	case *TeamNotification:
		return r.teamNotification(ctx, s, ev)
	case *CreateOrGetDMChannel:
		return r.createOrGetDMChannel(ctx, s, ev)
	case *JoinTeam:
		return r.joinTeam(ctx, s, ev)
	case *LeaveTeam:
		return r.leaveTeam(ctx, s, ev)
	case *GetChannelMessages:
		return r.getChannelMessages(ctx, s, ev)
	case *GetTeamMembers:
		return r.getTeamMembers(ctx, s, ev)
	case *GetTeamChannels:
		return r.getTeamChannels(ctx, s, ev)
	case *GetUserPresences:
		return r.getUserPresences(ctx, s, ev)
	case *GetInteractedUsers:
		return r.getInteractedUsers(ctx, s)
	default:
		return fmt.Errorf("%w: unhandled event %T", errInvalid, event)
	}
}

func classify(err error) string {
	var p panicError
	switch {
	case err == nil:
		return observability.OutcomeOK
	case errors.As(err, &p):
		return observability.OutcomePanic
	case errors.Is(err, errDenied), errors.Is(err, repositories.ErrNotMessageSender):
		return observability.OutcomeDenied
	case errors.Is(err, repositories.ErrUserNotFound),
		errors.Is(err, repositories.ErrTeamNotFound),
		errors.Is(err, repositories.ErrChannelNotFound),
		errors.Is(err, repositories.ErrMessageNotFound):
		return observability.OutcomeNotFound
	case errors.Is(err, errInvalid), errors.Is(err, repositories.ErrSelfDirectChat):
		return observability.OutcomeInvalid
	default:
		return observability.OutcomeFailed
	}
}

// metricLabel keeps the event label bounded to known message types.
func metricLabel(messageType string, event Event) string {
	if event == nil && newEvent(messageType) == nil {
		return "unknown"
	}
	return messageType
}

func (r *Router) requestID(s session) string {
	if id := s.client.Info().RequestID; id != "" {
		return id
	}
	return s.eventID
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
