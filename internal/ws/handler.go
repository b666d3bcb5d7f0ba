package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"teamchat-service/internal/auth"
	"teamchat-service/internal/membership"
	"teamchat-service/internal/middleware"
	"teamchat-service/internal/observability"
)

// Dispatcher handles one inbound frame. Calls for a connection are made
// sequentially from its read loop.
type Dispatcher interface {
	Dispatch(ctx context.Context, c *Client, raw []byte)
}

// PresenceNotifier is told about connect and disconnect of authenticated sessions.
type PresenceNotifier interface {
	Connected(ctx context.Context, p auth.Principal, teamIDs []int)
	Disconnected(ctx context.Context, p auth.Principal, teamIDs []int)
}

// MembershipResolver computes the groups of a user at connect time.
type MembershipResolver interface {
	Resolve(ctx context.Context, userID int) membership.Groups
}

// HandlerConfig tunes the transport.
type HandlerConfig struct {
	SendBuffer      int
	MaxMessageBytes int64
	PingInterval    time.Duration
}

// Handler upgrades handshakes and runs the session of each connection.
type Handler struct {
	hub        *Hub
	resolver   MembershipResolver
	presence   PresenceNotifier
	dispatcher Dispatcher
	cfg        HandlerConfig
	log        *slog.Logger
	upgrader   websocket.Upgrader
}

func NewHandler(hub *Hub, resolver MembershipResolver, presence PresenceNotifier, dispatcher Dispatcher, cfg HandlerConfig, log *slog.Logger) *Handler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = 64 << 10
	}
	return &Handler{
		hub:        hub,
		resolver:   resolver,
		presence:   presence,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle always upgrades. Anonymous principals are then closed with 1008 so
// clients can tell a rejected token from a dropped handshake.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := observability.Tracer().Start(c.Request.Context(), "ws.handshake")
	principal := middleware.PrincipalFromContext(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upgrade failed")
		span.End()
		h.log.Debug("websocket upgrade failed", "error", err)
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      principal.UserID,
		Username:    principal.Username,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		Route:       c.FullPath(),
		ConnectedAt: time.Now(),
	}
	client := NewClient(conn, info, h.cfg.SendBuffer, h.log)
	span.SetAttributes(attribute.String("ws.conn_id", info.ConnID), attribute.Int("user.id", info.UserID))

	if principal.IsAnonymous() {
		span.SetStatus(codes.Error, "unauthenticated")
		span.End()
		client.Logger().Info("closing unauthenticated connection")
		publishLifecycle(ctx, "ws_rejected", info, "unauthenticated")
		client.CloseWith(websocket.ClosePolicyViolation, "unauthenticated")
		client.writePump(h.cfg.PingInterval)
		return
	}
	client.Advance(StateAuthenticated)

	// The request context ends when the handler returns on a hijacked connection.
	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	memberships := h.resolver.Resolve(sessionCtx, principal.UserID)
	if !routeAllowed(c, principal.UserID, memberships) {
		cancel()
		span.SetStatus(codes.Error, "forbidden")
		span.End()
		client.Logger().Info("closing connection outside route scope", "route", info.Route)
		publishLifecycle(ctx, "ws_rejected", info, "forbidden")
		client.CloseWith(websocket.ClosePolicyViolation, "forbidden")
		client.writePump(h.cfg.PingInterval)
		return
	}
	for _, key := range memberships.Keys(principal.UserID) {
		h.hub.Subscribe(key, client)
	}
	client.Advance(StateSubscribed)
	span.SetAttributes(attribute.Int("ws.subscriptions", len(client.Subscriptions())))
	span.End()

	observability.IncWSActive()
	publishLifecycle(sessionCtx, "ws_connect", info, "")
	client.Logger().Info("websocket connected", "subscriptions", len(client.Subscriptions()))

	go client.writePump(h.cfg.PingInterval)
	go func() {
		defer cancel()
		h.presence.Connected(sessionCtx, principal, memberships.TeamIDs)
		client.Advance(StateActive)
		reason := h.readLoop(sessionCtx, client)
		h.disconnect(sessionCtx, client, principal, reason)
	}()
}

func (h *Handler) readLoop(ctx context.Context, client *Client) string {
	conn := client.conn
	pongWait := 2 * h.cfg.PingInterval
	conn.SetReadLimit(h.cfg.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if client.Closed() {
				return client.closeText
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				publishLifecycle(ctx, "ws_error", client.Info(), err.Error())
			}
			return err.Error()
		}
		h.dispatcher.Dispatch(ctx, client, data)
	}
}

// disconnect prunes the client from the registry before presence runs so
// the user's remaining connection count is accurate.
func (h *Handler) disconnect(ctx context.Context, client *Client, principal auth.Principal, reason string) {
	keys := h.hub.Remove(client)
	h.presence.Disconnected(ctx, principal, client.Teams())

	observability.DecWSActive()
	publishLifecycle(ctx, "ws_disconnect", client.Info(), reason)
	client.Logger().Info("websocket disconnected", "reason", reason, "groups", len(keys))
}

// routeAllowed checks the entity named by the scoped route aliases. The
// session itself is the same on every route.
func routeAllowed(c *gin.Context, userID int, g membership.Groups) bool {
	if raw := c.Param("team_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		return err == nil && lo.Contains(g.TeamIDs, id)
	}
	if raw := c.Param("channel_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		return err == nil && lo.Contains(g.ChannelIDs, id)
	}
	if raw := c.Param("user_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		return err == nil && id > 0 && id != userID
	}
	return true
}
