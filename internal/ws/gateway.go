package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"chat-gateway/internal/apperrors"
	"chat-gateway/internal/chat"
	"chat-gateway/internal/middleware"
	"chat-gateway/internal/models"
	"chat-gateway/internal/observability"
	"chat-gateway/internal/telemetry"
)

const maxFrameSize = 64 << 10

// Presence receives activity and explicit status changes from connections.
type Presence interface {
	Touch(ctx context.Context, userID int64) error
	SetStatus(ctx context.Context, userID int64, status models.PresenceStatus) (models.PresenceState, error)
}

// Submitter stores and fans out chat messages.
type Submitter interface {
	SubmitFrame(ctx context.Context, sender chat.Sender, frame chat.Frame) (models.Message, error)
}

type GatewayConfig struct {
	SendBuffer   int
	WriteTimeout time.Duration
	PongTimeout  time.Duration
}

// Gateway serves GET /ws/{type}/{roomId}.
type Gateway struct {
	hub      *Hub
	router   *Router
	pipeline Submitter
	presence Presence
	audit    *telemetry.AuditEmitter
	cfg      GatewayConfig
	logger   *zap.Logger
}

func NewGateway(hub *Hub, router *Router, pipeline Submitter, presence Presence, audit *telemetry.AuditEmitter, cfg GatewayConfig, logger *zap.Logger) *Gateway {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{hub: hub, router: router, pipeline: pipeline, presence: presence, audit: audit, cfg: cfg, logger: logger}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authorizes the handshake, upgrades the connection and serves it.
func (g *Gateway) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-gateway/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		abortWith(c, apperrors.ErrUnauthenticated)
		return
	}

	room, err := g.router.Resolve(c.Request.URL.Path)
	if err != nil {
		abortWith(c, err)
		return
	}
	span.SetAttributes(attribute.String("room", room.String()), attribute.Int64("user_id", identity.UserID))

	requestID := observability.RequestIDFromRequest(c.Request)
	if err := g.router.Authorize(ctx, identity.UserID, room); err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			userID := identity.UserID
			g.audit.Emit(ctx, "WARN", "websocket handshake refused", room.String(), requestID, &userID)
		}
		abortWith(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := observability.TraceIDFromContext(ctx)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      identity.UserID,
		Room:        room,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	client := NewClient(conn, info, g.cfg.SendBuffer)
	go client.WritePump(g.cfg.WriteTimeout, g.cfg.PongTimeout*9/10)

	if _, err := g.router.Attach(ctx, client); err != nil {
		g.logger.Error("websocket attach failed", zap.String("room", room.String()), zap.Error(err))
		appErr := apperrors.FromError(err)
		client.Close(appErr.CloseCode, appErr.Message)
		return
	}

	g.publish(info, "ws_connect", "")
	g.logger.Info("websocket connected",
		zap.String("conn_id", info.ConnID),
		zap.Int64("user_id", info.UserID),
		zap.String("room", room.String()),
	)

	// context.WithoutCancel keeps trace values once the handshake request ends
	go g.readLoop(context.WithoutCancel(ctx), client)
}

func (g *Gateway) readLoop(ctx context.Context, client *Client) {
	conn := client.conn
	var closeReason string
	defer func() {
		g.hub.Release(client)
		g.publish(client.Info, "ws_disconnect", closeReason)
	}()

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(g.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(g.cfg.PongTimeout))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.publish(client.Info, "ws_error", closeReason)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(g.cfg.PongTimeout))
		g.handleFrame(ctx, client, raw)
	}
}

// handleFrame answers every frame with either a broadcast or a direct reply.
func (g *Gateway) handleFrame(ctx context.Context, client *Client, raw []byte) {
	frame, err := chat.DecodeFrame(raw)
	if err != nil {
		g.reply(client, errorEvent(err, ""))
		return
	}

	userID := client.Info.UserID
	switch frame.Type {
	case chat.FrameHeartbeat:
		if err := g.presence.Touch(ctx, userID); err != nil {
			g.reply(client, errorEvent(err, frame.Ref))
			return
		}
		g.reply(client, ackEvent(frame.Ref))
	case chat.FrameStatus:
		if _, err := g.presence.SetStatus(ctx, userID, frame.Status); err != nil {
			g.reply(client, errorEvent(err, frame.Ref))
			return
		}
		g.reply(client, ackEvent(frame.Ref))
	default:
		if _, err := g.pipeline.SubmitFrame(ctx, client.Info.Sender(), frame); err != nil {
			g.reply(client, errorEvent(err, frame.Ref))
		}
	}
}

func (g *Gateway) reply(client *Client, ev models.Event) {
	g.hub.Deliver(client, encodeEvent(ev))
}

func (g *Gateway) publish(info ConnInfo, event, reason string) {
	kind := string(info.Room.Kind)
	observability.IncWSEvent(kind, event)
	envelope := observability.NewEnvelope("ws_events", event, info.eventPayload(event, reason))
	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	if err := observability.PublishEvent(context.Background(), observability.WSRoutingKey(kind), envelope, headers); err != nil {
		g.logger.Debug("ws event publish failed", zap.Error(err))
	}
}

// Shutdown closes every connection with 1001 going away.
func (g *Gateway) Shutdown() {
	g.hub.CloseAll(websocket.CloseGoingAway, "server shutting down")
}

func abortWith(c *gin.Context, err error) {
	appErr := apperrors.FromError(err)
	status := appErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, gin.H{"error": appErr.Message, "code": appErr.Code})
}
