package ws

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"chat-gateway/internal/apperrors"
	"chat-gateway/internal/models"
	"chat-gateway/internal/repositories"
)

// RoomLocker serializes work on a room with message submission.
type RoomLocker interface {
	LockRoom(room models.RoomRef) func()
}

// Router turns handshake paths into rooms, checks membership and attaches
// clients with an initial snapshot.
type Router struct {
	members      repositories.MembershipRepository
	messages     repositories.MessageRepository
	hub          *Hub
	locker       RoomLocker
	snapshotSize int
	logger       *zap.Logger
}

func NewRouter(members repositories.MembershipRepository, messages repositories.MessageRepository, hub *Hub, locker RoomLocker, snapshotSize int, logger *zap.Logger) *Router {
	if snapshotSize <= 0 {
		snapshotSize = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		members:      members,
		messages:     messages,
		hub:          hub,
		locker:       locker,
		snapshotSize: snapshotSize,
		logger:       logger,
	}
}

// Resolve parses "/ws/{dm|group|archive}/{roomId}".
func (r *Router) Resolve(path string) (models.RoomRef, error) {
	rest, ok := strings.CutPrefix(path, "/ws/")
	if !ok {
		return models.RoomRef{}, apperrors.ErrMalformedRoute
	}
	parts := strings.Split(strings.TrimSuffix(rest, "/"), "/")
	if len(parts) != 2 {
		return models.RoomRef{}, apperrors.ErrMalformedRoute
	}

	kind := models.RoomKind(parts[0])
	if !kind.Valid() {
		return models.RoomRef{}, apperrors.WithMessage(apperrors.ErrMalformedRoute, "unknown room type")
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return models.RoomRef{}, apperrors.WithMessage(apperrors.ErrMalformedRoute, "invalid room id")
	}
	return models.RoomRef{Kind: kind, ID: id}, nil
}

// Authorize fails with ErrUnauthorized unless userID belongs to room.
func (r *Router) Authorize(ctx context.Context, userID int64, room models.RoomRef) error {
	member, err := r.members.IsMember(ctx, userID, room)
	if err != nil {
		r.logger.Error("membership lookup failed", zap.Int64("user_id", userID), zap.String("room", room.String()), zap.Error(err))
		return apperrors.Wrap(err, apperrors.ErrInternal)
	}
	if !member {
		return apperrors.ErrUnauthorized
	}
	return nil
}

// Attach registers c and queues the newest messages of its room, oldest first.
// Snapshot and registration happen under the room lock, so every later message
// reaches c live and no earlier one is sent twice.
func (r *Router) Attach(ctx context.Context, c *Client) (bool, error) {
	room := c.Info.Room
	if r.locker != nil {
		unlock := r.locker.LockRoom(room)
		defer unlock()
	}

	recent, err := r.messages.Recent(ctx, room, r.snapshotSize)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrInternal)
	}
	if recent == nil {
		recent = []models.Message{}
	}

	first := r.hub.Register(c)
	r.hub.Deliver(c, encodeEvent(models.Event{Type: models.EventSnapshot, Messages: recent}))
	return first, nil
}
