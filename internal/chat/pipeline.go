// Package chat validates inbound messages, stores them and fans them out.
package chat

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"chat-gateway/internal/apperrors"
	"chat-gateway/internal/models"
	"chat-gateway/internal/observability"
	"chat-gateway/internal/repositories"
)

// Broadcaster delivers a payload to every connection of a room except the
// listed connection ids.
type Broadcaster interface {
	Broadcast(room models.RoomRef, payload []byte, skip ...string) int
}

// ActivityRecorder is told about every stored message.
type ActivityRecorder interface {
	Touch(ctx context.Context, userID int64) error
}

// Sender identifies the connection a frame arrived on.
type Sender struct {
	ConnID string
	UserID int64
	Room   models.RoomRef
}

type Pipeline struct {
	store    repositories.MessageRepository
	hub      Broadcaster
	activity ActivityRecorder
	locks    *roomLocks
	logger   *zap.Logger
}

func NewPipeline(store repositories.MessageRepository, hub Broadcaster, activity ActivityRecorder, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:    store,
		hub:      hub,
		activity: activity,
		locks:    newRoomLocks(),
		logger:   logger,
	}
}

// LockRoom serializes work on one room with message submission. The returned
// function releases the lock.
func (p *Pipeline) LockRoom(room models.RoomRef) func() {
	return p.locks.lock(room)
}

// Submit decodes raw, stores the message and broadcasts it to the room. Nothing
// is broadcast unless the message was stored.
func (p *Pipeline) Submit(ctx context.Context, sender Sender, raw []byte) (models.Message, error) {
	frame, err := DecodeFrame(raw)
	if err != nil {
		observability.IncMessage("unknown", "malformed")
		return models.Message{}, err
	}
	if frame.Type != FrameMessage {
		return models.Message{}, apperrors.WithMessage(apperrors.ErrMalformedMessage, "not a message frame")
	}
	return p.SubmitFrame(ctx, sender, frame)
}

// SubmitFrame is Submit for an already decoded frame.
func (p *Pipeline) SubmitFrame(ctx context.Context, sender Sender, frame Frame) (models.Message, error) {
	ctx, span := otel.Tracer("chat-gateway/chat").Start(ctx, "chat.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("room", sender.Room.String()),
		attribute.Int64("sender_id", sender.UserID),
	)

	kind, content, err := messageFromFrame(frame)
	if err != nil {
		observability.IncMessage(string(frame.Kind), "malformed")
		span.SetStatus(codes.Error, "malformed message")
		return models.Message{}, err
	}
	if kind == models.KindArchiveRef {
		if _, err := ExtractArchiveID(content); err != nil {
			observability.IncMessage(string(kind), "invalid_archive_ref")
			span.SetStatus(codes.Error, "invalid archive reference")
			return models.Message{}, err
		}
	}

	unlock := p.locks.lock(sender.Room)
	stored, err := p.store.Append(ctx, models.Message{
		RoomRef:  sender.Room,
		SenderID: sender.UserID,
		Kind:     kind,
		Body:     content,
	})
	if err != nil {
		unlock()
		observability.IncMessage(string(kind), "persistence_failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		p.logger.Error("message append failed",
			zap.String("room", sender.Room.String()),
			zap.Int64("sender_id", sender.UserID),
			zap.Error(err),
		)
		return models.Message{}, apperrors.Wrap(err, apperrors.ErrPersistenceFailed)
	}

	payload, err := json.Marshal(models.Event{Type: models.EventMessage, Message: &stored})
	if err != nil {
		unlock()
		return models.Message{}, apperrors.Wrap(err, apperrors.ErrInternal)
	}
	delivered := p.hub.Broadcast(sender.Room, payload)
	unlock()

	observability.IncMessage(string(kind), "stored")
	span.SetAttributes(attribute.Int("delivered", delivered))

	if p.activity != nil {
		if err := p.activity.Touch(ctx, sender.UserID); err != nil {
			p.logger.Warn("presence touch failed", zap.Int64("user_id", sender.UserID), zap.Error(err))
		}
	}
	return stored, nil
}
