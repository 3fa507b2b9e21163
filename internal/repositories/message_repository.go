package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"chat-gateway/internal/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// MessageRepository is the append-only, time ordered message store.
type MessageRepository interface {
	Append(ctx context.Context, msg models.Message) (models.Message, error)
	// Recent returns the newest limit messages of a room, oldest first.
	Recent(ctx context.Context, room models.RoomRef, limit int) ([]models.Message, error)
	// Page returns up to limit messages strictly older than before, newest first.
	Page(ctx context.Context, room models.RoomRef, before time.Time, limit int) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append stores a message. ID and CreatedAt are assigned by the database.
func (r *MessageRepo) Append(ctx context.Context, msg models.Message) (models.Message, error) {
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (room_type, room_id, sender_id, kind, body) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		msg.RoomRef.Kind, msg.RoomRef.ID, msg.SenderID, msg.Kind, msg.Body).
		Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

func (r *MessageRepo) Recent(ctx context.Context, room models.RoomRef, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, room_type, room_id, sender_id, kind, body, created_at
        FROM messages
        WHERE room_type=$1 AND room_id=$2
        ORDER BY created_at DESC, id DESC
        LIMIT $3`, room.Kind, room.ID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *MessageRepo) Page(ctx context.Context, room models.RoomRef, before time.Time, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, room_type, room_id, sender_id, kind, body, created_at
        FROM messages
        WHERE room_type=$1 AND room_id=$2 AND created_at < $3
        ORDER BY created_at DESC, id DESC
        LIMIT $4`, room.Kind, room.ID, before, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
