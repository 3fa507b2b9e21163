package models

import "time"

// MessageKind classifies message content.
type MessageKind string

const (
	KindText       MessageKind = "TEXT"
	KindImage      MessageKind = "IMAGE"
	KindArchiveRef MessageKind = "ARCHIVE_REF"
)

// Valid reports whether k is a known message kind.
func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindArchiveRef:
		return true
	}
	return false
}

// Message represents a persisted chat message. Messages are immutable once stored and
// ordered within a room by (CreatedAt, ID).
type Message struct {
	ID int64 `db:"id" json:"id"`
	RoomRef
	SenderID  int64       `db:"sender_id" json:"senderId"`
	Kind      MessageKind `db:"kind" json:"kind"`
	Body      string      `db:"body" json:"content"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
}

// Before reports whether m sorts strictly before other in room order.
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}
