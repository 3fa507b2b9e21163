package models

import (
	"fmt"
	"strconv"
)

// RoomKind is the variant tag of a room reference.
type RoomKind string

const (
	RoomDirect  RoomKind = "dm"
	RoomGroup   RoomKind = "group"
	RoomArchive RoomKind = "archive"
)

// Valid reports whether k is one of the known room variants.
func (k RoomKind) Valid() bool {
	switch k {
	case RoomDirect, RoomGroup, RoomArchive:
		return true
	}
	return false
}

// RoomRef identifies one room. It is comparable and used as a map key.
type RoomRef struct {
	Kind RoomKind `db:"room_type" json:"roomType"`
	ID   int64    `db:"room_id" json:"roomId"`
}

// String renders the reference as "kind:id".
func (r RoomRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, strconv.FormatInt(r.ID, 10))
}

// IsZero reports whether r is unset.
func (r RoomRef) IsZero() bool {
	return r.Kind == "" && r.ID == 0
}

// DirectRoom is a private room between exactly two users.
type DirectRoom struct {
	ID           int64 `db:"id" json:"id"`
	ParticipantA int64 `db:"participant_a" json:"participant_a"`
	ParticipantB int64 `db:"participant_b" json:"participant_b"`
}

// Has reports whether userID is one of the two participants.
func (r DirectRoom) Has(userID int64) bool {
	return r.ParticipantA == userID || r.ParticipantB == userID
}

// GroupRoom is a team room. Kind distinguishes ordinary chat from archive rooms.
type GroupRoom struct {
	ID     int64    `db:"id" json:"id"`
	TeamID int64    `db:"team_id" json:"team_id"`
	Scope  string   `db:"scope" json:"scope"`
	Kind   RoomKind `db:"room_kind" json:"room_kind"`
}
