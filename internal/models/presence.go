package models

import "time"

// PresenceStatus is a user's availability.
type PresenceStatus string

const (
	StatusOnline       PresenceStatus = "ONLINE"
	StatusAway         PresenceStatus = "AWAY"
	StatusDoNotDisturb PresenceStatus = "DO_NOT_DISTURB"
	StatusOffline      PresenceStatus = "OFFLINE"
)

// Valid reports whether s is a known status.
func (s PresenceStatus) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusDoNotDisturb, StatusOffline:
		return true
	}
	return false
}

// PresenceState is the single live presence record of a user.
type PresenceState struct {
	UserID         int64          `json:"userId"`
	Status         PresenceStatus `json:"status"`
	LastActivityAt time.Time      `json:"lastActivityAt"`
}

// PresenceEvent is pushed to interested peers when a user's status changes.
type PresenceEvent struct {
	UserID       int64          `json:"userId"`
	Status       PresenceStatus `json:"status"`
	DisplayLabel string         `json:"displayLabel"`
	ColorHint    string         `json:"colorHint"`
}
