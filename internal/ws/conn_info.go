package ws

import (
	"time"

	"chat-gateway/internal/chat"
	"chat-gateway/internal/models"
)

type ConnInfo struct {
	ConnID      string
	UserID      int64
	Room        models.RoomRef
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// Sender identifies this connection to the message pipeline.
func (i ConnInfo) Sender() chat.Sender {
	return chat.Sender{ConnID: i.ConnID, UserID: i.UserID, Room: i.Room}
}

func (i ConnInfo) eventPayload(event, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        string(i.Room.Kind),
			"resource_id": i.Room.ID,
			"event":       event,
			"conn_id":     i.ConnID,
			"duration_ms": time.Since(i.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   i.UserID,
			"device_id": i.DeviceID,
			"ip":        i.IP,
		},
	}
}
