package presence

import "chat-gateway/internal/models"

type display struct {
	label string
	color string
}

var displayTable = map[models.PresenceStatus]display{
	models.StatusOnline:       {label: "Online", color: "green"},
	models.StatusAway:         {label: "Away", color: "yellow"},
	models.StatusDoNotDisturb: {label: "Do not disturb", color: "red"},
	models.StatusOffline:      {label: "Offline", color: "gray"},
}

// Describe returns the display label and color hint of a status.
func Describe(status models.PresenceStatus) (label, color string) {
	d, ok := displayTable[status]
	if !ok {
		return string(status), "gray"
	}
	return d.label, d.color
}

// EventFor builds the presence event pushed to peers.
func EventFor(st models.PresenceState) models.PresenceEvent {
	label, color := Describe(st.Status)
	return models.PresenceEvent{
		UserID:       st.UserID,
		Status:       st.Status,
		DisplayLabel: label,
		ColorHint:    color,
	}
}
