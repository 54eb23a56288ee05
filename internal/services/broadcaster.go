package services

import "taskflow/internal/models"

// Broadcaster fans events out to live connections. The websocket hub
// implements it; delivery is best effort.
type Broadcaster interface {
	// BroadcastToRooms sends once to every connection subscribed to any of
	// rooms, skipping the listed connection ids.
	BroadcastToRooms(rooms []string, event models.EventName, payload any, exceptConnIDs ...string)
	// SendToUser sends to the user's personal room and reports whether the
	// user had a live connection.
	SendToUser(userID int64, event models.EventName, payload any) bool
	IsOnline(userID int64) bool
}
