package models

import "time"

type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceBusy    PresenceStatus = "busy"
	PresenceOffline PresenceStatus = "offline"
)

func (s PresenceStatus) Valid() bool {
	switch s {
	case PresenceOnline, PresenceAway, PresenceBusy, PresenceOffline:
		return true
	}
	return false
}

type OnlineUser struct {
	UserID      int64          `json:"userId"`
	Name        string         `json:"name"`
	Avatar      string         `json:"avatar,omitempty"`
	Status      PresenceStatus `json:"status"`
	ConnectedAt time.Time      `json:"connectedAt"`
}
