package models

import (
	"encoding/json"
	"time"
)

type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

func (p NotificationPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Notification struct {
	ID        int64                `json:"id"`
	UserID    int64                `json:"userId"`
	Type      string               `json:"type"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Data      json.RawMessage      `json:"data,omitempty"`
	ProjectID *int64               `json:"projectId,omitempty"`
	TaskID    *int64               `json:"taskId,omitempty"`
	MessageID *int64               `json:"messageId,omitempty"`
	ActionURL string               `json:"actionUrl,omitempty"`
	Priority  NotificationPriority `json:"priority"`
	ReadAt    *time.Time           `json:"readAt,omitempty"`
	CreatedAt time.Time            `json:"createdAt"`
}

type CreateNotificationRequest struct {
	UserID    int64                `json:"userId"`
	Type      string               `json:"type"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Data      json.RawMessage      `json:"data,omitempty"`
	ProjectID *int64               `json:"projectId,omitempty"`
	TaskID    *int64               `json:"taskId,omitempty"`
	MessageID *int64               `json:"messageId,omitempty"`
	ActionURL string               `json:"actionUrl,omitempty"`
	Priority  NotificationPriority `json:"priority,omitempty"`
}

type NotificationFilter struct {
	Type       string
	UnreadOnly bool
	Limit      int
	Offset     int
}

type NotificationPage struct {
	Notifications []*Notification `json:"notifications"`
	UnreadCount   int             `json:"unreadCount"`
	Page          int             `json:"page"`
	Limit         int             `json:"limit"`
	HasMore       bool            `json:"hasMore"`
}
