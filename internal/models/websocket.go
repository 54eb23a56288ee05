package models

import (
	"encoding/json"
	"strconv"
)

type EventName string

// Inbound events
const (
	EventProjectJoin          EventName = "project:join"
	EventProjectLeave         EventName = "project:leave"
	EventTaskJoin             EventName = "task:join"
	EventTaskLeave            EventName = "task:leave"
	EventTaskTyping           EventName = "task:typing"
	EventTaskStopTyping       EventName = "task:stop_typing"
	EventTaskStatusChange     EventName = "task:status_change"
	EventCommentAdd           EventName = "comment:add"
	EventProjectMessage       EventName = "project:message"
	EventProjectMessageEdit   EventName = "project:message_edit"
	EventProjectMessageDelete EventName = "project:message_delete"
	EventUserStatusUpdate     EventName = "user:status_update"
	EventNotificationMarkRead EventName = "notification:mark_read"
	EventPing                 EventName = "ping"
)

// Outbound events
const (
	EventUserOnline                EventName = "user:online"
	EventUserOffline               EventName = "user:offline"
	EventUserStatusChanged         EventName = "user:status_changed"
	EventUsersOnlineList           EventName = "users:online_list"
	EventProjectUserJoined         EventName = "project:user_joined"
	EventProjectUserLeft           EventName = "project:user_left"
	EventProjectJoined             EventName = "project:joined"
	EventProjectLeft               EventName = "project:left"
	EventTaskUserJoined            EventName = "task:user_joined"
	EventTaskUserLeft              EventName = "task:user_left"
	EventTaskJoined                EventName = "task:joined"
	EventTaskLeft                  EventName = "task:left"
	EventTaskUserTyping            EventName = "task:user_typing"
	EventTaskUserStoppedTyping     EventName = "task:user_stopped_typing"
	EventTaskStatusChanged         EventName = "task:status_changed"
	EventCommentAdded              EventName = "comment:added"
	EventProjectMessageReceived    EventName = "project:message_received"
	EventProjectMessageEdited      EventName = "project:message_edited"
	EventProjectMessageDeleted     EventName = "project:message_deleted"
	EventNotificationNew           EventName = "notification:new"
	EventNotificationMarkedRead    EventName = "notification:marked_read"
	EventNotificationAllMarkedRead EventName = "notification:all_marked_read"
	EventNotificationDeleted       EventName = "notification:deleted"
	EventError                     EventName = "error"
	EventPong                      EventName = "pong"
)

// Envelope is the JSON frame exchanged over the websocket in both directions.
type Envelope struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type ErrorPayload struct {
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
	Event   EventName `json:"event,omitempty"`
}

type RoomUserPayload struct {
	ProjectID int64      `json:"projectId,omitempty"`
	TaskID    int64      `json:"taskId,omitempty"`
	User      PublicUser `json:"user"`
	Timestamp string     `json:"timestamp"`
}

// RoomAckPayload acknowledges a join or leave to the requesting connection.
type RoomAckPayload struct {
	ProjectID int64 `json:"projectId,omitempty"`
	TaskID    int64 `json:"taskId,omitempty"`
}

type TaskStatusChangedPayload struct {
	TaskID    int64      `json:"taskId"`
	ProjectID *int64     `json:"projectId,omitempty"`
	Status    TaskStatus `json:"status"`
	OldStatus TaskStatus `json:"oldStatus"`
	ChangedBy PublicUser `json:"changedBy"`
	Timestamp string     `json:"timestamp"`
}

type UserStatusPayload struct {
	UserID    int64          `json:"userId"`
	Name      string         `json:"name,omitempty"`
	Avatar    string         `json:"avatar,omitempty"`
	Status    PresenceStatus `json:"status"`
	Timestamp string         `json:"timestamp"`
}

type NotificationIDPayload struct {
	NotificationID int64 `json:"notificationId"`
}

type AllMarkedReadPayload struct {
	UserID  int64 `json:"userId"`
	Updated int64 `json:"updatedCount"`
}

type TypingPayload struct {
	TaskID    int64      `json:"taskId"`
	User      PublicUser `json:"user"`
	Timestamp string     `json:"timestamp"`
}

type OnlineListPayload struct {
	Users []OnlineUser `json:"users"`
}

type PongPayload struct {
	Timestamp string `json:"timestamp"`
}

// Room names. A room exists only while a connection is subscribed to it.
func ProjectRoom(id int64) string { return "project:" + strconv.FormatInt(id, 10) }
func TaskRoom(id int64) string    { return "task:" + strconv.FormatInt(id, 10) }
func UserRoom(id int64) string    { return "user:" + strconv.FormatInt(id, 10) }
