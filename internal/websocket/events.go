package websocket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"taskflow/internal/models"
)

// inboundEvent is the closed set of events a client may send. Every
// implementation is handled by Router.dispatch.
type inboundEvent interface {
	name() models.EventName
}

type (
	projectJoinEvent struct {
		ProjectID int64 `json:"projectId"`
	}
	projectLeaveEvent struct {
		ProjectID int64 `json:"projectId"`
	}
	taskJoinEvent struct {
		TaskID int64 `json:"taskId"`
	}
	taskLeaveEvent struct {
		TaskID int64 `json:"taskId"`
	}
	taskTypingEvent struct {
		TaskID int64 `json:"taskId"`
	}
	taskStopTypingEvent struct {
		TaskID int64 `json:"taskId"`
	}
	// OldStatus is accepted for compatibility and ignored; the stored value
	// is authoritative.
	taskStatusChangeEvent struct {
		TaskID    int64             `json:"taskId"`
		Status    models.TaskStatus `json:"status"`
		OldStatus models.TaskStatus `json:"oldStatus"`
	}
	commentAddEvent struct {
		TaskID  int64  `json:"taskId"`
		Content string `json:"content"`
	}
	projectMessageEvent struct {
		ProjectID int64  `json:"projectId"`
		Message   string `json:"message"`
	}
	projectMessageEditEvent struct {
		ProjectID int64  `json:"projectId"`
		MessageID int64  `json:"messageId"`
		Message   string `json:"message"`
	}
	projectMessageDeleteEvent struct {
		ProjectID int64 `json:"projectId"`
		MessageID int64 `json:"messageId"`
	}
	userStatusUpdateEvent struct {
		Status models.PresenceStatus `json:"status"`
	}
	notificationMarkReadEvent struct {
		NotificationID int64 `json:"notificationId"`
	}
	pingEvent struct{}
)

func (projectJoinEvent) name() models.EventName          { return models.EventProjectJoin }
func (projectLeaveEvent) name() models.EventName         { return models.EventProjectLeave }
func (taskJoinEvent) name() models.EventName             { return models.EventTaskJoin }
func (taskLeaveEvent) name() models.EventName            { return models.EventTaskLeave }
func (taskTypingEvent) name() models.EventName           { return models.EventTaskTyping }
func (taskStopTypingEvent) name() models.EventName       { return models.EventTaskStopTyping }
func (taskStatusChangeEvent) name() models.EventName     { return models.EventTaskStatusChange }
func (commentAddEvent) name() models.EventName           { return models.EventCommentAdd }
func (projectMessageEvent) name() models.EventName       { return models.EventProjectMessage }
func (projectMessageEditEvent) name() models.EventName   { return models.EventProjectMessageEdit }
func (projectMessageDeleteEvent) name() models.EventName { return models.EventProjectMessageDelete }
func (userStatusUpdateEvent) name() models.EventName     { return models.EventUserStatusUpdate }
func (notificationMarkReadEvent) name() models.EventName { return models.EventNotificationMarkRead }
func (pingEvent) name() models.EventName                 { return models.EventPing }

var errUnknownEvent = errors.New("unknown event")

// decodeEvent parses an envelope into a typed event. The envelope's event
// name is returned even when the payload is malformed so errors can be
// scoped to it.
func decodeEvent(raw []byte) (inboundEvent, models.EventName, error) {
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, "", fmt.Errorf("malformed message: %w", err)
	}

	var ev inboundEvent
	var err error
	switch env.Event {
	case models.EventProjectJoin:
		ev, err = decodeID(env.Data, "projectId", func(id int64) inboundEvent { return projectJoinEvent{ProjectID: id} })
	case models.EventProjectLeave:
		ev, err = decodeID(env.Data, "projectId", func(id int64) inboundEvent { return projectLeaveEvent{ProjectID: id} })
	case models.EventTaskJoin:
		ev, err = decodeID(env.Data, "taskId", func(id int64) inboundEvent { return taskJoinEvent{TaskID: id} })
	case models.EventTaskLeave:
		ev, err = decodeID(env.Data, "taskId", func(id int64) inboundEvent { return taskLeaveEvent{TaskID: id} })
	case models.EventTaskTyping:
		ev, err = decodeID(env.Data, "taskId", func(id int64) inboundEvent { return taskTypingEvent{TaskID: id} })
	case models.EventTaskStopTyping:
		ev, err = decodeID(env.Data, "taskId", func(id int64) inboundEvent { return taskStopTypingEvent{TaskID: id} })
	case models.EventTaskStatusChange:
		ev, err = decodePayload[taskStatusChangeEvent](env.Data)
	case models.EventCommentAdd:
		ev, err = decodePayload[commentAddEvent](env.Data)
	case models.EventProjectMessage:
		ev, err = decodePayload[projectMessageEvent](env.Data)
	case models.EventProjectMessageEdit:
		ev, err = decodePayload[projectMessageEditEvent](env.Data)
	case models.EventProjectMessageDelete:
		ev, err = decodePayload[projectMessageDeleteEvent](env.Data)
	case models.EventUserStatusUpdate:
		ev, err = decodeStatus(env.Data)
	case models.EventNotificationMarkRead:
		ev, err = decodeID(env.Data, "notificationId", func(id int64) inboundEvent { return notificationMarkReadEvent{NotificationID: id} })
	case models.EventPing:
		ev = pingEvent{}
	default:
		return nil, env.Event, fmt.Errorf("%w: %q", errUnknownEvent, env.Event)
	}
	if err != nil {
		return nil, env.Event, err
	}
	return ev, env.Event, nil
}

func decodePayload[T inboundEvent](data json.RawMessage) (inboundEvent, error) {
	var ev T
	if len(data) == 0 {
		return nil, errors.New("missing payload")
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	return ev, nil
}

// decodeID accepts either a bare number or an object carrying key.
func decodeID(data json.RawMessage, key string, build func(int64) inboundEvent) (inboundEvent, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, fmt.Errorf("%s is required", key)
	}

	var id int64
	if data[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
		raw, ok := obj[key]
		if !ok {
			return nil, fmt.Errorf("%s is required", key)
		}
		data = raw
	}
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("%s must be an integer", key)
	}
	if id <= 0 {
		return nil, fmt.Errorf("%s must be positive", key)
	}
	return build(id), nil
}

// decodeStatus accepts either a bare string or {"status": "..."}.
func decodeStatus(data json.RawMessage) (inboundEvent, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var status models.PresenceStatus
		if err := json.Unmarshal(data, &status); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
		return userStatusUpdateEvent{Status: status}, nil
	}
	return decodePayload[userStatusUpdateEvent](data)
}

func encode(event models.EventName, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return json.Marshal(models.Envelope{Event: event, Data: data})
}
