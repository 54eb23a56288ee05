package websocket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"taskflow/internal/metrics"
	"taskflow/internal/models"
	"taskflow/internal/presence"
	"taskflow/internal/services"
	"taskflow/pkg/logger"
)

// Router dispatches inbound events. Handlers never tear down the connection:
// every failure becomes a scoped error event for the sender.
type Router struct {
	hub           *Hub
	coord         *Coordinator
	tasks         *services.TaskService
	messages      *services.MessageService
	notifications *services.NotificationService
	log           zerolog.Logger
}

func NewRouter(hub *Hub, coord *Coordinator, tasks *services.TaskService, messages *services.MessageService, notifications *services.NotificationService) *Router {
	return &Router{
		hub:           hub,
		coord:         coord,
		tasks:         tasks,
		messages:      messages,
		notifications: notifications,
		log:           logger.WithComponent("router"),
	}
}

// Handle processes one raw frame from c. Frames from a connection that has
// been replaced or disconnected are dropped.
func (r *Router) Handle(ctx context.Context, c *Client, raw []byte) {
	started := time.Now()
	if !r.hub.Attached(c) {
		return
	}

	ev, name, err := decodeEvent(raw)
	label := string(name)
	if errors.Is(err, errUnknownEvent) || name == "" {
		label = "unknown"
	}
	if err == nil {
		err = r.dispatch(ctx, c, ev)
	} else {
		err = services.Validation(err.Error())
	}

	if err == nil {
		metrics.ObserveEvent(label, "ok", started)
		return
	}

	de, internal := services.AsDomainError(err)
	if internal {
		c.log.Error().Err(err).Str("event", string(name)).Msg("event handler failed")
		metrics.ObserveEvent(label, "error", started)
	} else {
		c.log.Debug().Str("event", string(name)).Str("code", de.Code).Msg(de.Message)
		metrics.ObserveEvent(label, "rejected", started)
	}
	c.sendError(name, de.Code, de.Message)
}

func (r *Router) dispatch(ctx context.Context, c *Client, ev inboundEvent) error {
	switch e := ev.(type) {
	case projectJoinEvent:
		return r.coord.JoinProject(ctx, c, e.ProjectID)
	case projectLeaveEvent:
		r.coord.LeaveProject(c, e.ProjectID)
		return nil
	case taskJoinEvent:
		return r.coord.JoinTask(ctx, c, e.TaskID)
	case taskLeaveEvent:
		r.coord.LeaveTask(c, e.TaskID)
		return nil
	case taskTypingEvent:
		r.typing(c, e.TaskID, models.EventTaskUserTyping)
		return nil
	case taskStopTypingEvent:
		r.typing(c, e.TaskID, models.EventTaskUserStoppedTyping)
		return nil
	case taskStatusChangeEvent:
		_, err := r.tasks.ChangeStatus(ctx, c.user, e.TaskID, e.Status)
		return err
	case commentAddEvent:
		_, err := r.tasks.AddComment(ctx, c.user, e.TaskID, e.Content)
		return err
	case projectMessageEvent:
		_, err := r.messages.Send(ctx, c.user, e.ProjectID, e.Message)
		return err
	case projectMessageEditEvent:
		_, err := r.messages.Edit(ctx, c.user, e.ProjectID, e.MessageID, e.Message)
		return err
	case projectMessageDeleteEvent:
		return r.messages.Delete(ctx, c.user, e.ProjectID, e.MessageID)
	case userStatusUpdateEvent:
		return r.updateStatus(c, e.Status)
	case notificationMarkReadEvent:
		return r.notifications.MarkRead(ctx, c.user.ID, e.NotificationID)
	case pingEvent:
		c.Send(models.EventPong, models.PongPayload{Timestamp: r.hub.timestamp()})
		return nil
	default:
		return fmt.Errorf("no handler for event %q", ev.name())
	}
}

// typing is relayed without authorization; it carries no data beyond the
// sender's public identity.
func (r *Router) typing(c *Client, taskID int64, event models.EventName) {
	r.hub.BroadcastToRooms([]string{models.TaskRoom(taskID)}, event, models.TypingPayload{
		TaskID:    taskID,
		User:      c.user.Public(),
		Timestamp: r.hub.timestamp(),
	}, c.id)
}

func (r *Router) updateStatus(c *Client, status models.PresenceStatus) error {
	err := r.hub.UpdateStatus(c, status)
	switch {
	case errors.Is(err, presence.ErrInvalidStatus):
		return services.Validation(err.Error())
	case errors.Is(err, presence.ErrNotOnline):
		return nil
	}
	return err
}
