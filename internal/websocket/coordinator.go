package websocket

import (
	"context"

	"taskflow/internal/models"
	"taskflow/internal/services"
)

// Coordinator authorizes room joins against the database and keeps room
// membership in the hub. Each join is authorized from scratch; leaving needs
// no authorization. Membership is not revisited after a successful join.
type Coordinator struct {
	hub    *Hub
	access *services.AccessService
}

func NewCoordinator(hub *Hub, access *services.AccessService) *Coordinator {
	return &Coordinator{hub: hub, access: access}
}

func (co *Coordinator) JoinProject(ctx context.Context, c *Client, projectID int64) error {
	if err := co.access.CanAccessProject(ctx, c.user, projectID); err != nil {
		return err
	}

	room := models.ProjectRoom(projectID)
	added, live := co.hub.Join(c, room)
	if !live {
		return nil
	}
	if added {
		co.hub.BroadcastToRooms([]string{room}, models.EventProjectUserJoined, models.RoomUserPayload{
			ProjectID: projectID,
			User:      c.user.Public(),
			Timestamp: co.hub.timestamp(),
		}, c.id)
		c.log.Debug().Str("room", room).Msg("joined room")
	}
	c.Send(models.EventProjectJoined, models.RoomAckPayload{ProjectID: projectID})
	return nil
}

func (co *Coordinator) LeaveProject(c *Client, projectID int64) {
	room := models.ProjectRoom(projectID)
	if co.hub.Leave(c, room) {
		co.hub.BroadcastToRooms([]string{room}, models.EventProjectUserLeft, models.RoomUserPayload{
			ProjectID: projectID,
			User:      c.user.Public(),
			Timestamp: co.hub.timestamp(),
		})
		c.log.Debug().Str("room", room).Msg("left room")
	}
	c.Send(models.EventProjectLeft, models.RoomAckPayload{ProjectID: projectID})
}

func (co *Coordinator) JoinTask(ctx context.Context, c *Client, taskID int64) error {
	if _, err := co.access.CanAccessTask(ctx, c.user, taskID); err != nil {
		return err
	}

	room := models.TaskRoom(taskID)
	added, live := co.hub.Join(c, room)
	if !live {
		return nil
	}
	if added {
		co.hub.BroadcastToRooms([]string{room}, models.EventTaskUserJoined, models.RoomUserPayload{
			TaskID:    taskID,
			User:      c.user.Public(),
			Timestamp: co.hub.timestamp(),
		}, c.id)
		c.log.Debug().Str("room", room).Msg("joined room")
	}
	c.Send(models.EventTaskJoined, models.RoomAckPayload{TaskID: taskID})
	return nil
}

func (co *Coordinator) LeaveTask(c *Client, taskID int64) {
	room := models.TaskRoom(taskID)
	if co.hub.Leave(c, room) {
		co.hub.BroadcastToRooms([]string{room}, models.EventTaskUserLeft, models.RoomUserPayload{
			TaskID:    taskID,
			User:      c.user.Public(),
			Timestamp: co.hub.timestamp(),
		})
		c.log.Debug().Str("room", room).Msg("left room")
	}
	c.Send(models.EventTaskLeft, models.RoomAckPayload{TaskID: taskID})
}
