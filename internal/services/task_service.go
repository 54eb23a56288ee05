package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"taskflow/internal/database"
	"taskflow/internal/models"
	"taskflow/pkg/logger"
)

const maxCommentLength = 5000

// TaskService is the single write path for task status changes and comments,
// shared by the websocket router and the REST handlers.
type TaskService struct {
	db     database.Database
	access *AccessService
	events Broadcaster
	log    zerolog.Logger
	now    func() time.Time
}

func NewTaskService(db database.Database, access *AccessService, events Broadcaster) *TaskService {
	return &TaskService{
		db:     db,
		access: access,
		events: events,
		log:    logger.WithComponent("tasks"),
		now:    time.Now,
	}
}

// ChangeStatus validates, authorizes and persists a status change, then
// broadcasts task:status_changed to the task room and the project room.
// OldStatus in the broadcast is the value replaced in storage.
func (s *TaskService) ChangeStatus(ctx context.Context, actor *models.User, taskID int64, status models.TaskStatus) (*models.TaskStatusChangedPayload, error) {
	if !status.Valid() {
		return nil, Validation("invalid status: must be one of todo, inprogress, review, done")
	}

	task, err := s.access.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.access.CanChangeTaskStatus(actor, task); err != nil {
		return nil, err
	}

	oldStatus, err := s.db.UpdateTaskStatus(ctx, taskID, status)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, notFound("task not found")
		}
		return nil, fmt.Errorf("update task status: %w", err)
	}

	if err := s.db.RecordTaskActivity(ctx, &models.TaskActivity{
		TaskID:   taskID,
		UserID:   actor.ID,
		Action:   "status_changed",
		OldValue: string(oldStatus),
		NewValue: string(status),
	}); err != nil {
		s.log.Error().Err(err).Int64("task_id", taskID).Msg("failed to record task activity")
	}

	payload := &models.TaskStatusChangedPayload{
		TaskID:    taskID,
		ProjectID: task.ProjectID,
		Status:    status,
		OldStatus: oldStatus,
		ChangedBy: actor.Public(),
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}

	s.events.BroadcastToRooms(taskRooms(task), models.EventTaskStatusChanged, payload)

	s.log.Info().
		Int64("task_id", taskID).
		Int64("user_id", actor.ID).
		Str("old_status", string(oldStatus)).
		Str("status", string(status)).
		Msg("task status changed")
	return payload, nil
}

// AddComment authorizes the actor against the task, stores the comment and
// broadcasts comment:added to the task room and the project room.
func (s *TaskService) AddComment(ctx context.Context, actor *models.User, taskID int64, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, Validation("comment content is required")
	}
	if utf8.RuneCountInString(content) > maxCommentLength {
		return nil, Validation(fmt.Sprintf("comment must be at most %d characters", maxCommentLength))
	}

	task, err := s.access.CanAccessTask(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}

	comment, err := s.db.CreateComment(ctx, taskID, actor.ID, content)
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	comment.Author = actor.Public()

	s.events.BroadcastToRooms(taskRooms(task), models.EventCommentAdded, comment)
	return comment, nil
}

// taskRooms is the task room plus the room of the task's project, if any.
func taskRooms(task *models.Task) []string {
	rooms := []string{models.TaskRoom(task.ID)}
	if task.ProjectID != nil {
		rooms = append(rooms, models.ProjectRoom(*task.ProjectID))
	}
	return rooms
}
