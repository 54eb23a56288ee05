package database

import (
	"context"
	"errors"
	"time"

	"taskflow/internal/models"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, req *models.RegisterRequest, passwordHash string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

type ProjectRepository interface {
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	// IsProjectMember is true when the user created the project or has a
	// project_members row for it.
	IsProjectMember(ctx context.Context, userID, projectID int64) (bool, error)
	ListProjectMemberIDs(ctx context.Context, projectID int64) ([]int64, error)
}

type TaskRepository interface {
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	// UpdateTaskStatus stores the new status and returns the one it replaced.
	UpdateTaskStatus(ctx context.Context, id int64, status models.TaskStatus) (models.TaskStatus, error)
	RecordTaskActivity(ctx context.Context, activity *models.TaskActivity) error
}

type CommentRepository interface {
	CreateComment(ctx context.Context, taskID, userID int64, content string) (*models.Comment, error)
}

type ProjectMessageRepository interface {
	CreateProjectMessage(ctx context.Context, projectID, userID int64, content string) (*models.ProjectMessage, error)
	GetProjectMessage(ctx context.Context, projectID, id int64) (*models.ProjectMessage, error)
	UpdateProjectMessage(ctx context.Context, projectID, id int64, content string) (*models.ProjectMessage, error)
	DeleteProjectMessage(ctx context.Context, projectID, id int64) error
	// ListProjectMessages returns up to limit messages created before the
	// given time (or the newest when before is zero), oldest first.
	ListProjectMessages(ctx context.Context, projectID int64, before time.Time, limit int) ([]*models.ProjectMessage, error)
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, req *models.CreateNotificationRequest) (*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID int64) (*models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error)
	ListNotifications(ctx context.Context, userID int64, filter models.NotificationFilter) ([]*models.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID int64) (int, error)
	DeleteNotification(ctx context.Context, id, userID int64) error
}

type PresenceRepository interface {
	UpsertOnlineStatus(ctx context.Context, userID int64, status models.PresenceStatus, connID string) error
}

type Database interface {
	UserRepository
	ProjectRepository
	TaskRepository
	CommentRepository
	ProjectMessageRepository
	NotificationRepository
	PresenceRepository
	Ping(ctx context.Context) error
	Close() error
}
