package services

import (
	"context"
	"errors"
	"fmt"

	"taskflow/internal/database"
	"taskflow/internal/models"
)

// AccessService answers per-request authorization questions. Nothing is
// cached: every call reads current membership from the database.
type AccessService struct {
	db database.Database
}

func NewAccessService(db database.Database) *AccessService {
	return &AccessService{db: db}
}

// CanAccessProject succeeds when the user created the project or is a member
// of it.
func (s *AccessService) CanAccessProject(ctx context.Context, user *models.User, projectID int64) error {
	_, err := s.accessProject(ctx, user, projectID)
	return err
}

func (s *AccessService) accessProject(ctx context.Context, user *models.User, projectID int64) (*models.Project, error) {
	project, err := s.db.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, notFound("project not found")
		}
		return nil, fmt.Errorf("get project %d: %w", projectID, err)
	}

	isMember, err := s.db.IsProjectMember(ctx, user.ID, projectID)
	if err != nil {
		return nil, fmt.Errorf("check project membership: %w", err)
	}
	if !isMember {
		return nil, forbidden("access denied to project")
	}
	return project, nil
}

// CanAccessTask loads the task and succeeds when the user is its assignee or
// creator, belongs to its project, or has a manager/admin role.
func (s *AccessService) CanAccessTask(ctx context.Context, user *models.User, taskID int64) (*models.Task, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.IsAssignee(user.ID) || task.IsCreator(user.ID) || user.Role.HasBlanketAccess() {
		return task, nil
	}

	if task.ProjectID != nil {
		isMember, err := s.db.IsProjectMember(ctx, user.ID, *task.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("check project membership: %w", err)
		}
		if isMember {
			return task, nil
		}
	}

	return nil, forbidden("access denied to task")
}

// CanChangeTaskStatus is narrower than CanAccessTask: project membership alone
// is not enough.
func (s *AccessService) CanChangeTaskStatus(user *models.User, task *models.Task) error {
	if task.IsCreator(user.ID) || task.IsAssignee(user.ID) || user.Role.HasBlanketAccess() {
		return nil
	}
	return forbidden("permission denied")
}

func (s *AccessService) loadTask(ctx context.Context, taskID int64) (*models.Task, error) {
	task, err := s.db.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, notFound("task not found")
		}
		return nil, fmt.Errorf("get task %d: %w", taskID, err)
	}
	return task, nil
}
