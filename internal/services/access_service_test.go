package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"taskflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanAccessProject(t *testing.T) {
	access := NewAccessService(seed())
	ctx := context.Background()

	tests := []struct {
		name      string
		user      *models.User
		projectID int64
		status    int
	}{
		{name: "creator", user: owner, projectID: 7},
		{name: "member", user: member, projectID: 7},
		{name: "outsider", user: outsider, projectID: 7, status: http.StatusForbidden},
		{name: "manager without membership", user: manager, projectID: 7, status: http.StatusForbidden},
		{name: "missing project", user: owner, projectID: 404, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := access.CanAccessProject(ctx, tt.user, tt.projectID)
			if tt.status == 0 {
				assert.NoError(t, err)
				return
			}
			de, internal := AsDomainError(err)
			require.False(t, internal)
			assert.Equal(t, tt.status, de.Status)
		})
	}
}

func TestCanAccessProjectDeniesIdenticallyEveryTime(t *testing.T) {
	access := NewAccessService(seed())
	first := access.CanAccessProject(context.Background(), outsider, 7)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, access.CanAccessProject(context.Background(), outsider, 7))
	}
	assert.Equal(t, "access denied to project", first.(*DomainError).Message)
}

func TestCanAccessProjectReadsMembershipEveryCall(t *testing.T) {
	db := seed()
	access := NewAccessService(db)
	ctx := context.Background()

	require.NoError(t, access.CanAccessProject(ctx, member, 7))
	db.RemoveProjectMember(7, member.ID)
	assert.Error(t, access.CanAccessProject(ctx, member, 7))
	assert.Equal(t, 2, db.Calls("IsProjectMember"))
}

func TestCanAccessTask(t *testing.T) {
	access := NewAccessService(seed())
	ctx := context.Background()

	tests := []struct {
		name   string
		user   *models.User
		taskID int64
		want   string
	}{
		{name: "assignee", user: assignee, taskID: 42},
		{name: "creator", user: owner, taskID: 42},
		{name: "project member", user: member, taskID: 42},
		{name: "manager role", user: manager, taskID: 42},
		{name: "admin role", user: &models.User{ID: 99, Role: models.RoleAdmin}, taskID: 43},
		{name: "outsider", user: outsider, taskID: 42, want: "access denied to task"},
		{name: "member of unrelated project", user: member, taskID: 43, want: "access denied to task"},
		{name: "missing task", user: owner, taskID: 404, want: "task not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, err := access.CanAccessTask(ctx, tt.user, tt.taskID)
			if tt.want == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.taskID, task.ID)
				return
			}
			require.Error(t, err)
			de, _ := AsDomainError(err)
			assert.Equal(t, tt.want, de.Message)
		})
	}
}

func TestCanAccessTaskWrapsStoreFailure(t *testing.T) {
	db := seed()
	db.FailOn("GetTask", errors.New("connection refused"))

	_, err := NewAccessService(db).CanAccessTask(context.Background(), owner, 42)
	require.Error(t, err)
	de, internal := AsDomainError(err)
	assert.True(t, internal)
	assert.Equal(t, "internal server error", de.Message)
}

func TestCanChangeTaskStatus(t *testing.T) {
	access := NewAccessService(seed())
	task := &models.Task{ID: 42, CreatedBy: ptr(owner.ID), AssigneeID: ptr(assignee.ID), ProjectID: ptr(7)}

	assert.NoError(t, access.CanChangeTaskStatus(owner, task))
	assert.NoError(t, access.CanChangeTaskStatus(assignee, task))
	assert.NoError(t, access.CanChangeTaskStatus(manager, task))
	assert.Error(t, access.CanChangeTaskStatus(member, task), "project membership is not enough")
	assert.Error(t, access.CanChangeTaskStatus(outsider, task))
}
