package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"taskflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTaskService() (*TaskService, *recorder, func() *models.Task) {
	db := seed()
	events := newRecorder()
	svc := NewTaskService(db, NewAccessService(db), events)
	return svc, events, func() *models.Task { t := db.Task(42); return &t }
}

func TestChangeStatusPersistsAndBroadcasts(t *testing.T) {
	db := seed()
	events := newRecorder()
	svc := NewTaskService(db, NewAccessService(db), events)

	payload, err := svc.ChangeStatus(context.Background(), assignee, 42, models.TaskStatusReview)
	require.NoError(t, err)

	assert.Equal(t, models.TaskStatusReview, db.Task(42).Status)
	assert.Equal(t, models.TaskStatusTodo, payload.OldStatus, "old status comes from storage")
	assert.Equal(t, "Asha Assignee", payload.ChangedBy.Name)
	assert.NotEmpty(t, payload.Timestamp)

	activity := db.Activity()
	require.Len(t, activity, 1)
	assert.Equal(t, models.TaskActivity{TaskID: 42, UserID: assignee.ID, Action: "status_changed", OldValue: "todo", NewValue: "review"}, activity[0])

	sent := events.events()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"task:42", "project:7"}, sent[0].Rooms)
	assert.Equal(t, models.EventTaskStatusChanged, sent[0].Event)
	assert.Same(t, payload, sent[0].Payload)
}

func TestChangeStatusTaskWithoutProject(t *testing.T) {
	db := seed()
	events := newRecorder()
	svc := NewTaskService(db, NewAccessService(db), events)

	_, err := svc.ChangeStatus(context.Background(), assignee, 43, models.TaskStatusDone)
	require.NoError(t, err)
	assert.Equal(t, []string{"task:43"}, events.events()[0].Rooms)
}

func TestChangeStatusRejections(t *testing.T) {
	tests := []struct {
		name    string
		actor   *models.User
		taskID  int64
		status  models.TaskStatus
		code    int
		message string
	}{
		{name: "project member only", actor: member, taskID: 42, status: models.TaskStatusDone, code: http.StatusForbidden, message: "permission denied"},
		{name: "outsider", actor: outsider, taskID: 42, status: models.TaskStatusDone, code: http.StatusForbidden, message: "permission denied"},
		{name: "missing task", actor: manager, taskID: 404, status: models.TaskStatusDone, code: http.StatusNotFound, message: "task not found"},
		{name: "invalid status", actor: owner, taskID: 42, status: "archived", code: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, events, task := newTaskService()

			_, err := svc.ChangeStatus(context.Background(), tt.actor, tt.taskID, tt.status)
			require.Error(t, err)
			de, internal := AsDomainError(err)
			require.False(t, internal)
			assert.Equal(t, tt.code, de.Status)
			if tt.message != "" {
				assert.Equal(t, tt.message, de.Message)
			}

			assert.Empty(t, events.events(), "rejected changes are never broadcast")
			assert.Equal(t, models.TaskStatusTodo, task().Status)
		})
	}
}

func TestChangeStatusStoreFailure(t *testing.T) {
	db := seed()
	events := newRecorder()
	svc := NewTaskService(db, NewAccessService(db), events)
	db.FailOn("UpdateTaskStatus", errors.New("deadlock detected"))

	_, err := svc.ChangeStatus(context.Background(), owner, 42, models.TaskStatusDone)
	require.Error(t, err)
	_, internal := AsDomainError(err)
	assert.True(t, internal)
	assert.Empty(t, events.events())
}

func TestChangeStatusActivityFailureStillBroadcasts(t *testing.T) {
	db := seed()
	events := newRecorder()
	svc := NewTaskService(db, NewAccessService(db), events)
	db.FailOn("RecordTaskActivity", errors.New("disk full"))

	_, err := svc.ChangeStatus(context.Background(), owner, 42, models.TaskStatusDone)
	require.NoError(t, err)
	assert.Len(t, events.events(), 1)
}

func TestAddComment(t *testing.T) {
	db := seed()
	events := newRecorder()
	svc := NewTaskService(db, NewAccessService(db), events)

	comment, err := svc.AddComment(context.Background(), member, 42, "  looks good  ")
	require.NoError(t, err)
	assert.Equal(t, "looks good", comment.Content)
	assert.Equal(t, models.PublicUser{ID: member.ID, Name: "Mo Member"}, comment.Author)
	assert.Len(t, db.Comments(), 1)

	sent := events.events()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"task:42", "project:7"}, sent[0].Rooms)
	assert.Equal(t, models.EventCommentAdded, sent[0].Event)
}

func TestAddCommentRejections(t *testing.T) {
	tests := []struct {
		name    string
		actor   *models.User
		taskID  int64
		content string
		message string
	}{
		{name: "empty", actor: owner, taskID: 42, content: "   ", message: "comment content is required"},
		{name: "too long", actor: owner, taskID: 42, content: strings.Repeat("x", maxCommentLength+1), message: "comment must be at most 5000 characters"},
		{name: "outsider", actor: outsider, taskID: 42, content: "hi", message: "access denied to task"},
		{name: "missing task", actor: owner, taskID: 404, content: "hi", message: "task not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := seed()
			events := newRecorder()
			svc := NewTaskService(db, NewAccessService(db), events)

			_, err := svc.AddComment(context.Background(), tt.actor, tt.taskID, tt.content)
			require.Error(t, err)
			de, _ := AsDomainError(err)
			assert.Equal(t, tt.message, de.Message)
			assert.Empty(t, db.Comments())
			assert.Empty(t, events.events())
		})
	}
}

func TestAddCommentPersistenceFailureDoesNotBroadcast(t *testing.T) {
	db := seed()
	events := newRecorder()
	svc := NewTaskService(db, NewAccessService(db), events)
	db.FailOn("CreateComment", errors.New("connection reset"))

	_, err := svc.AddComment(context.Background(), owner, 42, "hello")
	require.Error(t, err)
	assert.Empty(t, events.events())
}
