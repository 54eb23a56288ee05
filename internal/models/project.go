package models

import "time"

type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "inprogress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusDone       TaskStatus = "done"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusReview, TaskStatusDone:
		return true
	}
	return false
}

type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority"`
	Status      TaskStatus `json:"status"`
	AssigneeID  *int64     `json:"assignee,omitempty"`
	CreatedBy   *int64     `json:"created_by,omitempty"`
	ProjectID   *int64     `json:"project_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (t *Task) IsAssignee(userID int64) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}

func (t *Task) IsCreator(userID int64) bool {
	return t.CreatedBy != nil && *t.CreatedBy == userID
}

type Comment struct {
	ID        int64      `json:"id"`
	TaskID    int64      `json:"taskId"`
	UserID    int64      `json:"userId"`
	Content   string     `json:"content"`
	Author    PublicUser `json:"author"`
	CreatedAt time.Time  `json:"createdAt"`
}

type TaskActivity struct {
	TaskID   int64
	UserID   int64
	Action   string
	OldValue string
	NewValue string
}
