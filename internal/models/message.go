package models

import "time"

// ProjectMessage is one entry in a project's chat history.
type ProjectMessage struct {
	ID        int64      `json:"id"`
	ProjectID int64      `json:"projectId"`
	UserID    int64      `json:"userId"`
	Content   string     `json:"message"`
	Author    PublicUser `json:"author"`
	IsEdited  bool       `json:"isEdited"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type SendMessageRequest struct {
	Message string `json:"message"`
}

// ProjectMessagePayload carries a new or edited message to the project room.
type ProjectMessagePayload struct {
	ProjectID int64           `json:"projectId"`
	Message   *ProjectMessage `json:"message"`
}

type ProjectMessageDeletedPayload struct {
	ProjectID int64 `json:"projectId"`
	MessageID int64 `json:"messageId"`
}
