package handlers

import (
	"net/http"

	"taskflow/internal/models"
	"taskflow/internal/services"
)

// TaskHandlers are the REST entry points into the same TaskService the
// websocket router uses, so both surfaces broadcast identically.
type TaskHandlers struct {
	tasks *services.TaskService
}

func NewTaskHandlers(tasks *services.TaskService) *TaskHandlers {
	return &TaskHandlers{tasks: tasks}
}

type statusRequest struct {
	Status models.TaskStatus `json:"status"`
}

type commentRequest struct {
	Content string `json:"content"`
}

func (h *TaskHandlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	change, err := h.tasks.ChangeStatus(r.Context(), currentUser(r), taskID, req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, change)
}

func (h *TaskHandlers) AddComment(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	comment, err := h.tasks.AddComment(r.Context(), currentUser(r), taskID, req.Content)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, comment)
}
