package handlers

import (
	"net/http"
	"time"

	"taskflow/internal/models"
	"taskflow/internal/services"
)

// MessageHandlers expose project chat over REST. Sends and edits broadcast to
// the project room exactly as the websocket events do.
type MessageHandlers struct {
	messages *services.MessageService
}

func NewMessageHandlers(messages *services.MessageService) *MessageHandlers {
	return &MessageHandlers{messages: messages}
}

// List accepts ?limit= and ?before=<RFC3339> for paging backwards.
func (h *MessageHandlers) List(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var before time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		before, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeServiceError(w, r, services.Validation("before must be an RFC3339 timestamp"))
			return
		}
	}

	messages, err := h.messages.List(r.Context(), currentUser(r), projectID, before, queryInt(r, "limit"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

func (h *MessageHandlers) Send(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var req models.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	message, err := h.messages.Send(r.Context(), currentUser(r), projectID, req.Message)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, message)
}

func (h *MessageHandlers) Edit(w http.ResponseWriter, r *http.Request) {
	projectID, messageID, err := messagePath(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var req models.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	message, err := h.messages.Edit(r.Context(), currentUser(r), projectID, messageID, req.Message)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, message)
}

func (h *MessageHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	projectID, messageID, err := messagePath(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.messages.Delete(r.Context(), currentUser(r), projectID, messageID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func messagePath(r *http.Request) (projectID, messageID int64, err error) {
	if projectID, err = pathID(r, "id"); err != nil {
		return 0, 0, err
	}
	if messageID, err = pathID(r, "messageId"); err != nil {
		return 0, 0, err
	}
	return projectID, messageID, nil
}
