package handlers

import (
	"net/http"

	"taskflow/internal/models"
	"taskflow/internal/services"
)

type NotificationHandlers struct {
	notifications *services.NotificationService
}

func NewNotificationHandlers(notifications *services.NotificationService) *NotificationHandlers {
	return &NotificationHandlers{notifications: notifications}
}

// List serves GET /api/notifications?unreadOnly=&type=&page=&limit=.
func (h *NotificationHandlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.notifications.List(r.Context(), currentUser(r).ID,
		q.Get("type"),
		q.Get("unreadOnly") == "true",
		queryInt(r, "page"),
		queryInt(r, "limit"),
	)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// Create lets managers and admins notify any user.
func (h *NotificationHandlers) Create(w http.ResponseWriter, r *http.Request) {
	if !currentUser(r).Role.HasBlanketAccess() {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
		return
	}

	var req models.CreateNotificationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	notification, err := h.notifications.Deliver(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, notification)
}

func (h *NotificationHandlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.notifications.MarkRead(r.Context(), currentUser(r).ID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.NotificationIDPayload{NotificationID: id})
}

func (h *NotificationHandlers) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	updated, err := h.notifications.MarkAllRead(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.AllMarkedReadPayload{UserID: user.ID, Updated: updated})
}

func (h *NotificationHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.notifications.Delete(r.Context(), currentUser(r).ID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
