package handlers

import (
	"context"
	"net/http"
	"time"

	"taskflow/internal/database"
	"taskflow/internal/models"
	ws "taskflow/internal/websocket"
)

type HealthHandlers struct {
	db  database.Database
	hub *ws.Hub
}

func NewHealthHandlers(db database.Database, hub *ws.Hub) *HealthHandlers {
	return &HealthHandlers{db: db, hub: hub}
}

type healthResponse struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	Connections int    `json:"connections"`
	Timestamp   string `json:"timestamp"`
}

// Health reports 503 when the database cannot be reached.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:      "ok",
		Database:    "ok",
		Connections: h.hub.ConnectionCount(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}

type presenceResponse struct {
	Users []models.OnlineUser `json:"users"`
	Count int                 `json:"count"`
}

func (h *HealthHandlers) Presence(w http.ResponseWriter, r *http.Request) {
	users := h.hub.OnlineUsers()
	writeJSON(w, http.StatusOK, presenceResponse{Users: users, Count: len(users)})
}
