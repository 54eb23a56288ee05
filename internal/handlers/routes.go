package handlers

import (
	"net/http"
	"net/netip"

	"taskflow/internal/auth"
	"taskflow/internal/metrics"
	"taskflow/internal/ratelimit"
)

// Routes holds everything the HTTP surface is built from.
type Routes struct {
	AuthService    *auth.Service
	Limiter        ratelimit.Limiter
	TrustedProxies []netip.Prefix
	Auth           *AuthHandlers
	WebSocket      *WebSocketHandlers
	Tasks          *TaskHandlers
	Messages       *MessageHandlers
	Notifications  *NotificationHandlers
	Health         *HealthHandlers
	FrontendURL    string
}

type route struct {
	pattern string
	handler http.HandlerFunc
	authed  bool
	limited bool
}

func (rt *Routes) table() []route {
	return []route{
		{pattern: "POST /api/users/register", handler: rt.Auth.Register, limited: true},
		{pattern: "POST /api/users/login", handler: rt.Auth.Login, limited: true},
		{pattern: "POST /api/auth/refresh", handler: rt.Auth.Refresh, limited: true},

		{pattern: "PUT /api/tasks/{id}/status", handler: rt.Tasks.UpdateStatus, authed: true, limited: true},
		{pattern: "POST /api/tasks/{id}/comments", handler: rt.Tasks.AddComment, authed: true, limited: true},

		{pattern: "GET /api/projects/{id}/messages", handler: rt.Messages.List, authed: true, limited: true},
		{pattern: "POST /api/projects/{id}/messages", handler: rt.Messages.Send, authed: true, limited: true},
		{pattern: "PUT /api/projects/{id}/messages/{messageId}", handler: rt.Messages.Edit, authed: true, limited: true},
		{pattern: "DELETE /api/projects/{id}/messages/{messageId}", handler: rt.Messages.Delete, authed: true, limited: true},

		{pattern: "GET /api/notifications", handler: rt.Notifications.List, authed: true, limited: true},
		{pattern: "POST /api/notifications", handler: rt.Notifications.Create, authed: true, limited: true},
		{pattern: "PUT /api/notifications/read-all", handler: rt.Notifications.MarkAllRead, authed: true, limited: true},
		{pattern: "PUT /api/notifications/{id}/read", handler: rt.Notifications.MarkRead, authed: true, limited: true},
		{pattern: "DELETE /api/notifications/{id}", handler: rt.Notifications.Delete, authed: true, limited: true},

		{pattern: "GET /api/presence", handler: rt.Health.Presence, authed: true, limited: true},
		{pattern: "GET /api/health", handler: rt.Health.Health},

		{pattern: "GET /ws", handler: rt.WebSocket.HandleWebSocket, limited: true},
	}
}

// Handler builds the mux. Every route is instrumented under its pattern.
func (rt *Routes) Handler() http.Handler {
	mux := http.NewServeMux()
	limit := ratelimit.Middleware(rt.Limiter, rt.TrustedProxies)

	for _, r := range rt.table() {
		h := r.handler
		if r.authed {
			h = RequireAuth(rt.AuthService, h)
		}
		var handler http.Handler = h
		if r.limited {
			handler = limit(handler)
		}
		mux.Handle(r.pattern, metrics.Instrument(r.pattern, handler))
	}
	mux.Handle("GET /metrics", metrics.Handler())

	return CORS(rt.FrontendURL, mux)
}

// Endpoints lists the registered patterns, for startup logging.
func (rt *Routes) Endpoints() []string {
	var out []string
	for _, r := range rt.table() {
		out = append(out, r.pattern)
	}
	return append(out, "GET /metrics")
}
