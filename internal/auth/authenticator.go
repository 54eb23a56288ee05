package auth

import (
	"context"
	"net/http"
	"strings"

	"taskflow/internal/models"
)

// TokenFromRequest extracts a bearer credential from a websocket handshake or
// API request. The token query parameter (alias auth) wins over the
// Authorization header because browsers cannot set headers on websocket
// upgrades.
func TokenFromRequest(r *http.Request) string {
	q := r.URL.Query()
	if token := strings.TrimSpace(q.Get("token")); token != "" {
		return token
	}
	if token := strings.TrimSpace(q.Get("auth")); token != "" {
		return token
	}

	header := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// AuthenticateHandshake gates a new connection. It runs once per connection,
// before any event handling; the returned identity is cached on the
// connection for its lifetime.
func (s *Service) AuthenticateHandshake(r *http.Request) (*models.User, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return nil, ErrTokenRequired
	}
	return s.Authenticate(r.Context(), token)
}

type ctxKey struct{}

// WithUser stores the authenticated user on a request context.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// UserFromContext returns the user stored by WithUser, if any.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(ctxKey{}).(*models.User)
	return user, ok && user != nil
}
