package handlers

import (
	"net/http"

	"taskflow/internal/auth"
	"taskflow/internal/models"
)

// RequireAuth resolves the bearer token to an active user and stores it on
// the request context.
func RequireAuth(authService *auth.Service, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := authService.Authenticate(r.Context(), auth.TokenFromRequest(r))
		if err != nil {
			writeError(w, http.StatusUnauthorized, auth.Code(err), auth.Reason(err))
			return
		}
		next(w, r.WithContext(auth.WithUser(r.Context(), user)))
	}
}

func currentUser(r *http.Request) *models.User {
	user, _ := auth.UserFromContext(r.Context())
	return user
}

// CORS allows the configured frontend origin.
func CORS(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
