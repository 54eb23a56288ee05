package handlers

import (
	"errors"
	"net/http"

	"taskflow/internal/auth"
	"taskflow/internal/models"
	"taskflow/pkg/logger"
)

type AuthHandlers struct {
	authService *auth.Service
}

func NewAuthHandlers(authService *auth.Service) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	response, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		logger.Error("Registration error: %v", err)
		writeError(w, http.StatusBadRequest, "REGISTRATION_FAILED", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, response)
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	response, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			logger.Error("Login error: %v", err)
		}
		writeError(w, http.StatusUnauthorized, auth.Code(err), auth.Reason(err))
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// Refresh accepts the current token, expired or not, and returns a new one.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	response, err := h.authService.Refresh(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, auth.Code(err), auth.Reason(err))
		return
	}

	writeJSON(w, http.StatusOK, response)
}
