package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"taskflow/internal/services"
	"taskflow/pkg/logger"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeServiceError answers with the DomainError's status, or a generic 500
// after logging anything else.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	de, internal := services.AsDomainError(err)
	if internal {
		logger.Error("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeError(w, de.Status, de.Code, de.Message)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return services.Validation("invalid request body")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, services.Validation("invalid " + name)
	}
	return id, nil
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}
