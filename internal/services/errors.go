package services

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError is a failure that is safe to show to the caller. Status is the
// HTTP status the REST layer answers with; the websocket layer sends Code and
// Message in a scoped error event.
type DomainError struct {
	Status  int
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func forbidden(message string) *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", message)
}

func notFound(message string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", message)
}

// Validation reports a malformed request.
func Validation(message string) *DomainError {
	return domainError(http.StatusBadRequest, "VALIDATION_ERROR", message)
}

var errInternal = domainError(http.StatusInternalServerError, "INTERNAL", "internal server error")

// AsDomainError returns err as a DomainError. Anything else is reported as a
// generic internal error and internal is true so the caller can log the cause.
func AsDomainError(err error) (de *DomainError, internal bool) {
	if errors.As(err, &de) {
		return de, false
	}
	return errInternal, true
}
