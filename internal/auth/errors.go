package auth

import "errors"

// Each authentication failure has its own sentinel so callers can report a
// distinct reason to the client.
var (
	ErrTokenRequired      = errors.New("authentication token required")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrAuthFailed         = errors.New("authentication failed")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserDeactivated    = errors.New("user account deactivated")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Code returns the stable machine-readable code for an authentication error.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrTokenRequired):
		return "TOKEN_REQUIRED"
	case errors.Is(err, ErrTokenExpired):
		return "TOKEN_EXPIRED"
	case errors.Is(err, ErrTokenInvalid):
		return "INVALID_TOKEN"
	case errors.Is(err, ErrUserNotFound):
		return "USER_NOT_FOUND"
	case errors.Is(err, ErrUserDeactivated):
		return "USER_DEACTIVATED"
	case errors.Is(err, ErrInvalidCredentials):
		return "INVALID_CREDENTIALS"
	default:
		return "AUTH_FAILED"
	}
}

// Reason returns the client-facing reason string for an authentication error.
// Anything that is not one of the known sentinels reads as a generic failure.
func Reason(err error) string {
	for _, known := range []error{
		ErrTokenRequired, ErrTokenExpired, ErrTokenInvalid,
		ErrUserNotFound, ErrUserDeactivated, ErrInvalidCredentials,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return ErrAuthFailed.Error()
}
