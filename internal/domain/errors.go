package domain

import "errors"

// Storage errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
)

// Access and key lifecycle errors.
var (
	ErrInvalidKeyFormat   = errors.New("invalid key format")
	ErrAlreadyOwnsKey     = errors.New("user already owns an active key")
	ErrActivationConflict = errors.New("key is invalid or already used")
	ErrDuplicateKey       = errors.New("generated key already exists")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrRemoteService      = errors.New("remote service failure")
)

// APIError represents an error response from the admin API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}
