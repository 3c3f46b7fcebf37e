package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bcnelson/facepoke-broker/internal/domain"
	"github.com/bcnelson/facepoke-broker/internal/validation"
)

// maxBodyBytes caps request bodies; no admin request is larger than a key.
const maxBodyBytes = 4 << 10

// errorStatuses maps domain errors to HTTP status and public message.
// The first match wins.
var errorStatuses = []struct {
	err     error
	status  int
	message string
}{
	{domain.ErrNotFound, http.StatusNotFound, "key not found"},
	{domain.ErrAlreadyExists, http.StatusConflict, "key already exists"},
	{domain.ErrDuplicateKey, http.StatusConflict, "key already exists, try again"},
	{domain.ErrInvalidKeyFormat, http.StatusBadRequest, "invalid key format"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid input"},
	{domain.ErrPermissionDenied, http.StatusForbidden, "permission denied"},
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, &domain.APIError{Code: status, Message: message})
}

// handleError converts domain errors to HTTP errors. Anything unknown is a 500
// with no detail.
func handleError(w http.ResponseWriter, err error) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			respondError(w, e.status, e.message)
			return
		}
	}
	respondError(w, http.StatusInternalServerError, "internal server error")
}

// decodeJSON decodes a bounded request body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrInvalidInput
	}
	return nil
}

// respondFieldErrors writes a JSON response listing every rejected field.
func respondFieldErrors(w http.ResponseWriter, errs validation.FieldErrors) {
	respondJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
}
