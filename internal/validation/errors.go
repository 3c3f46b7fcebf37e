package validation

import "strings"

// FieldError describes one rejected request field. Value is left empty for
// fields that carry secrets.
type FieldError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// FieldErrors collects every problem found in one request.
type FieldErrors []*FieldError

// Error joins all messages.
func (e FieldErrors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Error()
	}
	return strings.Join(msgs, "; ")
}

// Add appends a field error.
func (e *FieldErrors) Add(field, value, message string) {
	*e = append(*e, &FieldError{Field: field, Value: value, Message: message})
}

// HasErrors returns true if there are any field errors.
func (e FieldErrors) HasErrors() bool {
	return len(e) > 0
}
