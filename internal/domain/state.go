package domain

// SessionState is a step of the two-photo collection flow.
type SessionState int

const (
	StateIdle SessionState = iota
	StateAwaitingSourcePhoto
	StateAwaitingExpressionPhoto
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingSourcePhoto:
		return "awaiting_source_photo"
	case StateAwaitingExpressionPhoto:
		return "awaiting_expression_photo"
	default:
		return "unknown"
	}
}

// Awaiting reports whether the flow expects a photo.
func (s SessionState) Awaiting() bool {
	return s == StateAwaitingSourcePhoto || s == StateAwaitingExpressionPhoto
}

// Session is a user's position in the collection flow.
// SourcePhotoRef is set only while awaiting the expression photo.
type Session struct {
	UserID         string       `json:"user_id"`
	State          SessionState `json:"state"`
	SourcePhotoRef string       `json:"source_photo_ref,omitempty"`
}
