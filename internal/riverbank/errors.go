package riverbank

import (
	"errors"
	"fmt"
)

var (
	// ErrModerationRejected is returned when the classifier flags a submission.
	// Callers only ever see a generic message, never the classifier output.
	ErrModerationRejected = errors.New("content rejected by moderation")

	// ErrRateLimited is returned when the caller exceeded the quota for an action.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrNotFound is returned when a bottle does not exist.
	ErrNotFound = errors.New("bottle not found")
)

// Reason codes carried by ValidationError.
const (
	ReasonEmptyMessage    = "empty_message"
	ReasonTooShort        = "too_short"
	ReasonTooLong         = "too_long"
	ReasonContainsLink    = "contains_link"
	ReasonNicknameTooLong = "nickname_too_long"
	ReasonInvalidEmoji    = "invalid_emoji"
	ReasonInvalidAction   = "invalid_action"
	ReasonInvalidBottleID = "invalid_bottle_id"
)

// ValidationError describes why a request was rejected before touching any
// external dependency. Message is safe to show to end users.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func invalid(reason, message string) *ValidationError {
	return &ValidationError{Reason: reason, Message: message}
}

// IsValidationError reports whether err wraps a ValidationError and returns it.
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
