package media

import (
	"fmt"
	"net/http"

	"tokgrab/ytdlp"
)

// ValidationError is bad input shape: missing or non-TikTok URLs, limits.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError means the request was understood but there is nothing to
// return: no images in a slideshow, no videos for a sound.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// InvalidRequestError is a malformed identifier inside an otherwise valid URL.
type InvalidRequestError struct {
	Message string
}

func (e *InvalidRequestError) Error() string { return e.Message }

// UpstreamAuthError is a missing, short or rejected session cookie. Status
// carries the HTTP code to answer with since it depends on who is at fault.
type UpstreamAuthError struct {
	Message string
	Status  int
}

func (e *UpstreamAuthError) Error() string { return e.Message }

// ExtractionError is an external tool failure.
type ExtractionError = ytdlp.ExtractionError

func validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func notFound(message string) error {
	return &NotFoundError{Message: message}
}

// UpstreamAuth builds an UpstreamAuthError, defaulting to 500 (our config is wrong).
func UpstreamAuth(message string, status int) error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return &UpstreamAuthError{Message: message, Status: status}
}
