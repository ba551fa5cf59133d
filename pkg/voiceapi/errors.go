package voiceapi

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNoBaseURL is returned when the API base URL is missing.
	ErrNoBaseURL = errors.New("voiceapi: base URL required")

	// ErrInvalidBaseURL is returned for a base URL that is not absolute http(s).
	ErrInvalidBaseURL = errors.New("voiceapi: base URL must be an absolute http(s) URL")

	// ErrNoAudio is returned when a submission has no recording.
	ErrNoAudio = errors.New("voiceapi: audio recording required")

	// ErrAudioConsumed is returned when a recording was already submitted.
	ErrAudioConsumed = errors.New("voiceapi: audio recording already submitted")

	// ErrMissingField is returned when a 2xx body lacks a required field.
	ErrMissingField = errors.New("voiceapi: response missing required field")
)

// Operation names one of the four API calls.
type Operation string

// API operations.
const (
	OpHealth    Operation = "health"
	OpChallenge Operation = "challenge"
	OpEnroll    Operation = "enroll"
	OpVerify    Operation = "verify"
)

// Fallback returns the generic failure text for the operation.
func (o Operation) Fallback() string {
	switch o {
	case OpHealth:
		return "health check failed"
	case OpChallenge:
		return "challenge request failed"
	case OpEnroll:
		return "enrollment failed"
	case OpVerify:
		return "verification failed"
	default:
		return "request failed"
	}
}

// APIError describes a failed call.
type APIError struct {
	// Op is the operation that failed.
	Op Operation

	// StatusCode is the HTTP status, or 0 when no response arrived.
	StatusCode int

	// ErrorText and MessageText are the string "error" and "message"
	// fields of the response body, if present.
	ErrorText   string
	MessageText string

	// Transport is a transport or status failure whose text is shown to
	// the user when the body carries no error text.
	Transport error

	// Cause is a local failure (bad body, unusable recording). It is
	// logged but never shown; the user sees the fallback.
	Cause error
}

// Message returns the user-facing text in precedence order: body error,
// body message, transport failure, operation fallback.
func (e *APIError) Message() string {
	switch {
	case e.ErrorText != "":
		return e.ErrorText
	case e.MessageText != "":
		return e.MessageText
	case e.Transport != nil:
		return e.Transport.Error()
	default:
		return e.Op.Fallback()
	}
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("voiceapi [%s]: status %d: %s", e.Op, e.StatusCode, e.Message())
	}
	return fmt.Sprintf("voiceapi [%s]: %s", e.Op, e.Message())
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	if e.Transport != nil {
		return e.Transport
	}
	return e.Cause
}

// IsClientError returns true for HTTP 4xx.
func (e *APIError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsTransport returns true when no HTTP response was received.
func (e *APIError) IsTransport() bool {
	return e.StatusCode == 0 && e.Transport != nil
}

// StatusError is the transport text for a non-2xx response with no body text.
func StatusError(code int) error {
	return fmt.Errorf("request failed with status code %d", code)
}

// Normalize converts any failure of op into the text shown to the user.
func Normalize(op Operation, err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message()
	}
	return op.Fallback()
}

// failure builds a failed Result from err.
func failure[T any](op Operation, err error) Result[T] {
	return Fail[T](Normalize(op, err))
}
