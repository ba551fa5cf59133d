package capture

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrPermissionDenied is returned when microphone access is not granted.
	ErrPermissionDenied = errors.New("capture: microphone permission denied")

	// ErrBusy is returned when a capture or playback is already in progress.
	ErrBusy = errors.New("capture: recorder busy")

	// ErrClosed is returned after the recorder has been closed.
	ErrClosed = errors.New("capture: recorder closed")

	// ErrCaptureFailed is the generic media failure wrapped by CaptureError.
	ErrCaptureFailed = errors.New("capture: audio capture failed")

	// ErrNoArtifact is returned when an operation needs an artifact and got nil.
	ErrNoArtifact = errors.New("capture: no recording")

	// ErrInvalidMaxDuration is returned for a maximum outside [MinDuration, MaxDurationLimit].
	ErrInvalidMaxDuration = errors.New("capture: max duration out of range")
)

// CaptureError reports a failure of the media subsystem.
type CaptureError struct {
	// Op is the step that failed ("open", "start", "save", "playback").
	Op string

	// Err is the underlying device or file error.
	Err error
}

// Error implements the error interface.
func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture [%s]: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *CaptureError) Unwrap() error {
	return e.Err
}

// Is reports ErrCaptureFailed so callers can match every media failure.
func (e *CaptureError) Is(target error) bool {
	return target == ErrCaptureFailed
}

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &CaptureError{Op: op, Err: err}
}
