package screens

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-voiceauth/pkg/voiceapi"
)

// Prompts shown when a submission precondition is missing.
const (
	PromptMissingUserID      = "Please enter a user ID."
	PromptMissingPhrase      = "Please get a challenge phrase first."
	PromptMissingAudioEnroll = "Please record your audio before submitting."
	PromptMissingAudioVerify = "Please record your audio before verifying."
)

// Sentinel errors for common error conditions.
var (
	// ErrBusy is returned while the action's loading flag is set.
	ErrBusy = errors.New("screens: request already in progress")

	// ErrClosed is returned after the screen has been closed.
	ErrClosed = errors.New("screens: screen closed")
)

// Field names a submission precondition.
type Field string

// Submission preconditions.
const (
	FieldUserID Field = "user_id"
	FieldPhrase Field = "phrase"
	FieldAudio  Field = "audio"
)

// ValidationError reports a missing precondition. No request was made.
type ValidationError struct {
	Field  Field
	Prompt string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Prompt
}

// RequestError reports a failed API call with its user-facing text.
type RequestError struct {
	Op      voiceapi.Operation
	Message string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Prompt returns the text to show the user.
func Prompt(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Prompt
	}
	var re *RequestError
	if errors.As(err, &re) {
		return re.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
