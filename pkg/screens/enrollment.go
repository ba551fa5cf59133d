package screens

import (
	"context"
	"fmt"

	"github.com/teslashibe/go-voiceauth/pkg/voiceapi"
)

// Enrollment registers a user's voice: enter id, fetch phrase, record,
// submit.
type Enrollment struct {
	flow
	receipt *voiceapi.EnrollmentReceipt
}

// EnrollmentState is an immutable view of the enrollment screen.
type EnrollmentState struct {
	formState
	Receipt *voiceapi.EnrollmentReceipt `json:"receipt"`
}

// NewEnrollment creates the enrollment screen controller.
func NewEnrollment(api voiceapi.Service, opts ...Option) *Enrollment {
	e := &Enrollment{}
	e.init(api, newConfig(opts), "enrollment", PromptMissingAudioEnroll, func() { e.receipt = nil })
	return e
}

// Submit enrolls the current form. A missing precondition returns a
// *ValidationError without calling the API; a failed call returns a
// *RequestError. Either way the recording is consumed and the user id
// and phrase are kept.
func (e *Enrollment) Submit(ctx context.Context) (*voiceapi.EnrollmentReceipt, error) {
	c, err := e.beginSubmit()
	if err != nil {
		e.cfg.notify()
		return nil, err
	}
	e.cfg.notify()

	res := e.api.Enroll(ctx, c.userID, c.phrase, c.audio)
	if !res.Success {
		e.logger.Warn("enrollment failed", "user_id", c.userID, "error", res.Error)
		e.endSubmit(c, res.Error, nil)
		return nil, &RequestError{Op: voiceapi.OpEnroll, Message: res.Error}
	}

	receipt := res.Data
	e.logger.Info("enrolled", "user_id", receipt.UserID)
	e.endSubmit(c, EnrollSuccessMessage(receipt), func() { e.receipt = &receipt })
	return &receipt, nil
}

// Dismiss acknowledges the result and clears the form.
func (e *Enrollment) Dismiss() error {
	return e.reset()
}

// Snapshot returns the current screen state.
func (e *Enrollment) Snapshot() EnrollmentState {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := EnrollmentState{formState: e.form()}
	if e.receipt != nil {
		r := *e.receipt
		s.Receipt = &r
	}
	return s
}

// EnrollSuccessMessage is the notice shown after a successful enrollment.
func EnrollSuccessMessage(r voiceapi.EnrollmentReceipt) string {
	return fmt.Sprintf("Voice enrolled successfully!\n\nUser: %s\n\n%s", r.UserID, r.Message)
}
