package screens

import (
	"context"

	"github.com/teslashibe/go-voiceauth/pkg/voiceapi"
)

// Verification checks a user's voice against their enrollment.
type Verification struct {
	flow
	outcome *voiceapi.VerificationOutcome
}

// VerificationState is an immutable view of the verification screen.
// Outcome and Result are nil until a verification has completed.
type VerificationState struct {
	formState
	Outcome *voiceapi.VerificationOutcome `json:"outcome"`
	Result  *ResultView                   `json:"result"`
}

// NewVerification creates the verification screen controller.
func NewVerification(api voiceapi.Service, opts ...Option) *Verification {
	v := &Verification{}
	v.init(api, newConfig(opts), "verification", PromptMissingAudioVerify, func() { v.outcome = nil })
	return v
}

// Submit verifies the current form. On success the outcome is stored and
// the recording cleared; the user id and phrase are kept for another try.
func (v *Verification) Submit(ctx context.Context) (*voiceapi.VerificationOutcome, error) {
	c, err := v.beginSubmit()
	if err != nil {
		v.cfg.notify()
		return nil, err
	}
	v.cfg.notify()

	res := v.api.Verify(ctx, c.userID, c.phrase, c.audio)
	if !res.Success {
		v.logger.Warn("verification failed", "user_id", c.userID, "error", res.Error)
		v.endSubmit(c, res.Error, nil)
		return nil, &RequestError{Op: voiceapi.OpVerify, Message: res.Error}
	}

	outcome := res.Data
	v.logger.Info("verified",
		"user_id", outcome.UserID,
		"authenticated", outcome.Authenticated,
		"similarity", outcome.Similarity,
	)
	v.endSubmit(c, "", func() { v.outcome = &outcome })
	return &outcome, nil
}

// Reset starts a new verification with an empty form.
func (v *Verification) Reset() error {
	return v.reset()
}

// Snapshot returns the current screen state.
func (v *Verification) Snapshot() VerificationState {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := VerificationState{formState: v.form()}
	if v.outcome != nil {
		o := *v.outcome
		s.Outcome = &o
		s.Result = NewResultView(&o)
	}
	return s
}
