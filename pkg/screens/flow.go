package screens

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/teslashibe/go-voiceauth/pkg/capture"
	"github.com/teslashibe/go-voiceauth/pkg/voiceapi"
)

// AudioInfo describes the attached recording for display.
type AudioInfo struct {
	DurationSeconds int    `json:"duration_seconds"`
	Duration        string `json:"duration"`
	Filename        string `json:"filename"`
}

func audioInfo(a *capture.Artifact) *AudioInfo {
	if a == nil {
		return nil
	}
	return &AudioInfo{
		DurationSeconds: a.DurationSeconds,
		Duration:        capture.FormatDuration(a.DurationSeconds),
		Filename:        a.SuggestedFilename,
	}
}

// flow is the phrase, record, submit sequence shared by enrollment and
// verification. All fields below mu are guarded by it.
type flow struct {
	api          voiceapi.Service
	cfg          *Config
	logger       *slog.Logger
	missingAudio string

	// clearResult drops the screen's last outcome; called with mu held.
	clearResult func()

	mu            sync.Mutex
	userID        string
	phrase        string
	audio         *capture.Artifact
	loadingPhrase bool
	submitting    bool
	notice        string
	closed        bool
}

func (f *flow) init(api voiceapi.Service, cfg *Config, screen, missingAudio string, clearResult func()) {
	f.api = api
	f.cfg = cfg
	f.logger = cfg.Logger.With("component", "screens", "screen", screen)
	f.missingAudio = missingAudio
	f.clearResult = clearResult
}

// SetUserID stores the typed user id. It is trimmed on submission.
func (f *flow) SetUserID(id string) {
	f.mu.Lock()
	f.userID = id
	f.mu.Unlock()
	f.cfg.notify()
}

// FetchPhrase requests a new challenge phrase. On failure the previous
// phrase is kept and the error becomes the screen notice.
func (f *flow) FetchPhrase(ctx context.Context) (string, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return "", ErrClosed
	}
	if f.loadingPhrase || f.submitting {
		f.mu.Unlock()
		return "", ErrBusy
	}
	f.loadingPhrase = true
	f.notice = ""
	f.clearResult()
	f.mu.Unlock()
	f.cfg.notify()

	res := f.api.GetChallengePhrase(ctx)

	f.mu.Lock()
	f.loadingPhrase = false
	if res.Success {
		f.phrase = res.Data.Phrase
	} else {
		f.notice = res.Error
	}
	f.mu.Unlock()
	f.cfg.notify()

	if !res.Success {
		f.logger.Warn("challenge failed", "error", res.Error)
		return "", &RequestError{Op: voiceapi.OpChallenge, Message: res.Error}
	}
	f.logger.Debug("challenge received", "phrase", res.Data.Phrase)
	return res.Data.Phrase, nil
}

// AttachRecording makes a the recording for the next submission,
// releasing the one it replaces.
func (f *flow) AttachRecording(a *capture.Artifact) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		a.Release()
		return ErrClosed
	}
	if f.submitting {
		f.mu.Unlock()
		return ErrBusy
	}
	prev := f.audio
	f.audio = a
	f.notice = ""
	f.mu.Unlock()

	if prev != nil && prev != a {
		prev.Release()
	}
	f.cfg.notify()
	return nil
}

// Recording returns the attached recording, or nil.
func (f *flow) Recording() *capture.Artifact {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audio
}

// Close releases the attached recording. The screen rejects further
// requests afterwards.
func (f *flow) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	a := f.audio
	f.audio = nil
	f.mu.Unlock()

	return a.Release()
}

// claim is a validated submission taken from the form.
type claim struct {
	userID string
	phrase string
	audio  *capture.Artifact
}

// beginSubmit checks preconditions in order and sets the submitting flag.
func (f *flow) beginSubmit() (claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return claim{}, ErrClosed
	}
	if f.submitting || f.loadingPhrase {
		return claim{}, ErrBusy
	}

	var verr *ValidationError
	userID := strings.TrimSpace(f.userID)
	switch {
	case userID == "":
		verr = &ValidationError{Field: FieldUserID, Prompt: PromptMissingUserID}
	case f.phrase == "":
		verr = &ValidationError{Field: FieldPhrase, Prompt: PromptMissingPhrase}
	case f.audio == nil:
		verr = &ValidationError{Field: FieldAudio, Prompt: f.missingAudio}
	}
	if verr != nil {
		f.notice = verr.Prompt
		return claim{}, verr
	}

	f.submitting = true
	f.notice = ""
	f.clearResult()
	return claim{userID: userID, phrase: f.phrase, audio: f.audio}, nil
}

// endSubmit clears the submitted recording whatever the outcome, keeps the
// user id and phrase, and applies the screen-specific result with mu held.
func (f *flow) endSubmit(c claim, notice string, apply func()) {
	f.mu.Lock()
	f.submitting = false
	if f.audio == c.audio {
		f.audio = nil
	}
	f.notice = notice
	if apply != nil {
		apply()
	}
	f.mu.Unlock()

	if err := c.audio.Release(); err != nil {
		f.logger.Warn("release recording", "error", err)
	}
	f.cfg.notify()
}

// clearForm resets every field; called with mu held.
func (f *flow) clearForm() *capture.Artifact {
	a := f.audio
	f.userID = ""
	f.phrase = ""
	f.audio = nil
	f.notice = ""
	f.clearResult()
	return a
}

// reset clears the form unless a request is in flight.
func (f *flow) reset() error {
	f.mu.Lock()
	if f.submitting || f.loadingPhrase {
		f.mu.Unlock()
		return ErrBusy
	}
	a := f.clearForm()
	f.mu.Unlock()

	a.Release()
	f.cfg.notify()
	return nil
}

// formState is the part of a snapshot common to both flows.
type formState struct {
	UserID        string     `json:"user_id"`
	Phrase        string     `json:"phrase"`
	Audio         *AudioInfo `json:"audio"`
	LoadingPhrase bool       `json:"loading_phrase"`
	Submitting    bool       `json:"submitting"`
	CanSubmit     bool       `json:"can_submit"`
	Notice        string     `json:"notice,omitempty"`
}

// form returns the common snapshot; called with mu held.
func (f *flow) form() formState {
	return formState{
		UserID:        f.userID,
		Phrase:        f.phrase,
		Audio:         audioInfo(f.audio),
		LoadingPhrase: f.loadingPhrase,
		Submitting:    f.submitting,
		CanSubmit: strings.TrimSpace(f.userID) != "" && f.phrase != "" && f.audio != nil &&
			!f.submitting && !f.loadingPhrase,
		Notice: f.notice,
	}
}
