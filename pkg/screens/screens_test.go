package screens_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-voiceauth/pkg/audioio"
	"github.com/teslashibe/go-voiceauth/pkg/capture"
	"github.com/teslashibe/go-voiceauth/pkg/screens"
	"github.com/teslashibe/go-voiceauth/pkg/voiceapi"
)

func recording(t *testing.T) *capture.Artifact {
	t.Helper()
	path := filepath.Join(t.TempDir(), "take.wav")
	if err := audioio.WriteWAV(path, audioio.AudioChunk{Samples: make([]int16, 16000), SampleRate: 16000, Channels: 1}); err != nil {
		t.Fatal(err)
	}
	a, err := capture.FromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func phraseMock(phrase string) *voiceapi.Mock {
	m := voiceapi.NewMock()
	m.ChallengeFunc = func(context.Context) voiceapi.Result[voiceapi.Challenge] {
		return voiceapi.Ok(voiceapi.Challenge{Phrase: phrase})
	}
	return m
}

// submitter is the part of both flows the precondition tests drive.
type submitter interface {
	SetUserID(string)
	FetchPhrase(context.Context) (string, error)
	AttachRecording(*capture.Artifact) error
}

func TestSubmit_PreconditionPrompts(t *testing.T) {
	tests := []struct {
		name      string
		userID    string
		phrase    bool
		audio     bool
		wantField screens.Field
		enroll    string
		verify    string
	}{
		{"missing user id", "", true, true, screens.FieldUserID, screens.PromptMissingUserID, screens.PromptMissingUserID},
		{"blank user id", "   ", true, true, screens.FieldUserID, screens.PromptMissingUserID, screens.PromptMissingUserID},
		{"missing phrase", "u1", false, true, screens.FieldPhrase, screens.PromptMissingPhrase, screens.PromptMissingPhrase},
		{"missing audio", "u1", true, false, screens.FieldAudio, screens.PromptMissingAudioEnroll, screens.PromptMissingAudioVerify},
		{"user id checked first", "", false, false, screens.FieldUserID, screens.PromptMissingUserID, screens.PromptMissingUserID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			api := phraseMock("ABC")
			enroll := screens.NewEnrollment(api)
			verify := screens.NewVerification(api)

			for _, s := range []submitter{enroll, verify} {
				s.SetUserID(tt.userID)
				if tt.phrase {
					if _, err := s.FetchPhrase(ctx); err != nil {
						t.Fatalf("FetchPhrase failed: %v", err)
					}
				}
				if tt.audio {
					s.AttachRecording(recording(t))
				}
			}

			_, errE := enroll.Submit(ctx)
			_, errV := verify.Submit(ctx)

			for _, c := range []struct {
				err  error
				want string
			}{{errE, tt.enroll}, {errV, tt.verify}} {
				var ve *screens.ValidationError
				if !errors.As(c.err, &ve) {
					t.Fatalf("expected ValidationError, got %v", c.err)
				}
				if ve.Field != tt.wantField || ve.Prompt != c.want {
					t.Errorf("expected %s %q, got %s %q", tt.wantField, c.want, ve.Field, ve.Prompt)
				}
				if screens.Prompt(c.err) != c.want {
					t.Errorf("Prompt() = %q, want %q", screens.Prompt(c.err), c.want)
				}
			}

			if api.CallCount("Enroll") != 0 || api.CallCount("Verify") != 0 {
				t.Error("expected no submission request")
			}
			if enroll.Snapshot().Notice != tt.enroll {
				t.Errorf("expected notice %q, got %q", tt.enroll, enroll.Snapshot().Notice)
			}
		})
	}
}

func TestVerification_Success(t *testing.T) {
	ctx := context.Background()
	api := phraseMock("ABC")
	api.VerifyFunc = func(_ context.Context, userID, phrase string, _ *capture.Artifact) voiceapi.Result[voiceapi.VerificationOutcome] {
		return voiceapi.Ok(voiceapi.VerificationOutcome{Authenticated: true, Similarity: 0.91, UserID: "u1"})
	}

	v := screens.NewVerification(api)
	defer v.Close()

	v.SetUserID(" u1 ")
	if _, err := v.FetchPhrase(ctx); err != nil {
		t.Fatal(err)
	}
	a := recording(t)
	v.AttachRecording(a)

	if !v.Snapshot().CanSubmit {
		t.Error("expected submission to be allowed")
	}

	out, err := v.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !out.Authenticated || out.Similarity != 0.91 {
		t.Errorf("unexpected outcome %+v", out)
	}

	calls := api.Calls()
	last := calls[len(calls)-1]
	if last.UserID != "u1" || last.Phrase != "ABC" || last.Audio != a {
		t.Errorf("unexpected request %+v", last)
	}

	s := v.Snapshot()
	if s.Audio != nil || v.Recording() != nil {
		t.Error("expected audio cleared after submission")
	}
	if strings.TrimSpace(s.UserID) != "u1" || s.Phrase != "ABC" {
		t.Errorf("expected user id and phrase retained, got %q %q", s.UserID, s.Phrase)
	}
	if s.Outcome == nil || *s.Outcome != *out {
		t.Errorf("expected outcome in snapshot, got %+v", s.Outcome)
	}
	if s.Result == nil || s.Result.Band != screens.BandExcellent || s.Result.Percent != "91.0%" {
		t.Errorf("unexpected result view %+v", s.Result)
	}
	if !a.Released() {
		t.Error("expected submitted recording to be released")
	}
}

func TestVerification_LowSimilarity(t *testing.T) {
	api := phraseMock("ABC")
	api.VerifyFunc = func(context.Context, string, string, *capture.Artifact) voiceapi.Result[voiceapi.VerificationOutcome] {
		return voiceapi.Ok(voiceapi.VerificationOutcome{Authenticated: false, Similarity: 0.23, UserID: "u1"})
	}

	v := screens.NewVerification(api)
	v.SetUserID("u1")
	v.FetchPhrase(context.Background())
	v.AttachRecording(recording(t))

	if _, err := v.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}

	r := v.Snapshot().Result
	if r == nil {
		t.Fatal("expected result view")
	}
	if r.Band != screens.BandLow || r.Authenticated {
		t.Errorf("expected low band, got %+v", r)
	}
	if r.Title != "Authentication failed" {
		t.Errorf("unexpected title %q", r.Title)
	}
}

func TestVerification_FailureKeepsForm(t *testing.T) {
	ctx := context.Background()
	api := phraseMock("ABC")
	api.VerifyFunc = func(context.Context, string, string, *capture.Artifact) voiceapi.Result[voiceapi.VerificationOutcome] {
		return voiceapi.Fail[voiceapi.VerificationOutcome]("phrase mismatch")
	}

	v := screens.NewVerification(api)
	v.SetUserID("u1")
	v.FetchPhrase(ctx)
	a := recording(t)
	v.AttachRecording(a)

	_, err := v.Submit(ctx)
	var re *screens.RequestError
	if !errors.As(err, &re) || re.Message != "phrase mismatch" {
		t.Fatalf("expected RequestError, got %v", err)
	}

	s := v.Snapshot()
	if s.Audio != nil || !a.Released() {
		t.Error("expected recording cleared and released")
	}
	if s.UserID != "u1" || s.Phrase != "ABC" {
		t.Errorf("expected form retained, got %q %q", s.UserID, s.Phrase)
	}
	if s.Outcome != nil || s.Result != nil {
		t.Error("expected no outcome after failure")
	}
	if s.Notice != "phrase mismatch" {
		t.Errorf("unexpected notice %q", s.Notice)
	}

	// Retry needs only a new recording.
	api.VerifyFunc = nil
	v.AttachRecording(recording(t))
	if _, err := v.Submit(ctx); err != nil {
		t.Errorf("retry failed: %v", err)
	}
	if api.CallCount("GetChallengePhrase") != 1 {
		t.Error("expected no second phrase fetch")
	}
}

func TestEnrollment_SuccessAndDismiss(t *testing.T) {
	ctx := context.Background()
	api := phraseMock("open sesame")

	e := screens.NewEnrollment(api)
	e.SetUserID("alice")
	e.FetchPhrase(ctx)
	a := recording(t)
	e.AttachRecording(a)

	receipt, err := e.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if receipt.UserID != "alice" {
		t.Errorf("unexpected receipt %+v", receipt)
	}

	s := e.Snapshot()
	if s.Receipt == nil || s.Audio != nil || s.Phrase != "open sesame" || s.UserID != "alice" {
		t.Errorf("unexpected state after success %+v", s)
	}
	if !strings.Contains(s.Notice, "Voice enrolled successfully!") || !strings.Contains(s.Notice, "User: alice") {
		t.Errorf("unexpected notice %q", s.Notice)
	}
	if !a.Released() {
		t.Error("expected recording released")
	}

	if err := e.Dismiss(); err != nil {
		t.Fatal(err)
	}
	s = e.Snapshot()
	if s.UserID != "" || s.Phrase != "" || s.Receipt != nil || s.Notice != "" {
		t.Errorf("expected cleared form, got %+v", s)
	}
}

func TestEnrollment_FailureKeepsForm(t *testing.T) {
	ctx := context.Background()
	api := phraseMock("ABC")
	api.EnrollFunc = func(context.Context, string, string, *capture.Artifact) voiceapi.Result[voiceapi.EnrollmentReceipt] {
		return voiceapi.Fail[voiceapi.EnrollmentReceipt]("user already enrolled")
	}

	e := screens.NewEnrollment(api)
	e.SetUserID("alice")
	e.FetchPhrase(ctx)
	e.AttachRecording(recording(t))

	if _, err := e.Submit(ctx); screens.Prompt(err) != "user already enrolled" {
		t.Errorf("unexpected error %v", err)
	}

	s := e.Snapshot()
	if s.Audio != nil || s.UserID != "alice" || s.Phrase != "ABC" || s.Receipt != nil {
		t.Errorf("unexpected state %+v", s)
	}
}

func TestFetchPhrase_FailureKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	api := phraseMock("first")

	e := screens.NewEnrollment(api)
	if _, err := e.FetchPhrase(ctx); err != nil {
		t.Fatal(err)
	}

	api.ChallengeFunc = func(context.Context) voiceapi.Result[voiceapi.Challenge] {
		return voiceapi.Fail[voiceapi.Challenge]("challenge request failed")
	}
	if _, err := e.FetchPhrase(ctx); err == nil {
		t.Fatal("expected error")
	}

	s := e.Snapshot()
	if s.Phrase != "first" || s.LoadingPhrase {
		t.Errorf("unexpected state %+v", s)
	}
	if s.Notice != "challenge request failed" {
		t.Errorf("unexpected notice %q", s.Notice)
	}
}

func TestFetchPhrase_ClearsOutcome(t *testing.T) {
	ctx := context.Background()
	v := screens.NewVerification(phraseMock("ABC"))
	v.SetUserID("u1")
	v.FetchPhrase(ctx)
	v.AttachRecording(recording(t))
	v.Submit(ctx)

	if v.Snapshot().Outcome == nil {
		t.Fatal("expected outcome")
	}
	v.FetchPhrase(ctx)
	if v.Snapshot().Outcome != nil {
		t.Error("expected new phrase to clear the previous outcome")
	}
}

func TestSubmit_BusyGate(t *testing.T) {
	ctx := context.Background()
	api := phraseMock("ABC")

	entered := make(chan struct{})
	release := make(chan struct{})
	api.VerifyFunc = func(context.Context, string, string, *capture.Artifact) voiceapi.Result[voiceapi.VerificationOutcome] {
		close(entered)
		<-release
		return voiceapi.Ok(voiceapi.VerificationOutcome{Authenticated: true, Similarity: 0.7})
	}

	v := screens.NewVerification(api)
	v.SetUserID("u1")
	v.FetchPhrase(ctx)
	v.AttachRecording(recording(t))

	done := make(chan error, 1)
	go func() {
		_, err := v.Submit(ctx)
		done <- err
	}()
	<-entered

	if !v.Snapshot().Submitting {
		t.Error("expected submitting flag")
	}
	if _, err := v.Submit(ctx); !errors.Is(err, screens.ErrBusy) {
		t.Errorf("expected ErrBusy for second submit, got %v", err)
	}
	if _, err := v.FetchPhrase(ctx); !errors.Is(err, screens.ErrBusy) {
		t.Errorf("expected ErrBusy for phrase fetch, got %v", err)
	}
	if err := v.AttachRecording(recording(t)); !errors.Is(err, screens.ErrBusy) {
		t.Errorf("expected ErrBusy for re-record, got %v", err)
	}
	if err := v.Reset(); !errors.Is(err, screens.ErrBusy) {
		t.Errorf("expected ErrBusy for reset, got %v", err)
	}

	close(release)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("submit failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("submit did not finish")
	}
	if api.CallCount("Verify") != 1 {
		t.Errorf("expected one verify call, got %d", api.CallCount("Verify"))
	}
}

func TestAttachRecording_ReleasesPrevious(t *testing.T) {
	e := screens.NewEnrollment(voiceapi.NewMock())

	first, second := recording(t), recording(t)
	e.AttachRecording(first)
	e.AttachRecording(second)

	if !first.Released() {
		t.Error("expected replaced recording to be released")
	}
	if second.Released() || e.Recording() != second {
		t.Error("expected new recording attached")
	}

	e.Close()
	if !second.Released() {
		t.Error("expected Close to release the recording")
	}
	if _, err := e.Submit(context.Background()); !errors.Is(err, screens.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestVerification_Reset(t *testing.T) {
	ctx := context.Background()
	v := screens.NewVerification(phraseMock("ABC"))
	v.SetUserID("u1")
	v.FetchPhrase(ctx)
	a := recording(t)
	v.AttachRecording(a)

	if err := v.Reset(); err != nil {
		t.Fatal(err)
	}
	s := v.Snapshot()
	if s.UserID != "" || s.Phrase != "" || s.Audio != nil {
		t.Errorf("expected empty form, got %+v", s)
	}
	if !a.Released() {
		t.Error("expected recording released on reset")
	}
}

func TestOnChange(t *testing.T) {
	var n atomic.Int32
	e := screens.NewEnrollment(phraseMock("ABC"), screens.WithOnChange(func() { n.Add(1) }))

	e.SetUserID("u1")
	e.FetchPhrase(context.Background())

	// SetUserID once, FetchPhrase twice (loading, loaded).
	if n.Load() != 3 {
		t.Errorf("expected 3 notifications, got %d", n.Load())
	}
}

func TestHome_CheckConnection(t *testing.T) {
	ctx := context.Background()
	api := voiceapi.NewMock()
	api.HealthFunc = func(context.Context) voiceapi.Result[voiceapi.HealthStatus] {
		return voiceapi.Fail[voiceapi.HealthStatus]("dial tcp: connection refused")
	}

	h := screens.NewHome(api, "http://localhost:8000")
	if h.Snapshot().Connected != nil {
		t.Fatal("expected untested connection state")
	}

	if _, err := h.CheckConnection(ctx); err == nil {
		t.Fatal("expected error")
	}
	s := h.Snapshot()
	if s.Connected == nil || *s.Connected {
		t.Errorf("expected disconnected, got %+v", s.Connected)
	}
	if !strings.Contains(s.Notice, "connection refused") || !strings.Contains(s.Notice, "http://localhost:8000") {
		t.Errorf("unexpected notice %q", s.Notice)
	}

	api.HealthFunc = nil
	status, err := h.CheckConnection(ctx)
	if err != nil {
		t.Fatalf("second check failed: %v", err)
	}
	if status.Status != "ok" {
		t.Errorf("unexpected status %+v", status)
	}
	s = h.Snapshot()
	if s.Connected == nil || !*s.Connected || s.Health == nil || s.Checking {
		t.Errorf("unexpected state %+v", s)
	}
}
