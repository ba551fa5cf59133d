package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"

	"github.com/teslashibe/go-voiceauth/pkg/audioio"
	"github.com/teslashibe/go-voiceauth/pkg/capture"
	"github.com/teslashibe/go-voiceauth/pkg/voiceapi"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, api voiceapi.Service, recOpts ...capture.Option) *Server {
	t.Helper()

	audio := audioio.DefaultConfig()
	audio.Backend = audioio.BackendMock
	audio.BufferDuration = 5 * time.Millisecond

	base := []capture.Option{
		capture.WithAudioConfig(audio),
		capture.WithDir(t.TempDir()),
		capture.WithTickInterval(10 * time.Millisecond),
		capture.WithMaxDuration(1),
	}
	s, err := NewServer(Config{
		Addr:            "127.0.0.1:0",
		API:             api,
		BaseURL:         "http://api.test",
		RecorderOptions: append(base, recOpts...),
		Logger:          testLogger(),
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func do(t *testing.T, s *Server, method, path, body string) (int, []byte) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.app.Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func decodeState(t *testing.T, data []byte) State {
	t.Helper()
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("decode state %s: %v", data, err)
	}
	return st
}

func decodeError(t *testing.T, data []byte) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("decode error %s: %v", data, err)
	}
	return e
}

// recordFor starts a capture and waits for the auto-stop to attach it.
func recordFor(t *testing.T, s *Server, screen string) {
	t.Helper()

	if code, body := do(t, s, http.MethodPost, "/api/"+screen+"/record/start", ""); code != http.StatusOK {
		t.Fatalf("record/start: %d %s", code, body)
	}
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		f, _ := s.form(screen)
		if f.Recording() != nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("recording was not attached")
}

func TestNewServer_RequiresAPI(t *testing.T) {
	if _, err := NewServer(Config{}); err == nil {
		t.Error("expected error without API")
	}
}

func TestState(t *testing.T) {
	s := newTestServer(t, voiceapi.NewMock())

	code, body := do(t, s, http.MethodGet, "/api/state", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	st := decodeState(t, body)
	if st.Home.BaseURL != "http://api.test" {
		t.Errorf("base url = %q", st.Home.BaseURL)
	}
	if st.Home.Connected != nil {
		t.Error("connected should be unknown before a check")
	}
	if st.Recorder.MaxSeconds != 1 || st.Recorder.Recording {
		t.Errorf("unexpected recorder state %+v", st.Recorder)
	}
}

func TestUnknownScreen(t *testing.T) {
	s := newTestServer(t, voiceapi.NewMock())

	for _, path := range []string{"/api/login/phrase", "/api/login/submit", "/api/login/record/start"} {
		if code, _ := do(t, s, http.MethodPost, path, ""); code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, code)
		}
	}
}

func TestHomeCheck(t *testing.T) {
	mock := voiceapi.NewMock()
	s := newTestServer(t, mock)

	code, body := do(t, s, http.MethodPost, "/api/home/check", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", code, body)
	}
	st := decodeState(t, body)
	if st.Home.Connected == nil || !*st.Home.Connected {
		t.Error("expected connected")
	}

	mock.HealthFunc = func(ctx context.Context) voiceapi.Result[voiceapi.HealthStatus] {
		return voiceapi.Fail[voiceapi.HealthStatus]("connection refused")
	}
	code, body = do(t, s, http.MethodPost, "/api/home/check", "")
	if code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", code)
	}
	if e := decodeError(t, body); e.Error != "connection refused" {
		t.Errorf("error = %q", e.Error)
	}
}

func TestSubmit_Preconditions(t *testing.T) {
	mock := voiceapi.NewMock()
	s := newTestServer(t, mock)

	code, body := do(t, s, http.MethodPost, "/api/enrollment/submit", "")
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	e := decodeError(t, body)
	if e.Error != "Please enter a user ID." || e.Field != "user_id" {
		t.Errorf("unexpected error %+v", e)
	}

	do(t, s, http.MethodPost, "/api/verification/user", `{"user_id":"alice"}`)
	do(t, s, http.MethodPost, "/api/verification/phrase", "")
	code, body = do(t, s, http.MethodPost, "/api/verification/submit", "")
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if e := decodeError(t, body); e.Error != "Please record your audio before verifying." {
		t.Errorf("unexpected prompt %q", e.Error)
	}

	if n := mock.CallCount("Enroll") + mock.CallCount("Verify"); n != 0 {
		t.Errorf("expected no submissions, got %d", n)
	}
}

func TestSetUser_BadBody(t *testing.T) {
	s := newTestServer(t, voiceapi.NewMock())

	if code, _ := do(t, s, http.MethodPost, "/api/enrollment/user", `{"user_id":`); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestEnrollmentFlow(t *testing.T) {
	mock := voiceapi.NewMock()
	s := newTestServer(t, mock)

	code, body := do(t, s, http.MethodPost, "/api/enrollment/user", `{"user_id":"alice"}`)
	if code != http.StatusOK {
		t.Fatalf("user: %d %s", code, body)
	}
	code, body = do(t, s, http.MethodPost, "/api/enrollment/phrase", "")
	if code != http.StatusOK {
		t.Fatalf("phrase: %d %s", code, body)
	}
	if st := decodeState(t, body); st.Enrollment.Phrase != "the quick brown fox" {
		t.Errorf("phrase = %q", st.Enrollment.Phrase)
	}

	recordFor(t, s, ScreenEnrollment)

	code, body = do(t, s, http.MethodGet, "/api/state", "")
	st := decodeState(t, body)
	if st.Enrollment.Audio == nil || st.Enrollment.Audio.DurationSeconds != 1 {
		t.Fatalf("expected 1s recording, got %+v", st.Enrollment.Audio)
	}
	if !st.Enrollment.CanSubmit {
		t.Error("expected can_submit")
	}
	if st.Verification.Audio != nil {
		t.Error("recording attached to the wrong screen")
	}

	if code, body = do(t, s, http.MethodPost, "/api/enrollment/play", ""); code != http.StatusOK {
		t.Fatalf("play: %d %s", code, body)
	}

	code, body = do(t, s, http.MethodPost, "/api/enrollment/submit", "")
	if code != http.StatusOK {
		t.Fatalf("submit: %d %s", code, body)
	}
	st = decodeState(t, body)
	if st.Enrollment.Receipt == nil || st.Enrollment.Receipt.UserID != "alice" {
		t.Errorf("unexpected receipt %+v", st.Enrollment.Receipt)
	}
	if st.Enrollment.Audio != nil {
		t.Error("recording should be consumed")
	}

	calls := mock.Calls()
	last := calls[len(calls)-1]
	if last.Method != "Enroll" || last.UserID != "alice" || last.Phrase != "the quick brown fox" {
		t.Errorf("unexpected call %+v", last)
	}

	code, body = do(t, s, http.MethodPost, "/api/enrollment/dismiss", "")
	if code != http.StatusOK {
		t.Fatalf("dismiss: %d", code)
	}
	st = decodeState(t, body)
	if st.Enrollment.Receipt != nil || st.Enrollment.UserID != "" || st.Enrollment.Phrase != "" {
		t.Errorf("expected cleared form, got %+v", st.Enrollment)
	}
}

func TestVerification_FailureKeepsForm(t *testing.T) {
	mock := voiceapi.NewMock()
	mock.VerifyFunc = func(ctx context.Context, userID, phrase string, audio *capture.Artifact) voiceapi.Result[voiceapi.VerificationOutcome] {
		return voiceapi.Fail[voiceapi.VerificationOutcome]("Voiceprint not found")
	}
	s := newTestServer(t, mock)

	do(t, s, http.MethodPost, "/api/verification/user", `{"user_id":"bob"}`)
	do(t, s, http.MethodPost, "/api/verification/phrase", "")
	recordFor(t, s, ScreenVerification)

	code, body := do(t, s, http.MethodPost, "/api/verification/submit", "")
	if code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d %s", code, body)
	}
	if e := decodeError(t, body); e.Error != "Voiceprint not found" {
		t.Errorf("error = %q", e.Error)
	}

	_, body = do(t, s, http.MethodGet, "/api/state", "")
	st := decodeState(t, body)
	if st.Verification.UserID != "bob" || st.Verification.Phrase == "" {
		t.Errorf("form should be kept, got %+v", st.Verification)
	}
	if st.Verification.Audio != nil {
		t.Error("recording should be consumed after a failed attempt")
	}
	if st.Verification.Result != nil {
		t.Error("no result expected after failure")
	}
}

func TestVerification_SuccessAndReset(t *testing.T) {
	mock := voiceapi.NewMock()
	mock.VerifyFunc = func(ctx context.Context, userID, phrase string, audio *capture.Artifact) voiceapi.Result[voiceapi.VerificationOutcome] {
		return voiceapi.Ok(voiceapi.VerificationOutcome{Authenticated: true, Similarity: 0.91, UserID: userID})
	}
	s := newTestServer(t, mock)

	do(t, s, http.MethodPost, "/api/verification/user", `{"user_id":"carol"}`)
	do(t, s, http.MethodPost, "/api/verification/phrase", "")
	recordFor(t, s, ScreenVerification)

	code, body := do(t, s, http.MethodPost, "/api/verification/submit", "")
	if code != http.StatusOK {
		t.Fatalf("submit: %d %s", code, body)
	}
	st := decodeState(t, body)
	if st.Verification.Result == nil || st.Verification.Result.Percent != "91.0%" || st.Verification.Result.Band != "excellent" {
		t.Errorf("unexpected result %+v", st.Verification.Result)
	}

	_, body = do(t, s, http.MethodPost, "/api/verification/reset", "")
	st = decodeState(t, body)
	if st.Verification.Result != nil || st.Verification.UserID != "" {
		t.Errorf("expected reset, got %+v", st.Verification)
	}
}

func TestRecord_Conflicts(t *testing.T) {
	// A long cap keeps the first capture running.
	s := newTestServer(t, voiceapi.NewMock(), capture.WithMaxDuration(60), capture.WithTickInterval(time.Second))

	if code, body := do(t, s, http.MethodPost, "/api/enrollment/record/start", ""); code != http.StatusOK {
		t.Fatalf("start: %d %s", code, body)
	}
	_, body := do(t, s, http.MethodGet, "/api/state", "")
	if st := decodeState(t, body); !st.Recorder.Recording || st.Recorder.Screen != ScreenEnrollment {
		t.Errorf("unexpected recorder state %+v", st.Recorder)
	}

	if code, _ := do(t, s, http.MethodPost, "/api/verification/record/start", ""); code != http.StatusConflict {
		t.Errorf("second start: expected 409, got %d", code)
	}
	if code, _ := do(t, s, http.MethodPost, "/api/verification/record/stop", ""); code != http.StatusConflict {
		t.Errorf("stop from other screen: expected 409, got %d", code)
	}

	code, body := do(t, s, http.MethodPost, "/api/enrollment/record/stop", "")
	if code != http.StatusOK {
		t.Fatalf("stop: %d %s", code, body)
	}
	st := decodeState(t, body)
	if st.Enrollment.Audio == nil {
		t.Error("expected recording attached to enrollment")
	}
	if st.Recorder.Recording {
		t.Error("recorder should be idle")
	}
}

func TestRecord_AutoStopFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	s := newTestServer(t, voiceapi.NewMock(), capture.WithDir(filepath.Join(blocker, "recordings")))

	if code, body := do(t, s, http.MethodPost, "/api/enrollment/record/start", ""); code != http.StatusOK {
		t.Fatalf("start: %d %s", code, body)
	}

	var st State
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_, body := do(t, s, http.MethodGet, "/api/state", "")
		if st = decodeState(t, body); st.Recorder.Error != "" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if st.Recorder.Error != captureFailureText {
		t.Fatalf("expected capture failure in state, got %+v", st.Recorder)
	}
	if st.Recorder.Recording || st.Enrollment.Audio != nil {
		t.Errorf("expected idle recorder and no audio, got %+v", st)
	}

	// A new start clears the failure.
	code, body := do(t, s, http.MethodPost, "/api/enrollment/record/start", "")
	if code != http.StatusOK {
		t.Fatalf("restart: %d %s", code, body)
	}
	if st := decodeState(t, body); st.Recorder.Error != "" {
		t.Errorf("expected error cleared, got %q", st.Recorder.Error)
	}
}

func TestRecord_PermissionDenied(t *testing.T) {
	s := newTestServer(t, voiceapi.NewMock(), capture.WithPermission(capture.Denied))

	code, body := do(t, s, http.MethodPost, "/api/enrollment/record/start", "")
	if code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
	if e := decodeError(t, body); e.Error == "" {
		t.Error("expected an error message")
	}

	_, body = do(t, s, http.MethodGet, "/api/state", "")
	if st := decodeState(t, body); st.Recorder.Recording {
		t.Error("recorder should be idle")
	}
}

func TestPlay_NoRecording(t *testing.T) {
	s := newTestServer(t, voiceapi.NewMock())

	if code, _ := do(t, s, http.MethodPost, "/api/enrollment/play", ""); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestStateWebSocket(t *testing.T) {
	s := newTestServer(t, voiceapi.NewMock())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()
	defer func() {
		cancel()
		<-done
	}()

	base := ln.Addr().String()
	conn, _, err := gorilla.DefaultDialer.Dial("ws://"+base+"/ws/state", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	resp, err := http.Post("http://"+base+"/api/enrollment/user", "application/json", strings.NewReader(`{"user_id":"ws-user"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("no state with the new user: %v", err)
		}
		var st State
		if err := json.Unmarshal(data, &st); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if st.Enrollment.UserID == "ws-user" {
			return
		}
	}
}

func TestUpgradeRequired(t *testing.T) {
	s := newTestServer(t, voiceapi.NewMock())

	if code, _ := do(t, s, http.MethodGet, "/ws/state", ""); code != http.StatusUpgradeRequired {
		t.Errorf("expected 426, got %d", code)
	}
}
