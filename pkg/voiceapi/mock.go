package voiceapi

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-voiceauth/pkg/capture"
)

// Mock implements Service for testing.
// All methods can be customized via function fields.
type Mock struct {
	// HealthFunc is called when CheckHealth is invoked.
	// If nil, reports a healthy API.
	HealthFunc func(ctx context.Context) Result[HealthStatus]

	// ChallengeFunc is called when GetChallengePhrase is invoked.
	// If nil, returns a fixed phrase.
	ChallengeFunc func(ctx context.Context) Result[Challenge]

	// EnrollFunc is called when Enroll is invoked.
	// If nil, enrollment succeeds.
	EnrollFunc func(ctx context.Context, userID, phrase string, audio *capture.Artifact) Result[EnrollmentReceipt]

	// VerifyFunc is called when Verify is invoked.
	// If nil, verification succeeds with similarity 0.9.
	VerifyFunc func(ctx context.Context, userID, phrase string, audio *capture.Artifact) Result[VerificationOutcome]

	// Tracking
	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	UserID string
	Phrase string
	Audio  *capture.Artifact
	Time   time.Time
}

// NewMock creates a new mock service with sensible defaults.
func NewMock() *Mock {
	return &Mock{}
}

// CheckHealth calls HealthFunc and records the call.
func (m *Mock) CheckHealth(ctx context.Context) Result[HealthStatus] {
	m.recordCall(MockCall{Method: "CheckHealth"})
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return Ok(HealthStatus{Status: "ok", Message: "mock API"})
}

// GetChallengePhrase calls ChallengeFunc and records the call.
func (m *Mock) GetChallengePhrase(ctx context.Context) Result[Challenge] {
	m.recordCall(MockCall{Method: "GetChallengePhrase"})
	if m.ChallengeFunc != nil {
		return m.ChallengeFunc(ctx)
	}
	return Ok(Challenge{Phrase: "the quick brown fox"})
}

// Enroll calls EnrollFunc and records the call.
func (m *Mock) Enroll(ctx context.Context, userID, phrase string, audio *capture.Artifact) Result[EnrollmentReceipt] {
	m.recordCall(MockCall{Method: "Enroll", UserID: userID, Phrase: phrase, Audio: audio})
	if m.EnrollFunc != nil {
		return m.EnrollFunc(ctx, userID, phrase, audio)
	}
	return Ok(EnrollmentReceipt{UserID: userID, Message: "enrolled"})
}

// Verify calls VerifyFunc and records the call.
func (m *Mock) Verify(ctx context.Context, userID, phrase string, audio *capture.Artifact) Result[VerificationOutcome] {
	m.recordCall(MockCall{Method: "Verify", UserID: userID, Phrase: phrase, Audio: audio})
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, userID, phrase, audio)
	}
	return Ok(VerificationOutcome{Authenticated: true, Similarity: 0.9, UserID: userID})
}

func (m *Mock) recordCall(c MockCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.Time = time.Now()
	m.calls = append(m.calls, c)
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of calls to the given method.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

var _ Service = (*Mock)(nil)
