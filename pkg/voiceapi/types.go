package voiceapi

import "github.com/teslashibe/go-voiceauth/pkg/capture"

// HealthStatus is the body of a successful health check.
type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Challenge carries a server-issued phrase the user must speak.
type Challenge struct {
	Phrase string `json:"phrase"`
}

// EnrollmentReceipt confirms a stored voiceprint.
type EnrollmentReceipt struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// VerificationOutcome is the server's decision for one verify call.
type VerificationOutcome struct {
	Authenticated bool    `json:"authenticated"`
	Similarity    float64 `json:"similarity"`
	UserID        string  `json:"user_id"`
}

// Claim is the triple needed to enroll or verify.
type Claim struct {
	UserID string
	Phrase string
	Audio  *capture.Artifact
}

// wire shapes; pointers mark required fields.
type challengeBody struct {
	Phrase *string `json:"phrase"`
}

type verifyBody struct {
	Authenticated *bool   `json:"authenticated"`
	Similarity    float64 `json:"similarity"`
	UserID        string  `json:"user_id"`
}

// errorFields holds the error texts a server may put in any response body.
type errorFields struct {
	Error   any `json:"error"`
	Message any `json:"message"`
}
