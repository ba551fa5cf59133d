// Package voiceapi is the client for the voice-biometrics HTTP API.
//
// Every operation performs exactly one request and returns a Result; no
// error escapes the package boundary. Failures are normalized so the user
// sees, in order of preference, the server's "error" field, its "message"
// field, the transport failure, or a fallback naming the operation.
package voiceapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"github.com/teslashibe/go-voiceauth/pkg/capture"
)

// Service is the set of API operations the screens depend on.
type Service interface {
	CheckHealth(ctx context.Context) Result[HealthStatus]
	GetChallengePhrase(ctx context.Context) Result[Challenge]
	Enroll(ctx context.Context, userID, phrase string, audio *capture.Artifact) Result[EnrollmentReceipt]
	Verify(ctx context.Context, userID, phrase string, audio *capture.Artifact) Result[VerificationOutcome]
}

// Client talks to the voice-auth API over HTTP.
type Client struct {
	cfg    *Config
	http   *resty.Client
	logger *slog.Logger
}

// New creates an API client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("component", "voiceapi")

	rc := resty.NewWithClient(cfg.httpClient()).
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "go-voiceauth").
		SetLogger(restyLogger{logger})

	return &Client{
		cfg:    cfg,
		http:   rc,
		logger: logger,
	}, nil
}

// BaseURL returns the configured API endpoint.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// CheckHealth asks the API whether it is up.
func (c *Client) CheckHealth(ctx context.Context) Result[HealthStatus] {
	return send(ctx, c, OpHealth, http.MethodGet, c.cfg.Paths.Health, c.http.R(), decodeJSON[HealthStatus])
}

// GetChallengePhrase fetches a phrase for the next submission.
func (c *Client) GetChallengePhrase(ctx context.Context) Result[Challenge] {
	return send(ctx, c, OpChallenge, http.MethodGet, c.cfg.Paths.Challenge, c.http.R(), decodeChallenge)
}

// Enroll registers the recording as the user's voiceprint.
func (c *Client) Enroll(ctx context.Context, userID, phrase string, audio *capture.Artifact) Result[EnrollmentReceipt] {
	return submit(ctx, c, OpEnroll, c.cfg.Paths.Enroll, Claim{UserID: userID, Phrase: phrase, Audio: audio}, decodeJSON[EnrollmentReceipt])
}

// Verify compares the recording against the user's voiceprint.
func (c *Client) Verify(ctx context.Context, userID, phrase string, audio *capture.Artifact) Result[VerificationOutcome] {
	return submit(ctx, c, OpVerify, c.cfg.Paths.Verify, Claim{UserID: userID, Phrase: phrase, Audio: audio}, decodeVerify)
}

// submit sends claim as a multipart form. The recording is claimed before
// the request so it can never be uploaded twice.
func submit[T any](ctx context.Context, c *Client, op Operation, path string, claim Claim, decode func([]byte) (T, error)) Result[T] {
	if claim.Audio == nil {
		return fail[T](c, &APIError{Op: op, Cause: ErrNoAudio})
	}
	if !claim.Audio.Claim() {
		return fail[T](c, &APIError{Op: op, Cause: ErrAudioConsumed})
	}

	f, err := claim.Audio.Open()
	if err != nil {
		return fail[T](c, &APIError{Op: op, Cause: fmt.Errorf("open recording: %w", err)})
	}
	defer f.Close()

	filename := claim.Audio.SuggestedFilename
	if filename == "" {
		filename = capture.SuggestedName(time.Now())
	}
	contentType := claim.Audio.MimeType
	if contentType == "" {
		contentType = capture.MimeTypeWAV
	}

	req := c.http.R().
		SetMultipartFormData(map[string]string{
			"user_id":         claim.UserID,
			"phrase_expected": claim.Phrase,
		}).
		SetMultipartField("audio_file", filename, contentType, f)

	return send(ctx, c, op, http.MethodPost, path, req, decode)
}

// send executes req once and converts the outcome into a Result.
func send[T any](ctx context.Context, c *Client, op Operation, method, path string, req *resty.Request, decode func([]byte) (T, error)) Result[T] {
	start := time.Now()

	resp, err := req.SetContext(ctx).Execute(method, path)
	if err != nil {
		return fail[T](c, &APIError{Op: op, Transport: err})
	}

	body := resp.Body()
	fields := extractErrorFields(body)

	if !resp.IsSuccess() {
		return fail[T](c, &APIError{
			Op:          op,
			StatusCode:  resp.StatusCode(),
			ErrorText:   fields.errorText,
			MessageText: fields.messageText,
			Transport:   StatusError(resp.StatusCode()),
		})
	}

	data, err := decode(body)
	if err != nil {
		return fail[T](c, &APIError{
			Op:          op,
			StatusCode:  resp.StatusCode(),
			ErrorText:   fields.errorText,
			MessageText: fields.messageText,
			Cause:       err,
		})
	}

	c.logger.Debug("request ok",
		"op", op,
		"status", resp.StatusCode(),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return Ok(data)
}

func fail[T any](c *Client, err *APIError) Result[T] {
	c.logger.Warn("request failed", "op", err.Op, "status", err.StatusCode, "error", err)
	return failure[T](err.Op, err)
}

type bodyErrors struct {
	errorText   string
	messageText string
}

// extractErrorFields reads string "error" and "message" fields from any
// JSON object body. Non-string values and non-JSON bodies yield nothing.
func extractErrorFields(body []byte) bodyErrors {
	var f errorFields
	if len(body) == 0 || sonic.Unmarshal(body, &f) != nil {
		return bodyErrors{}
	}
	var out bodyErrors
	if s, ok := f.Error.(string); ok {
		out.errorText = s
	}
	if s, ok := f.Message.(string); ok {
		out.messageText = s
	}
	return out
}

func decodeJSON[T any](body []byte) (T, error) {
	var v T
	if err := sonic.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("decode response: %w", err)
	}
	return v, nil
}

func decodeChallenge(body []byte) (Challenge, error) {
	b, err := decodeJSON[challengeBody](body)
	if err != nil {
		return Challenge{}, err
	}
	if b.Phrase == nil || strings.TrimSpace(*b.Phrase) == "" {
		return Challenge{}, fmt.Errorf("%w: phrase", ErrMissingField)
	}
	return Challenge{Phrase: *b.Phrase}, nil
}

func decodeVerify(body []byte) (VerificationOutcome, error) {
	b, err := decodeJSON[verifyBody](body)
	if err != nil {
		return VerificationOutcome{}, err
	}
	if b.Authenticated == nil {
		return VerificationOutcome{}, fmt.Errorf("%w: authenticated", ErrMissingField)
	}
	return VerificationOutcome{
		Authenticated: *b.Authenticated,
		Similarity:    b.Similarity,
		UserID:        b.UserID,
	}, nil
}

// restyLogger routes resty's internal messages into slog.
type restyLogger struct {
	l *slog.Logger
}

func (r restyLogger) Errorf(format string, v ...any) { r.l.Error(fmt.Sprintf(format, v...)) }
func (r restyLogger) Warnf(format string, v ...any)  { r.l.Warn(fmt.Sprintf(format, v...)) }
func (r restyLogger) Debugf(format string, v ...any) { r.l.Debug(fmt.Sprintf(format, v...)) }

var _ Service = (*Client)(nil)
