package voiceapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/teslashibe/go-voiceauth/internal/httpc"
)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 30 * time.Second
)

// Paths are the endpoint paths relative to the base URL.
type Paths struct {
	Health    string
	Challenge string
	Enroll    string
	Verify    string
}

// DefaultPaths returns the standard endpoint layout.
func DefaultPaths() Paths {
	return Paths{
		Health:    "/health",
		Challenge: "/voice/challenge",
		Enroll:    "/voice/enroll",
		Verify:    "/voice/verify",
	}
}

// Config holds API client configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Paths   Paths

	// HTTPClient replaces the shared transport; its Timeout is overwritten.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithBaseURL sets the API base URL.
func WithBaseURL(u string) Option {
	return func(c *Config) {
		c.BaseURL = u
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithPaths overrides the endpoint paths.
func WithPaths(p Paths) Option {
	return func(c *Config) {
		c.Paths = p
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = hc
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the local-development configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: DefaultBaseURL,
		Timeout: DefaultTimeout,
		Paths:   DefaultPaths(),
		Logger:  slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.BaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("voiceapi: timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

func (c *Config) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return httpc.NewClient(c.Timeout)
	}
	hc := *c.HTTPClient
	hc.Timeout = c.Timeout
	return &hc
}
