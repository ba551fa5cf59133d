package screens

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-voiceauth/pkg/voiceapi"
)

// Home tests connectivity to the API.
type Home struct {
	api     voiceapi.Service
	baseURL string
	cfg     *Config
	logger  *slog.Logger

	mu        sync.Mutex
	connected *bool
	checking  bool
	health    *voiceapi.HealthStatus
	notice    string
}

// HomeState is an immutable view of the home screen.
// Connected is nil until the first check completes.
type HomeState struct {
	BaseURL   string                 `json:"base_url"`
	Connected *bool                  `json:"connected"`
	Checking  bool                   `json:"checking"`
	Health    *voiceapi.HealthStatus `json:"health"`
	Notice    string                 `json:"notice,omitempty"`
}

// NewHome creates the home screen controller for the API at baseURL.
func NewHome(api voiceapi.Service, baseURL string, opts ...Option) *Home {
	cfg := newConfig(opts)
	return &Home{
		api:     api,
		baseURL: baseURL,
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "screens", "screen", "home"),
	}
}

// CheckConnection calls the health endpoint and records the outcome.
func (h *Home) CheckConnection(ctx context.Context) (*voiceapi.HealthStatus, error) {
	h.mu.Lock()
	if h.checking {
		h.mu.Unlock()
		return nil, ErrBusy
	}
	h.checking = true
	h.mu.Unlock()
	h.cfg.notify()

	res := h.api.CheckHealth(ctx)
	ok := res.Success

	h.mu.Lock()
	h.checking = false
	h.connected = &ok
	if ok {
		status := res.Data
		h.health = &status
		h.notice = fmt.Sprintf("API is up!\n\nStatus: %s\nMessage: %s", status.Status, status.Message)
	} else {
		h.health = nil
		h.notice = ConnectionFailedMessage(res.Error, h.baseURL)
	}
	h.mu.Unlock()
	h.cfg.notify()

	if !ok {
		h.logger.Warn("API unreachable", "base_url", h.baseURL, "error", res.Error)
		return nil, &RequestError{Op: voiceapi.OpHealth, Message: res.Error}
	}
	h.logger.Info("API reachable", "status", res.Data.Status)
	status := res.Data
	return &status, nil
}

// Snapshot returns the current screen state.
func (h *Home) Snapshot() HomeState {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := HomeState{
		BaseURL:  h.baseURL,
		Checking: h.checking,
		Notice:   h.notice,
	}
	if h.connected != nil {
		c := *h.connected
		s.Connected = &c
	}
	if h.health != nil {
		hs := *h.health
		s.Health = &hs
	}
	return s
}

// ConnectionFailedMessage is the notice shown when the API is unreachable.
func ConnectionFailedMessage(reason, baseURL string) string {
	return fmt.Sprintf("Could not connect to the API.\n\nError: %s\n\nCheck that the API is running at:\n%s", reason, baseURL)
}
