// Package web serves the voice-auth screens as a local dashboard: JSON
// state, HTTP actions and a websocket that pushes every state change.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-voiceauth/pkg/capture"
	"github.com/teslashibe/go-voiceauth/pkg/hub"
	"github.com/teslashibe/go-voiceauth/pkg/screens"
	"github.com/teslashibe/go-voiceauth/pkg/voiceapi"
)

// Screen names used in routes.
const (
	ScreenEnrollment   = "enrollment"
	ScreenVerification = "verification"
)

// Config holds dashboard configuration.
type Config struct {
	// Addr is the listen address, e.g. "127.0.0.1:8080".
	Addr string

	// API is the voice-auth service the screens call.
	API voiceapi.Service

	// BaseURL is shown on the home screen.
	BaseURL string

	// RecorderOptions configure the shared recorder. Completion and tick
	// callbacks are set by the server.
	RecorderOptions []capture.Option

	Logger *slog.Logger
}

// RecorderState describes the shared microphone.
type RecorderState struct {
	Recording  bool   `json:"recording"`
	Playing    bool   `json:"playing"`
	Screen     string `json:"screen,omitempty"`
	Elapsed    int    `json:"elapsed"`
	Clock      string `json:"clock"`
	MaxSeconds int    `json:"max_seconds"`

	// Error is the last failed auto-stop, cleared by the next start.
	Error string `json:"error,omitempty"`
}

// State is the full dashboard snapshot.
type State struct {
	Home         screens.HomeState         `json:"home"`
	Enrollment   screens.EnrollmentState   `json:"enrollment"`
	Verification screens.VerificationState `json:"verification"`
	Recorder     RecorderState             `json:"recorder"`
}

// form is the part of a screen the generic handlers drive.
type form interface {
	SetUserID(id string)
	FetchPhrase(ctx context.Context) (string, error)
	AttachRecording(a *capture.Artifact) error
	Recording() *capture.Artifact
	Close() error
}

// Server is the web dashboard server.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	home     *screens.Home
	enroll   *screens.Enrollment
	verify   *screens.Verification
	recorder *capture.Recorder

	stateHub *hub.Hub

	// target is the screen that owns the capture in progress.
	mu         sync.Mutex
	target     string
	captureErr string
}

// NewServer builds the screens, the recorder and the routes.
func NewServer(cfg Config) (*Server, error) {
	if cfg.API == nil {
		return nil, errors.New("web: API service required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		addr:   cfg.Addr,
		logger: cfg.Logger.With("component", "web"),
	}
	s.stateHub = hub.New("state", cfg.Logger)

	recOpts := append([]capture.Option{}, cfg.RecorderOptions...)
	recOpts = append(recOpts,
		capture.WithLogger(cfg.Logger),
		capture.WithOnComplete(s.onRecordingComplete),
		capture.WithOnTick(func(int) { s.Publish() }),
	)
	rec, err := capture.NewRecorder(recOpts...)
	if err != nil {
		return nil, fmt.Errorf("web: recorder: %w", err)
	}
	s.recorder = rec

	screenOpts := []screens.Option{
		screens.WithLogger(cfg.Logger),
		screens.WithOnChange(s.Publish),
	}
	s.home = screens.NewHome(cfg.API, cfg.BaseURL, screenOpts...)
	s.enroll = screens.NewEnrollment(cfg.API, screenOpts...)
	s.verify = screens.NewVerification(cfg.API, screenOpts...)

	app := fiber.New(fiber.Config{
		AppName:               "Voice Auth Dashboard",
		DisableStartupMessage: true,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
	})

	app.Use(recover.New())
	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Post("/home/check", s.handleHomeCheck)
	api.Post("/enrollment/dismiss", s.handleDismiss)
	api.Post("/verification/reset", s.handleReset)
	api.Post("/:screen/user", s.handleSetUser)
	api.Post("/:screen/phrase", s.handlePhrase)
	api.Post("/:screen/record/start", s.handleRecordStart)
	api.Post("/:screen/record/stop", s.handleRecordStop)
	api.Post("/:screen/play", s.handlePlay)
	api.Post("/:screen/submit", s.handleSubmit)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/state", websocket.New(s.handleStateWS))

	s.app = app
	return s, nil
}

// Serve runs the dashboard on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hubCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.stateHub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listener(ln) }()

	s.logger.Info("dashboard listening", "url", "http://"+ln.Addr().String())

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		s.Close()
		return err
	}
}

// ListenAndServe listens on the configured address and serves until ctx
// is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("web: listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Shutdown gracefully stops the web server and releases the screens.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	s.Close()
	return err
}

// Close releases the recorder and any recordings the screens hold.
func (s *Server) Close() {
	s.recorder.Close()
	s.enroll.Close()
	s.verify.Close()
}

// Snapshot returns the current dashboard state.
func (s *Server) Snapshot() State {
	s.mu.Lock()
	target := s.target
	captureErr := s.captureErr
	s.mu.Unlock()

	elapsed := s.recorder.Elapsed()
	rs := RecorderState{
		Recording:  s.recorder.Recording(),
		Playing:    s.recorder.Playing(),
		Elapsed:    elapsed,
		Clock:      capture.FormatDuration(elapsed),
		MaxSeconds: s.recorder.MaxDuration(),
		Error:      captureErr,
	}
	if rs.Recording {
		rs.Screen = target
	}

	return State{
		Home:         s.home.Snapshot(),
		Enrollment:   s.enroll.Snapshot(),
		Verification: s.verify.Snapshot(),
		Recorder:     rs,
	}
}

// Publish pushes the current state to websocket subscribers.
func (s *Server) Publish() {
	if err := s.stateHub.BroadcastJSON("state", s.Snapshot()); err != nil {
		s.logger.Warn("encode state", "error", err)
	}
}

func (s *Server) form(screen string) (form, bool) {
	switch screen {
	case ScreenEnrollment:
		return s.enroll, true
	case ScreenVerification:
		return s.verify, true
	default:
		return nil, false
	}
}

// onRecordingComplete hands an auto-stopped recording to the screen that
// started it, or records why there is none.
func (s *Server) onRecordingComplete(a *capture.Artifact, err error) {
	s.mu.Lock()
	target := s.target
	s.target = ""
	if err != nil {
		s.captureErr = captureFailureText
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("recording failed", "screen", target, "error", err)
		s.Publish()
		return
	}

	f, ok := s.form(target)
	if !ok {
		a.Release()
		return
	}
	if err := f.AttachRecording(a); err != nil {
		s.logger.Warn("attach recording", "screen", target, "error", err)
		a.Release()
	}
	s.Publish()
}
