// Package stubapi is an in-memory stand-in for the voice-auth API used
// for local development. It issues phrases and remembers enrollments; it
// does no speaker recognition.
package stubapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
)

// DefaultPhrases are issued by the challenge endpoint.
var DefaultPhrases = []string{
	"the quick brown fox jumps over the lazy dog",
	"my voice is my password",
	"open sesame seven four two",
	"blue river stones at midnight",
	"every cloud has a silver lining",
	"sunlight dances on the water",
}

// RequestIDHeader carries the per-request id on every response.
const RequestIDHeader = "X-Request-ID"

// Config holds stub server configuration.
type Config struct {
	// Addr is the listen address, e.g. "127.0.0.1:8000".
	Addr string

	// Phrases overrides DefaultPhrases.
	Phrases []string

	// Latency delays every response, to exercise client loading states.
	Latency time.Duration

	Logger *slog.Logger
}

// voiceprint is what the stub remembers about an enrolled user.
type voiceprint struct {
	UserID     string
	Phrase     string
	RMS        float64
	Seconds    float64
	EnrolledAt time.Time
}

// Server is the stub API server.
type Server struct {
	app     *fiber.App
	addr    string
	phrases []string
	latency time.Duration
	logger  *slog.Logger

	mu         sync.Mutex
	users      map[string]voiceprint
	lastPhrase string
}

// New creates a stub server.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if len(cfg.Phrases) == 0 {
		cfg.Phrases = DefaultPhrases
	}

	s := &Server{
		addr:    cfg.Addr,
		phrases: cfg.Phrases,
		latency: cfg.Latency,
		logger:  cfg.Logger.With("component", "stubapi"),
		users:   make(map[string]voiceprint),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Voice Auth Stub API",
		DisableStartupMessage: true,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		BodyLimit:             16 * 1024 * 1024,
		ErrorHandler:          s.errorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(s.requestID)

	app.Get("/health", s.handleHealth)
	app.Get("/voice/challenge", s.handleChallenge)
	app.Post("/voice/enroll", s.handleEnroll)
	app.Post("/voice/verify", s.handleVerify)

	s.app = app
	return s
}

// Serve runs the stub on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listener(ln) }()

	s.logger.Info("stub API listening", "url", "http://"+ln.Addr().String())

	select {
	case <-ctx.Done():
		return s.app.Shutdown()
	case err := <-errCh:
		return err
	}
}

// ListenAndServe listens on the configured address and serves until ctx
// is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("stubapi: listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Enrolled reports whether userID has a stored voiceprint.
func (s *Server) Enrolled(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[userID]
	return ok
}

// requestID tags each request and logs it once handled.
func (s *Server) requestID(c *fiber.Ctx) error {
	id := c.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(RequestIDHeader, id)
	c.Locals("request_id", id)

	start := time.Now()
	if s.latency > 0 {
		time.Sleep(s.latency)
	}
	err := c.Next()

	s.logger.Debug("request",
		"id", id,
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return err
}

// errorHandler renders every error as {"error": message}.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) nextPhrase() string {
	p := s.phrases[rand.Intn(len(s.phrases))]

	s.mu.Lock()
	s.lastPhrase = p
	s.mu.Unlock()
	return p
}
