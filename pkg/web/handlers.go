package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-voiceauth/pkg/capture"
	"github.com/teslashibe/go-voiceauth/pkg/hub"
	"github.com/teslashibe/go-voiceauth/pkg/screens"
)

// SetUserRequest is the body of POST /api/:screen/user.
type SetUserRequest struct {
	UserID string `json:"user_id"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// handleState returns the full dashboard state
func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.Snapshot())
}

func (s *Server) handleHomeCheck(c *fiber.Ctx) error {
	if _, err := s.home.CheckConnection(c.UserContext()); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.Snapshot())
}

func (s *Server) handleSetUser(c *fiber.Ctx) error {
	f, ok := s.form(c.Params("screen"))
	if !ok {
		return fiber.ErrNotFound
	}

	var req SetUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	f.SetUserID(req.UserID)
	return c.JSON(s.Snapshot())
}

func (s *Server) handlePhrase(c *fiber.Ctx) error {
	f, ok := s.form(c.Params("screen"))
	if !ok {
		return fiber.ErrNotFound
	}
	if _, err := f.FetchPhrase(c.UserContext()); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.Snapshot())
}

func (s *Server) handleRecordStart(c *fiber.Ctx) error {
	screen := c.Params("screen")
	if _, ok := s.form(screen); !ok {
		return fiber.ErrNotFound
	}

	// target must be set before onRecordingComplete can run.
	s.mu.Lock()
	err := s.recorder.Start(c.UserContext())
	if err == nil {
		s.target = screen
		s.captureErr = ""
	}
	s.mu.Unlock()

	if err != nil {
		return s.fail(c, err)
	}
	s.Publish()
	return c.JSON(s.Snapshot())
}

func (s *Server) handleRecordStop(c *fiber.Ctx) error {
	screen := c.Params("screen")
	f, ok := s.form(screen)
	if !ok {
		return fiber.ErrNotFound
	}

	s.mu.Lock()
	owner := s.target
	s.mu.Unlock()
	if s.recorder.Recording() && owner != screen {
		return s.fail(c, capture.ErrBusy)
	}

	a, err := s.recorder.Stop()
	if err != nil {
		return s.fail(c, err)
	}
	if a != nil {
		s.mu.Lock()
		s.target = ""
		s.mu.Unlock()
		if err := f.AttachRecording(a); err != nil {
			a.Release()
			return s.fail(c, err)
		}
	}
	s.Publish()
	return c.JSON(s.Snapshot())
}

func (s *Server) handlePlay(c *fiber.Ctx) error {
	f, ok := s.form(c.Params("screen"))
	if !ok {
		return fiber.ErrNotFound
	}

	a := f.Recording()
	if a == nil {
		return s.fail(c, capture.ErrNoArtifact)
	}

	s.Publish()
	err := s.recorder.Play(c.UserContext(), a)
	s.Publish()
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.Snapshot())
}

func (s *Server) handleSubmit(c *fiber.Ctx) error {
	var err error
	switch c.Params("screen") {
	case ScreenEnrollment:
		_, err = s.enroll.Submit(c.UserContext())
	case ScreenVerification:
		_, err = s.verify.Submit(c.UserContext())
	default:
		return fiber.ErrNotFound
	}
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.Snapshot())
}

func (s *Server) handleDismiss(c *fiber.Ctx) error {
	if err := s.enroll.Dismiss(); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.Snapshot())
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	if err := s.verify.Reset(); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.Snapshot())
}

// handleStateWS streams state snapshots until the connection closes.
func (s *Server) handleStateWS(conn *websocket.Conn) {
	client := hub.NewClient(s.stateHub, conn)
	s.Publish()
	client.Run()
}

const captureFailureText = "Recording failed. Please try again."

// fail maps an action error to a status code and {"error": prompt}.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	resp := ErrorResponse{Error: screens.Prompt(err)}

	var verr *screens.ValidationError
	var rerr *screens.RequestError
	switch {
	case errors.As(err, &verr):
		status = fiber.StatusBadRequest
		resp.Field = string(verr.Field)
	case errors.As(err, &rerr):
		status = fiber.StatusBadGateway
	case errors.Is(err, screens.ErrBusy), errors.Is(err, capture.ErrBusy):
		status = fiber.StatusConflict
	case errors.Is(err, capture.ErrPermissionDenied):
		status = fiber.StatusForbidden
		resp.Error = "Microphone permission is required to record."
	case errors.Is(err, capture.ErrNoArtifact):
		status = fiber.StatusBadRequest
		resp.Error = "There is no recording to play."
	case errors.Is(err, capture.ErrCaptureFailed):
		resp.Error = captureFailureText
	case errors.Is(err, screens.ErrClosed), errors.Is(err, capture.ErrClosed):
		status = fiber.StatusServiceUnavailable
	}

	if status >= fiber.StatusInternalServerError {
		s.logger.Error("action failed", "path", c.Path(), "error", err)
	} else {
		s.logger.Debug("action rejected", "path", c.Path(), "status", status, "error", err)
	}
	return c.Status(status).JSON(resp)
}
