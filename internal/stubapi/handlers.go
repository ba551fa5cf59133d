package stubapi

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-voiceauth/pkg/audioio"
)

// Similarity scores handed out by verify.
const (
	matchBase    = 0.75
	matchSpread  = 0.2
	mismatchBase = 0.25
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ChallengeResponse is the body of GET /voice/challenge.
type ChallengeResponse struct {
	Phrase string `json:"phrase"`
}

// EnrollResponse is the body of a successful enrollment.
type EnrollResponse struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// VerifyResponse is the body of a verification decision.
type VerifyResponse struct {
	Authenticated bool    `json:"authenticated"`
	Similarity    float64 `json:"similarity"`
	UserID        string  `json:"user_id"`
}

// submission is the parsed multipart body of enroll and verify.
type submission struct {
	userID  string
	phrase  string
	rms     float64
	seconds float64
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	s.mu.Lock()
	n := len(s.users)
	s.mu.Unlock()

	return c.JSON(HealthResponse{
		Status:  "ok",
		Message: fmt.Sprintf("voice auth stub running, %d enrolled", n),
	})
}

func (s *Server) handleChallenge(c *fiber.Ctx) error {
	return c.JSON(ChallengeResponse{Phrase: s.nextPhrase()})
}

func (s *Server) handleEnroll(c *fiber.Ctx) error {
	sub, err := parseSubmission(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.users[sub.userID] = voiceprint{
		UserID:     sub.userID,
		Phrase:     sub.phrase,
		RMS:        sub.rms,
		Seconds:    sub.seconds,
		EnrolledAt: time.Now(),
	}
	s.mu.Unlock()

	s.logger.Info("enrolled", "user_id", sub.userID, "seconds", sub.seconds)
	return c.JSON(EnrollResponse{
		UserID:  sub.userID,
		Message: "Voice enrolled successfully",
	})
}

func (s *Server) handleVerify(c *fiber.Ctx) error {
	sub, err := parseSubmission(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	vp, ok := s.users[sub.userID]
	last := s.lastPhrase
	s.mu.Unlock()

	if !ok {
		return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("User %s is not enrolled", sub.userID))
	}

	matched := last != "" && samePhrase(sub.phrase, last)
	similarity := mismatchBase
	if matched {
		similarity = matchBase + matchSpread*loudnessMatch(vp.RMS, sub.rms)
	}

	s.logger.Info("verified",
		"user_id", sub.userID,
		"authenticated", matched,
		"similarity", similarity,
	)
	return c.JSON(VerifyResponse{
		Authenticated: matched,
		Similarity:    similarity,
		UserID:        sub.userID,
	})
}

// parseSubmission reads and checks the multipart fields. The audio must
// be a WAV container.
func parseSubmission(c *fiber.Ctx) (submission, error) {
	sub := submission{
		userID: strings.TrimSpace(c.FormValue("user_id")),
		phrase: strings.TrimSpace(c.FormValue("phrase_expected")),
	}
	if sub.userID == "" {
		return sub, fiber.NewError(fiber.StatusBadRequest, "user_id is required")
	}
	if sub.phrase == "" {
		return sub, fiber.NewError(fiber.StatusBadRequest, "phrase_expected is required")
	}

	fh, err := c.FormFile("audio_file")
	if err != nil {
		return sub, fiber.NewError(fiber.StatusBadRequest, "audio_file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return sub, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	chunk, err := audioio.DecodeWAV(f)
	if err != nil {
		return sub, fiber.NewError(fiber.StatusUnprocessableEntity, "audio_file is not a valid WAV recording")
	}
	if len(chunk.Samples) == 0 {
		return sub, fiber.NewError(fiber.StatusUnprocessableEntity, "audio_file is empty")
	}

	sub.rms = audioio.CalculateRMS(chunk.Samples)
	sub.seconds = chunk.Duration().Seconds()
	return sub, nil
}

func samePhrase(a, b string) bool {
	return strings.EqualFold(strings.Join(strings.Fields(a), " "), strings.Join(strings.Fields(b), " "))
}

// loudnessMatch returns 1 for equal loudness, falling toward 0 as the
// levels diverge.
func loudnessMatch(a, b float64) float64 {
	hi := math.Max(a, b)
	if hi == 0 {
		return 1
	}
	return math.Min(a, b) / hi
}
