package screens

import (
	"fmt"

	"github.com/teslashibe/go-voiceauth/pkg/voiceapi"
)

// Band is the display class of a similarity score.
type Band string

// Similarity bands, best first.
const (
	BandExcellent Band = "excellent"
	BandGood      Band = "good"
	BandModerate  Band = "moderate"
	BandLow       Band = "low"
)

// Classify maps a similarity score to its band.
func Classify(similarity float64) Band {
	switch {
	case similarity >= 0.8:
		return BandExcellent
	case similarity >= 0.6:
		return BandGood
	case similarity >= 0.4:
		return BandModerate
	default:
		return BandLow
	}
}

// Label returns the interpretation shown under the score.
func (b Band) Label() string {
	switch b {
	case BandExcellent:
		return "Excellent match!"
	case BandGood:
		return "Good match"
	case BandModerate:
		return "Moderate match"
	default:
		return "Low match"
	}
}

// Percent formats a similarity score as a percentage with one decimal.
func Percent(similarity float64) string {
	return fmt.Sprintf("%.1f%%", similarity*100)
}

// ResultView is the rendered verification outcome.
type ResultView struct {
	Authenticated  bool    `json:"authenticated"`
	Title          string  `json:"title"`
	UserID         string  `json:"user_id,omitempty"`
	Similarity     float64 `json:"similarity"`
	Percent        string  `json:"percent"`
	Band           Band    `json:"band"`
	Interpretation string  `json:"interpretation"`
}

// NewResultView renders an outcome. A nil outcome renders nothing.
func NewResultView(o *voiceapi.VerificationOutcome) *ResultView {
	if o == nil {
		return nil
	}

	title := "Authentication failed"
	if o.Authenticated {
		title = "Authenticated successfully!"
	}
	band := Classify(o.Similarity)

	return &ResultView{
		Authenticated:  o.Authenticated,
		Title:          title,
		UserID:         o.UserID,
		Similarity:     o.Similarity,
		Percent:        Percent(o.Similarity),
		Band:           band,
		Interpretation: band.Label(),
	}
}
