package capture

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-voiceauth/pkg/audioio"
)

// MimeTypeWAV is the content type of every recording.
const MimeTypeWAV = "audio/wav"

// Artifact is a finished recording on disk.
// It is handed to exactly one submission and released afterwards.
type Artifact struct {
	Locator           string `json:"locator"`
	DurationSeconds   int    `json:"duration_seconds"`
	MimeType          string `json:"mime_type"`
	SuggestedFilename string `json:"suggested_filename"`

	// owned artifacts are removed from disk on Release.
	owned    bool
	claimed  atomic.Bool
	released atomic.Bool
}

// SuggestedName returns the upload filename for a recording finished at t.
func SuggestedName(t time.Time) string {
	return fmt.Sprintf("recording_%d.wav", t.UnixMilli())
}

// FromFile wraps an existing WAV file as an artifact. The file is validated
// and never deleted by Release.
func FromFile(path string) (*Artifact, error) {
	chunk, err := audioio.ReadWAV(path)
	if err != nil {
		return nil, err
	}

	return &Artifact{
		Locator:           path,
		DurationSeconds:   int(chunk.Duration() / time.Second),
		MimeType:          MimeTypeWAV,
		SuggestedFilename: filepath.Base(path),
	}, nil
}

// Open returns a reader over the recording.
func (a *Artifact) Open() (io.ReadCloser, error) {
	if a.released.Load() {
		return nil, fs.ErrNotExist
	}
	return os.Open(a.Locator)
}

// Claim marks the artifact as submitted. Only the first call returns true.
func (a *Artifact) Claim() bool {
	return a.claimed.CompareAndSwap(false, true)
}

// Claimed reports whether the artifact has been submitted.
func (a *Artifact) Claimed() bool {
	return a.claimed.Load()
}

// Release removes the recording file. Safe to call more than once.
func (a *Artifact) Release() error {
	if a == nil || !a.released.CompareAndSwap(false, true) {
		return nil
	}
	if !a.owned {
		return nil
	}
	if err := os.Remove(a.Locator); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release recording: %w", err)
	}
	return nil
}

// Released reports whether Release has been called.
func (a *Artifact) Released() bool {
	return a.released.Load()
}

// FormatDuration renders seconds as mm:ss.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
