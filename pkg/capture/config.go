package capture

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/teslashibe/go-voiceauth/pkg/audioio"
)

// Duration limits, in seconds.
const (
	DefaultMaxDuration = 10
	MinDuration        = 1
	MaxDurationLimit   = 3600
)

// SourceFactory opens a capture device. audioio.NewSource satisfies it.
type SourceFactory func(cfg audioio.Config, logger *slog.Logger) (audioio.Source, error)

// SinkFactory opens a playback device. audioio.NewSink satisfies it.
type SinkFactory func(cfg audioio.Config, logger *slog.Logger) (audioio.Sink, error)

// Config holds recorder configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// Audio is the device profile; SampleRate and Channels are forced to
	// 16 kHz mono before a session opens.
	Audio audioio.Config

	// MaxDuration caps each recording, in seconds.
	MaxDuration int

	// TickInterval is the period of the elapsed-time counter. One tick is
	// one second of recording in production.
	TickInterval time.Duration

	// Dir holds finished recordings.
	Dir string

	Permission Permission
	NewSource  SourceFactory
	NewSink    SinkFactory

	// OnComplete receives the outcome of a recording stopped by the
	// duration cap: an artifact, or the *CaptureError that prevented one.
	// It runs on the recorder's goroutine.
	OnComplete func(*Artifact, error)

	// OnTick receives the elapsed tick count while recording.
	OnTick func(elapsed int)

	Logger *slog.Logger
}

// Option is a functional option for configuring a Recorder.
type Option func(*Config)

// WithAudioConfig sets the device profile (backend, device, buffer size).
func WithAudioConfig(cfg audioio.Config) Option {
	return func(c *Config) {
		c.Audio = cfg
	}
}

// WithMaxDuration sets the recording cap in seconds.
func WithMaxDuration(seconds int) Option {
	return func(c *Config) {
		c.MaxDuration = seconds
	}
}

// WithTickInterval overrides the one-second tick.
func WithTickInterval(d time.Duration) Option {
	return func(c *Config) {
		c.TickInterval = d
	}
}

// WithDir sets the recordings directory.
func WithDir(dir string) Option {
	return func(c *Config) {
		c.Dir = dir
	}
}

// WithPermission sets the microphone permission provider.
func WithPermission(p Permission) Option {
	return func(c *Config) {
		c.Permission = p
	}
}

// WithSourceFactory overrides how capture devices are opened.
func WithSourceFactory(f SourceFactory) Option {
	return func(c *Config) {
		c.NewSource = f
	}
}

// WithSinkFactory overrides how playback devices are opened.
func WithSinkFactory(f SinkFactory) Option {
	return func(c *Config) {
		c.NewSink = f
	}
}

// WithOnComplete registers the callback for auto-stopped recordings.
func WithOnComplete(fn func(*Artifact, error)) Option {
	return func(c *Config) {
		c.OnComplete = fn
	}
}

// WithOnTick registers the elapsed-time callback.
func WithOnTick(fn func(elapsed int)) Option {
	return func(c *Config) {
		c.OnTick = fn
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns a 10-second recorder writing to the temp directory.
func DefaultConfig() *Config {
	return &Config{
		Audio:        audioio.DefaultConfig(),
		MaxDuration:  DefaultMaxDuration,
		TickInterval: time.Second,
		Dir:          filepath.Join(os.TempDir(), "voiceauth-recordings"),
		Permission:   Granted,
		NewSource:    audioio.NewSource,
		NewSink:      audioio.NewSink,
		Logger:       slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxDuration < MinDuration || c.MaxDuration > MaxDurationLimit {
		return fmt.Errorf("%w: %d", ErrInvalidMaxDuration, c.MaxDuration)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("capture: tick interval must be positive, got %v", c.TickInterval)
	}
	if c.Dir == "" {
		return fmt.Errorf("capture: recordings directory required")
	}
	if c.NewSource == nil || c.NewSink == nil {
		return fmt.Errorf("capture: audio factories required")
	}
	return nil
}
