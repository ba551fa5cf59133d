// Package capture records short microphone clips as WAV artifacts and plays
// them back.
//
// A Recorder owns at most one device session at a time: either a capture or
// a playback. Every session is torn down on Stop, on the duration cap, on
// error and on Close.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-voiceauth/pkg/audioio"
)

// Recorder captures mono 16 kHz PCM16 audio capped at a maximum duration.
type Recorder struct {
	cfg    *Config
	logger *slog.Logger

	mu       sync.Mutex
	active   *session
	playback *playback
	closed   bool
}

type session struct {
	src     audioio.Source
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time

	// samples is owned by the pump goroutine until done is closed.
	samples []int16
	ticks   atomic.Int32
}

type playback struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRecorder creates a recorder with the given options.
func NewRecorder(opts ...Option) (*Recorder, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Permission == nil {
		cfg.Permission = Granted
	}

	// Fixed capture profile.
	cfg.Audio.SampleRate = 16000
	cfg.Audio.Channels = 1

	return &Recorder{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "capture"),
	}, nil
}

// MaxDuration returns the recording cap in seconds.
func (r *Recorder) MaxDuration() int {
	return r.cfg.MaxDuration
}

// Recording reports whether a capture session is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Playing reports whether a playback session is active.
func (r *Recorder) Playing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playback != nil
}

// Elapsed returns the tick count of the active capture, or 0.
func (r *Recorder) Elapsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return 0
	}
	return int(r.active.ticks.Load())
}

func (r *Recorder) checkIdle() error {
	if r.closed {
		return ErrClosed
	}
	if r.active != nil || r.playback != nil {
		return ErrBusy
	}
	return nil
}

// Start asks for microphone permission and opens a capture session.
// The session outlives ctx; it ends on Stop, the duration cap or Close.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	err := r.checkIdle()
	r.mu.Unlock()
	if err != nil {
		return err
	}

	granted, err := r.cfg.Permission.RequestMicrophonePermission(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	if !granted {
		return ErrPermissionDenied
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check: the permission prompt ran without the lock.
	if err := r.checkIdle(); err != nil {
		return err
	}

	src, err := r.cfg.NewSource(r.cfg.Audio, r.logger)
	if err != nil {
		return wrapError("open", err)
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := src.Start(sctx); err != nil {
		cancel()
		src.Close()
		return wrapError("start", err)
	}

	s := &session{
		src:     src,
		cancel:  cancel,
		done:    make(chan struct{}),
		started: time.Now(),
	}
	r.active = s

	go r.pump(sctx, s)

	r.logger.Info("recording started",
		"backend", src.Name(),
		"max_seconds", r.cfg.MaxDuration,
	)
	return nil
}

// pump moves device chunks into the session buffer and drives the tick
// counter until the session is cancelled or the cap is reached.
func (r *Recorder) pump(ctx context.Context, s *session) {
	defer close(s.done)

	rate := r.cfg.Audio.SampleRate
	limit := r.cfg.MaxDuration * rate
	stream := s.src.Stream()

	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case chunk, ok := <-stream:
			if !ok {
				r.logger.Warn("capture stream closed early")
				stream = nil
				continue
			}
			mono := audioio.ToMono(chunk, rate)
			room := limit - len(s.samples)
			if room <= 0 {
				continue
			}
			if len(mono.Samples) > room {
				mono.Samples = mono.Samples[:room]
			}
			s.samples = append(s.samples, mono.Samples...)

		case <-ticker.C:
			n := int(s.ticks.Add(1))
			if r.cfg.OnTick != nil {
				r.cfg.OnTick(n)
			}
			if n >= r.cfg.MaxDuration {
				// finalize waits on done, so it cannot run on this goroutine.
				go r.autoStop(s)
				return
			}
		}
	}
}

func (r *Recorder) autoStop(s *session) {
	a, err := r.finalize(s, true)
	if err != nil {
		r.logger.Error("auto-stop failed", "error", err)
		if r.cfg.OnComplete != nil {
			r.cfg.OnComplete(nil, err)
		}
		return
	}
	if a == nil {
		return
	}

	r.logger.Info("recording reached max duration", "seconds", a.DurationSeconds)
	if r.cfg.OnComplete != nil {
		r.cfg.OnComplete(a, nil)
	} else {
		// Nobody will claim it.
		a.Release()
	}
}

// Stop finalizes the active capture and returns its artifact.
// With no active capture it returns (nil, nil).
func (r *Recorder) Stop() (*Artifact, error) {
	r.mu.Lock()
	s := r.active
	r.mu.Unlock()

	if s == nil {
		return nil, nil
	}
	return r.finalize(s, true)
}

// finalize ends s exactly once. The caller that loses the race gets (nil, nil).
func (r *Recorder) finalize(s *session, keep bool) (*Artifact, error) {
	r.mu.Lock()
	if r.active != s {
		r.mu.Unlock()
		return nil, nil
	}
	r.active = nil
	r.mu.Unlock()

	s.cancel()
	<-s.done

	if err := s.src.Stop(); err != nil {
		r.logger.Warn("stop capture device", "error", err)
	}
	if ws, ok := s.src.(audioio.SourceWithStats); ok {
		st := ws.Stats()
		if st.Overruns > 0 {
			r.logger.Warn("capture overruns", "count", st.Overruns)
		}
	}
	if err := s.src.Close(); err != nil {
		r.logger.Warn("close capture device", "error", err)
	}

	if !keep {
		r.logger.Debug("recording discarded")
		return nil, nil
	}

	return r.save(s)
}

func (r *Recorder) save(s *session) (*Artifact, error) {
	if err := os.MkdirAll(r.cfg.Dir, 0o700); err != nil {
		return nil, wrapError("save", err)
	}

	path := filepath.Join(r.cfg.Dir, uuid.NewString()+".wav")
	chunk := audioio.AudioChunk{
		Samples:    s.samples,
		SampleRate: r.cfg.Audio.SampleRate,
		Channels:   1,
	}
	if err := audioio.WriteWAV(path, chunk); err != nil {
		return nil, wrapError("save", err)
	}

	seconds := int(s.ticks.Load())
	if seconds > r.cfg.MaxDuration {
		seconds = r.cfg.MaxDuration
	}

	a := &Artifact{
		Locator:           path,
		DurationSeconds:   seconds,
		MimeType:          MimeTypeWAV,
		SuggestedFilename: SuggestedName(time.Now()),
		owned:             true,
	}

	r.logger.Info("recording saved",
		"path", path,
		"seconds", seconds,
		"samples", len(s.samples),
		"wall", time.Since(s.started).Round(time.Millisecond),
	)
	return a, nil
}

// Play writes the artifact to the speaker and returns when playback ends.
// Cancelling ctx or closing the recorder stops playback early.
func (r *Recorder) Play(ctx context.Context, a *Artifact) error {
	if a == nil {
		return ErrNoArtifact
	}

	r.mu.Lock()
	if err := r.checkIdle(); err != nil {
		r.mu.Unlock()
		return err
	}
	pctx, cancel := context.WithCancel(ctx)
	p := &playback{cancel: cancel, done: make(chan struct{})}
	r.playback = p
	r.mu.Unlock()

	defer func() {
		cancel()
		r.mu.Lock()
		r.playback = nil
		r.mu.Unlock()
		close(p.done)
	}()

	chunk, err := audioio.ReadWAV(a.Locator)
	if err != nil {
		return wrapError("playback", err)
	}

	cfg := r.cfg.Audio
	cfg.SampleRate = chunk.SampleRate
	cfg.Channels = chunk.Channels

	sink, err := r.cfg.NewSink(cfg, r.logger)
	if err != nil {
		return wrapError("playback", err)
	}
	defer sink.Close()

	if err := sink.Start(pctx); err != nil {
		return wrapError("playback", err)
	}

	step := cfg.BufferSize() * cfg.Channels
	if step <= 0 {
		step = len(chunk.Samples)
	}
	for off := 0; off < len(chunk.Samples); off += step {
		end := min(off+step, len(chunk.Samples))
		part := audioio.AudioChunk{
			Samples:    chunk.Samples[off:end],
			SampleRate: chunk.SampleRate,
			Channels:   chunk.Channels,
		}
		if err := sink.Write(pctx, part); err != nil {
			if pctx.Err() != nil {
				return pctx.Err()
			}
			return wrapError("playback", err)
		}
	}

	if err := sink.Flush(pctx); err != nil {
		if pctx.Err() != nil {
			return pctx.Err()
		}
		return wrapError("playback", err)
	}

	r.logger.Debug("playback finished", "seconds", chunk.Duration().Seconds())
	return nil
}

// Close discards any capture in progress, stops playback and rejects
// further use. Safe to call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	s := r.active
	p := r.playback
	r.mu.Unlock()

	if s != nil {
		r.finalize(s, false)
	}
	if p != nil {
		p.cancel()
		<-p.done
	}
	return nil
}
