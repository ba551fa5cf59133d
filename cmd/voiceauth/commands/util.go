package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/teslashibe/go-voiceauth/pkg/audioio"
	"github.com/teslashibe/go-voiceauth/pkg/capture"
	"github.com/teslashibe/go-voiceauth/pkg/voiceapi"
)

// newAPIClient creates the API client from the loaded configuration.
func newAPIClient() (*voiceapi.Client, error) {
	return voiceapi.New(
		voiceapi.WithBaseURL(globalConfig.APIBaseURL),
		voiceapi.WithTimeout(globalConfig.Timeout),
		voiceapi.WithLogger(logger),
	)
}

// audioConfig maps the loaded configuration onto the device layer.
func audioConfig() (audioio.Config, error) {
	backend, err := audioio.ParseBackend(globalConfig.AudioBackend)
	if err != nil {
		return audioio.Config{}, err
	}
	cfg := audioio.DefaultConfig()
	cfg.Backend = backend
	cfg.Device = globalConfig.AudioDevice
	return cfg, nil
}

// recorderOptions are the capture settings shared by every command.
func recorderOptions() ([]capture.Option, error) {
	audio, err := audioConfig()
	if err != nil {
		return nil, err
	}
	return []capture.Option{
		capture.WithAudioConfig(audio),
		capture.WithMaxDuration(globalConfig.MaxRecordSeconds),
		capture.WithDir(globalConfig.RecordingsDir),
		capture.WithLogger(logger),
	}, nil
}

// session is an interactive recording helper bound to a terminal.
type session struct {
	term     *terminal
	out      io.Writer
	recorder *capture.Recorder
	done     chan completion
}

// completion is the outcome of a recording stopped by the duration cap.
type completion struct {
	artifact *capture.Artifact
	err      error
}

// newSession creates a recorder that asks for microphone access on term
// and reports progress to out. A nil perm prompts the user.
func newSession(term *terminal, out io.Writer, perm capture.Permission) (*session, error) {
	opts, err := recorderOptions()
	if err != nil {
		return nil, err
	}
	if perm == nil {
		perm = &permission{term: term}
	}

	s := &session{
		term: term,
		out:  out,
		done: make(chan completion, 1),
	}
	limit := globalConfig.MaxRecordSeconds
	opts = append(opts,
		capture.WithPermission(perm),
		capture.WithOnComplete(func(a *capture.Artifact, err error) {
			s.done <- completion{artifact: a, err: err}
		}),
		capture.WithOnTick(func(elapsed int) {
			fmt.Fprintf(out, "\r● %s / %s ", capture.FormatDuration(elapsed), capture.FormatDuration(limit))
		}),
	)

	rec, err := capture.NewRecorder(opts...)
	if err != nil {
		return nil, err
	}
	s.recorder = rec
	return s, nil
}

// record captures one clip. It stops on Enter or at the duration cap.
func (s *session) record(ctx context.Context) (*capture.Artifact, error) {
	if _, err := s.term.ask(ctx, "Press Enter to start recording..."); err != nil {
		return nil, err
	}
	if err := s.recorder.Start(ctx); err != nil {
		if errors.Is(err, capture.ErrPermissionDenied) {
			return nil, fmt.Errorf("microphone permission is required to record")
		}
		return nil, err
	}
	printHint(s.out, "Recording (max %ds). Press Enter to stop.", s.recorder.MaxDuration())

	// Enter is read on its own goroutine so the duration cap can win.
	stop := make(chan error, 1)
	lctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		_, err := s.term.line(lctx)
		stop <- err
	}()

	var a *capture.Artifact
	select {
	case c := <-s.done:
		fmt.Fprintln(s.out)
		if c.err != nil {
			return nil, s.failed(c.err)
		}
		a = c.artifact

		// The Enter meant to stop belongs to this recording, not the next prompt.
		printHint(s.out, "Reached the %s limit. Press Enter to continue.", capture.FormatDuration(s.recorder.MaxDuration()))
		select {
		case err := <-stop:
			if err != nil && ctx.Err() != nil {
				a.Release()
				return nil, err
			}
		case <-ctx.Done():
			a.Release()
			return nil, ctx.Err()
		}

	case err := <-stop:
		if err != nil && ctx.Err() != nil {
			return nil, err
		}
		fmt.Fprintln(s.out)
		a, err = s.recorder.Stop()
		if err != nil {
			return nil, s.failed(err)
		}
		if a == nil {
			// Lost the race with the duration cap.
			select {
			case c := <-s.done:
				if c.err != nil {
					return nil, s.failed(c.err)
				}
				a = c.artifact
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

	case <-ctx.Done():
		return nil, ctx.Err()
	}

	printSuccess(s.out, "Recorded %s", capture.FormatDuration(a.DurationSeconds))
	return a, nil
}

func (s *session) failed(err error) error {
	logger.Error("recording failed", "error", err)
	printFailure(s.out, "Recording failed: %v", err)
	return err
}

// play plays a back to the user.
func (s *session) play(ctx context.Context, a *capture.Artifact) error {
	printHint(s.out, "Playing back...")
	return s.recorder.Play(ctx, a)
}

func (s *session) Close() error {
	return s.recorder.Close()
}
