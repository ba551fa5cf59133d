package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-voiceauth/pkg/capture"
	"github.com/teslashibe/go-voiceauth/pkg/screens"
)

// flowFlags are shared by enroll and verify.
type flowFlags struct {
	user     string
	audio    string
	yes      bool
	playback bool
}

func (f *flowFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.user, "user", "u", "", "user ID (prompted when empty)")
	cmd.Flags().StringVarP(&f.audio, "audio", "a", "", "submit this WAV file instead of recording")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "do not ask for confirmation")
	cmd.Flags().BoolVar(&f.playback, "playback", false, "play the recording back before submitting")
}

// form is the screen surface a terminal flow drives.
type form interface {
	SetUserID(id string)
	FetchPhrase(ctx context.Context) (string, error)
	AttachRecording(a *capture.Artifact) error
	Close() error
}

// flowRunner walks a screen through user id, phrase, recording and
// submission on the terminal.
type flowRunner struct {
	flags  flowFlags
	form   form
	submit func(ctx context.Context) error
	term   *terminal
	out    io.Writer
	rec    *session
}

func (r *flowRunner) run(ctx context.Context) error {
	defer r.form.Close()

	user := strings.TrimSpace(r.flags.user)
	if user == "" {
		var err error
		if user, err = r.term.ask(ctx, "User ID: "); err != nil {
			return err
		}
	}
	r.form.SetUserID(user)

	phrase, err := r.form.FetchPhrase(ctx)
	if err != nil {
		printFailure(r.out, "%s", screens.Prompt(err))
		return err
	}
	printPhrase(r.out, phrase)

	if r.flags.audio == "" {
		perm := capture.Permission(nil)
		if r.flags.yes {
			perm = capture.Granted
		}
		if r.rec, err = newSession(r.term, r.out, perm); err != nil {
			return err
		}
		defer r.rec.Close()
	}

	for {
		err := r.attempt(ctx)
		if errors.Is(err, errDeclined) {
			return nil
		}
		if err == nil || r.flags.yes || r.flags.audio != "" {
			return err
		}

		var verr *screens.ValidationError
		if errors.As(err, &verr) {
			return err
		}
		again, cerr := r.term.confirm(ctx, "Record again with the same phrase?", true)
		if cerr != nil || !again {
			return err
		}
	}
}

// errDeclined ends the flow without an error exit.
var errDeclined = errors.New("submission declined")

// attempt records (or loads) a clip and submits it once.
func (r *flowRunner) attempt(ctx context.Context) error {
	a, err := r.clip(ctx)
	if err != nil {
		return err
	}
	if err := r.form.AttachRecording(a); err != nil {
		a.Release()
		return err
	}

	if !r.flags.yes {
		ok, err := r.term.confirm(ctx, "Submit this recording?", true)
		if err != nil {
			return err
		}
		if !ok {
			printHint(r.out, "Not submitted.")
			return errDeclined
		}
	}

	printHint(r.out, "Submitting...")
	if err := r.submit(ctx); err != nil {
		printFailure(r.out, "%s", screens.Prompt(err))
		return err
	}
	return nil
}

func (r *flowRunner) clip(ctx context.Context) (*capture.Artifact, error) {
	if r.flags.audio != "" {
		a, err := capture.FromFile(r.flags.audio)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", r.flags.audio, err)
		}
		printHint(r.out, "Using %s (%s)", r.flags.audio, capture.FormatDuration(a.DurationSeconds))
		return a, nil
	}

	a, err := r.rec.record(ctx)
	if err != nil {
		return nil, err
	}

	play := r.flags.playback
	if !play && !r.flags.yes {
		if play, err = r.term.confirm(ctx, "Play it back?", false); err != nil {
			a.Release()
			return nil, err
		}
	}
	if play {
		if err := r.rec.play(ctx, a); err != nil {
			logger.Warn("playback failed", "error", err)
			printFailure(r.out, "Playback failed: %v", err)
		}
	}
	return a, nil
}
