package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-voiceauth/pkg/capture"
)

var (
	recordOutput string
	recordYes    bool
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a clip to a WAV file",
	Long: `Record a clip from the microphone and save it as 16 kHz mono WAV.

The clip can later be submitted with --audio.

Examples:
  voiceauth record -o take.wav`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		term := newTerminal(cmd.InOrStdin(), out)

		var perm capture.Permission
		if recordYes {
			perm = capture.Granted
		}
		s, err := newSession(term, out, perm)
		if err != nil {
			return err
		}
		defer s.Close()

		a, err := s.record(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Release()

		dest := recordOutput
		if dest == "" {
			dest = capture.SuggestedName(time.Now())
		}
		if err := copyArtifact(a, dest); err != nil {
			return err
		}
		printSuccess(out, "Saved %s", dest)
		return nil
	},
}

func copyArtifact(a *capture.Artifact, dest string) error {
	src, err := a.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return f.Close()
}

func init() {
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", "", "output file (default recording_<ms>.wav)")
	recordCmd.Flags().BoolVarP(&recordYes, "yes", "y", false, "do not ask for microphone permission")
}
