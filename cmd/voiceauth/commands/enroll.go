package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-voiceauth/pkg/screens"
)

var enrollFlags flowFlags

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll a voiceprint",
	Long: `Enroll a user's voice.

Fetches a challenge phrase, records you reading it and submits the
recording as the user's voiceprint.

Examples:
  voiceauth enroll --user alice
  voiceauth enroll --user alice --audio take.wav --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPIClient()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		screen := screens.NewEnrollment(api, screens.WithLogger(logger))

		printTitle(out, "Voice enrollment")
		r := &flowRunner{
			flags: enrollFlags,
			form:  screen,
			term:  newTerminal(cmd.InOrStdin(), out),
			out:   out,
			submit: func(ctx context.Context) error {
				if _, err := screen.Submit(ctx); err != nil {
					return err
				}
				printNotice(out, screen.Snapshot().Notice, true)
				return nil
			},
		}
		return r.run(cmd.Context())
	},
}

func init() {
	enrollFlags.register(enrollCmd)
}
