package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-voiceauth/pkg/screens"
)

var (
	verifyFlags  flowFlags
	verifyStrict bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a speaker",
	Long: `Verify that a recording matches a user's enrolled voiceprint.

Fetches a challenge phrase, records you reading it and prints the
decision with the similarity score.

Examples:
  voiceauth verify --user alice
  voiceauth verify --user alice --audio take.wav --yes --strict`,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPIClient()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		screen := screens.NewVerification(api, screens.WithLogger(logger))

		printTitle(out, "Voice verification")
		r := &flowRunner{
			flags: verifyFlags,
			form:  screen,
			term:  newTerminal(cmd.InOrStdin(), out),
			out:   out,
			submit: func(ctx context.Context) error {
				if _, err := screen.Submit(ctx); err != nil {
					return err
				}
				view := screen.Snapshot().Result
				printResult(out, view)
				if verifyStrict && view != nil && !view.Authenticated {
					return errNotAuthenticated
				}
				return nil
			},
		}
		return r.run(cmd.Context())
	},
}

// errNotAuthenticated makes --strict exit non-zero on a rejection.
var errNotAuthenticated = fmt.Errorf("speaker not authenticated")

func init() {
	verifyFlags.register(verifyCmd)
	verifyCmd.Flags().BoolVar(&verifyStrict, "strict", false, "exit non-zero when not authenticated")
}
