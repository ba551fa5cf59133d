package commands

import (
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-voiceauth/pkg/screens"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the API is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPIClient()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		home := screens.NewHome(api, api.BaseURL(), screens.WithLogger(logger))

		printHint(out, "Checking %s ...", api.BaseURL())
		_, err = home.CheckConnection(cmd.Context())
		printNotice(out, home.Snapshot().Notice, err == nil)
		return err
	},
}

var challengeCmd = &cobra.Command{
	Use:   "challenge",
	Short: "Fetch a challenge phrase",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPIClient()
		if err != nil {
			return err
		}

		res := api.GetChallengePhrase(cmd.Context())
		if !res.Success {
			printFailure(cmd.ErrOrStderr(), "%s", res.Error)
			return res.Err()
		}
		printPhrase(cmd.OutOrStdout(), res.Data.Phrase)
		return nil
	},
}
