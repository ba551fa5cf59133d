package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-voiceauth/internal/config"
	"github.com/teslashibe/go-voiceauth/internal/stubapi"
	"github.com/teslashibe/go-voiceauth/pkg/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local web dashboard",
	Long: `Run the web dashboard.

The dashboard exposes the home, enrollment and verification screens as
JSON under /api and pushes every state change over /ws/state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPIClient()
		if err != nil {
			return err
		}
		recOpts, err := recorderOptions()
		if err != nil {
			return err
		}

		addr := globalConfig.DashboardAddr
		if serveAddr != "" {
			addr = serveAddr
		}

		srv, err := web.NewServer(web.Config{
			Addr:            addr,
			API:             api,
			BaseURL:         api.BaseURL(),
			RecorderOptions: recOpts,
			Logger:          logger,
		})
		if err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "Dashboard on http://%s (API %s)", addr, api.BaseURL())
		return srv.ListenAndServe(cmd.Context())
	},
}

var (
	stubAddr    string
	stubLatency time.Duration
)

var stubCmd = &cobra.Command{
	Use:   "stub",
	Short: "Run an in-memory stand-in for the API",
	Long: `Run a development stub of the voice-auth API.

It issues phrases, remembers enrollments for the life of the process and
authenticates enrolled users who read the last issued phrase. It performs
no speaker recognition.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := stubapi.New(stubapi.Config{
			Addr:    stubAddr,
			Latency: stubLatency,
			Logger:  logger,
		})
		printSuccess(cmd.OutOrStdout(), "Stub API on http://%s", stubAddr)
		return srv.ListenAndServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides "+config.EnvDashboardAddr+")")
	stubCmd.Flags().StringVar(&stubAddr, "addr", "127.0.0.1:8000", "listen address")
	stubCmd.Flags().DurationVar(&stubLatency, "latency", 0, "artificial delay per request")
}
