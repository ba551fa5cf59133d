package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-voiceauth/internal/config"
	"github.com/teslashibe/go-voiceauth/internal/log"
)

var (
	// Global flags
	cfgFile      string
	envFile      string
	apiURL       string
	logLevel     string
	audioBackend string
	timeout      time.Duration

	// Loaded in PersistentPreRunE.
	globalConfig *config.Config
	logger       *slog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "voiceauth",
	Short: "Voice authentication client",
	Long: `voiceauth - enroll and verify speakers against a voice-biometrics API.

The API issues a challenge phrase, you read it aloud, and the recording is
sent for enrollment or verification.

Configuration is read from defaults, an optional YAML file (--config), an
optional .env file and VOICEAUTH_* environment variables, in increasing
precedence. Flags override all of them.

Examples:
  # Is the API up?
  voiceauth health --api-url http://localhost:8000

  # Enroll interactively
  voiceauth enroll --user alice

  # Verify using an existing recording
  voiceauth verify --user alice --audio take.wav --yes

  # Run the dashboard against a local stub
  voiceauth stub &
  voiceauth serve
`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and runs it.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file (default .env if present)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API base URL (overrides "+config.EnvAPIURL+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&audioBackend, "audio-backend", "", "audio backend: auto, portaudio, mock")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "API request timeout")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(challengeCmd)
	rootCmd.AddCommand(enrollCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stubCmd)
}

// setup loads configuration and initializes logging for every command.
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.Sources{
		File:    cfgFile,
		EnvFile: envFile,
	})
	if err != nil {
		return err
	}

	if apiURL != "" {
		cfg.APIBaseURL = apiURL
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if audioBackend != "" {
		cfg.AudioBackend = audioBackend
	}
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Init(cfg.LogLevel)
	logger = log.L()
	globalConfig = cfg

	logger.Debug("config loaded",
		"api_url", cfg.APIBaseURL,
		"timeout", cfg.Timeout,
		"max_record_seconds", cfg.MaxRecordSeconds,
		"audio_backend", cfg.AudioBackend,
	)
	return nil
}
