// Voice Auth - enroll and verify speakers against a voice-biometrics API.
//
// Usage:
//
//	voiceauth [flags] <command> [args]
//
// Commands:
//
//	health     - check that the API is reachable
//	challenge  - fetch a challenge phrase
//	enroll     - record a phrase and enroll a voiceprint
//	verify     - record a phrase and verify a speaker
//	record     - record a clip to a WAV file
//	serve      - run the local web dashboard
//	stub       - run an in-memory stand-in for the API
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-voiceauth/cmd/voiceauth/commands"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := commands.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
