package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/plsd/internal/shared"
)

// exitAlreadyRunning is the status of a daemon that found the service name taken.
const exitAlreadyRunning = 2

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})
	app := newApp(runner)

	if err := app.Run(context.Background(), os.Args); err != nil {
		switch {
		case errors.Is(err, shared.ErrAlreadyRunning):
			logger.Error(err.Error())
			os.Exit(exitAlreadyRunning)
		case errors.Is(err, shared.ErrNotImplemented):
			logger.Warn(err.Error())
			os.Exit(1)
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}
