package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"dubline/internal/services"
)

// Exit statuses let scripts tell a bad request from a workflow that is not
// ready and from a service that failed.
const (
	exitFailure      = 1
	exitUsage        = 2
	exitPrecondition = 3
	exitNotFound     = 4
	exitService      = 5
	exitInterrupted  = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	if !errors.Is(err, context.Canceled) {
		printError(os.Stderr, err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrConfiguration),
		errors.Is(err, services.ErrUnsupportedFormat),
		errors.Is(err, services.ErrIngest):
		return exitUsage
	case errors.Is(err, services.ErrPrecondition):
		return exitPrecondition
	case errors.Is(err, services.ErrNotFound):
		return exitNotFound
	case services.Kind(err) != "":
		return exitService
	default:
		return exitFailure
	}
}
