package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"stock-alert/internal/cli"
	apperrors "stock-alert/internal/errors"
	"stock-alert/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	// The first signal cancels the running pass; alerts already sent are saved.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.NewLogger()
	app := cli.NewApp(logger)
	defer func() {
		if err := app.Close(); err != nil {
			app.Logger.Error().Err(err).Msg("Failed to close resources")
		}
	}()

	err := app.NewRootCmd().ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	switch {
	case errors.Is(err, apperrors.ErrConfigTemplateCreated):
		fmt.Fprintf(os.Stderr, "%v\n", err)
		fmt.Fprintln(os.Stderr, "Fill in your API key and email settings, then run the command again.")
	case errors.Is(err, apperrors.ErrConfigInvalid):
		app.Logger.Error().Err(err).Msg("Invalid configuration")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return 1
}
