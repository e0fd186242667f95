package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"stock-alert/internal/alert"
	apperrors "stock-alert/internal/errors"
	"stock-alert/internal/logging"
)

func addCheckCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newCheckCmd(app))
	rootCmd.AddCommand(newWatchCmd(app))
}

func newCheckCmd(app *App) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check every stock once and send alerts",
		Long: `Fetch the current price of every stock that has not triggered yet and email
an alert for each target that was reached.

Requests are spaced to respect the provider's rate limit, so a long watchlist
takes a while. Press Ctrl+C to stop; alerts already sent are saved.

With --dry-run alerts are printed instead of emailed and nothing is saved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			engine, err := app.newEngine(output.Writer(), dryRun)
			if err != nil {
				return err
			}

			if app.Watchlist.Len() == 0 {
				if output.IsJSON() {
					return output.JSON(&alert.Report{Entries: []alert.Entry{}})
				}
				output.Info("Your watchlist is empty")
				return nil
			}

			var report *alert.Report
			if dryRun {
				var res *alert.PassResult
				res, err = engine.EvaluateAll(ctx, app.Watchlist.Records())
				report = res.Report
			} else {
				report, err = alert.NewChecker(engine, app.Watchlist, logging.FromContext(ctx)).Check(ctx)
			}

			if report != nil {
				printReport(output, report)
			}
			if errors.Is(err, context.Canceled) && !hasPersistFailure(err) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print alerts instead of sending them and do not save")
	return cmd
}

func newWatchCmd(app *App) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Check the watchlist repeatedly",
		Long: `Run a check, wait for the interval, and repeat until interrupted.

The watchlist is re-read before every pass, so stocks added or reset from
another terminal are picked up.`,
		Example: `  stockalert watch
  stockalert watch --interval 30m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if interval == 0 {
				interval = app.Config.Watch.Interval
			}

			engine, err := app.newEngine(output.Writer(), false)
			if err != nil {
				return err
			}

			if !output.IsJSON() {
				output.Info("Watching %s stocks every %s (Ctrl+C to stop)",
					FormatCount(app.Watchlist.Len()), interval)
			}

			logger := logging.FromContext(cmd.Context())
			checker := alert.NewChecker(engine, app.Watchlist, logger)
			err = checker.Run(cmd.Context(), interval, func(report *alert.Report, err error) {
				if report != nil {
					printReport(output, report)
				}
				if err != nil && !errors.Is(err, context.Canceled) {
					logger.Error().Err(err).Msg("Pass failed")
					if !output.IsJSON() {
						output.Error("Pass failed: %v", err)
					}
				}
				if !output.IsJSON() {
					output.Println()
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "time between passes (default from config)")
	return cmd
}

func printReport(output *Output, report *alert.Report) {
	if output.IsJSON() {
		_ = output.JSON(report)
		return
	}

	for _, e := range report.Entries {
		line := e.String()
		switch e.Outcome {
		case alert.OutcomeAlertSent:
			output.Println(output.Green(line))
		case alert.OutcomeFetchFailed, alert.OutcomeAlertFailed:
			output.Println(output.Red(line))
		case alert.OutcomeSkipped:
			output.Println(output.DimText(line))
		default:
			output.Println(line)
		}
	}

	failed := report.Count(alert.OutcomeFetchFailed) + report.Count(alert.OutcomeAlertFailed)
	summary := FormatCount(len(report.Entries)-report.Count(alert.OutcomeSkipped)) + " checked, " +
		FormatCount(report.Count(alert.OutcomeAlertSent)) + " alerts sent, " +
		FormatCount(failed) + " failed in " + FormatDuration(report.Duration())
	if report.Cancelled {
		summary += " (interrupted)"
	}
	if failed > 0 {
		output.Warning("%s", summary)
	} else {
		output.Bold("%s", summary)
	}
}

func hasPersistFailure(err error) bool {
	var persistErr *apperrors.PersistError
	return errors.As(err, &persistErr)
}
