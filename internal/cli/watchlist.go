package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	apperrors "stock-alert/internal/errors"
	"stock-alert/internal/models"
)

// recordView is the JSON form of a watch record.
type recordView struct {
	Symbol    string  `json:"symbol"`
	Target    float64 `json:"target"`
	Direction string  `json:"direction"`
	Status    string  `json:"status"`
	Alerted   bool    `json:"alerted"`
	Added     string  `json:"added"`
}

func newRecordView(r models.WatchRecord) recordView {
	return recordView{
		Symbol:    r.Symbol,
		Target:    r.Target,
		Direction: r.Direction.String(),
		Status:    r.Status(),
		Alerted:   r.Alerted,
		Added:     FormatDate(r.AddedOn),
	}
}

func addWatchlistCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newAddCmd(app))
	rootCmd.AddCommand(newRemoveCmd(app))
	rootCmd.AddCommand(newListCmd(app))
	rootCmd.AddCommand(newResetCmd(app))
}

func newAddCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "add SYMBOL TARGET above|below",
		Short: "Add a stock to the watchlist",
		Long: `Add a stock to the watchlist with a target price.

"above" alerts when the price is at or above the target, "below" when it is
at or below the target.`,
		Example: `  stockalert add AAPL 200 above
  stockalert add msft 350.50 below`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			target, err := parseTarget(args[1])
			if err != nil {
				return err
			}

			rec, err := app.Watchlist.Add(cmd.Context(), args[0], target, args[2])
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(newRecordView(rec))
			}
			output.Success("✓ Added %s: alert when %s %s", rec.Symbol, rec.Direction, FormatMoney(rec.Target))
			return nil
		},
	}
}

func parseTarget(s string) (float64, error) {
	target, err := strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(s), "$"), 64)
	if err != nil {
		return 0, apperrors.NewValidationError("target", s, "target must be a number", apperrors.ErrInvalidTarget)
	}
	if err := models.ValidateTarget(target); err != nil {
		return 0, err
	}
	return target, nil
}

func newRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "remove SYMBOL",
		Aliases: []string{"rm"},
		Short:   "Remove a stock from the watchlist",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if err := app.Watchlist.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}

			sym := strings.ToUpper(strings.TrimSpace(args[0]))
			if output.IsJSON() {
				return output.JSON(map[string]string{"removed": sym})
			}
			output.Success("✓ Removed %s", sym)
			return nil
		},
	}
}

func newListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show the watchlist",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			records := app.Watchlist.Records()

			if output.IsJSON() {
				views := make([]recordView, 0, len(records))
				for _, r := range records {
					views = append(views, newRecordView(r))
				}
				return output.JSON(views)
			}

			if len(records) == 0 {
				output.Info("Your watchlist is empty")
				output.Dim("Add a stock with: stockalert add SYMBOL TARGET above|below")
				return nil
			}

			table := NewTable(output, "Symbol", "Target", "Direction", "Status", "Added")
			for _, r := range records {
				status := output.Green(r.Status())
				if r.Alerted {
					status = output.Yellow(r.Status())
				}
				table.AddRow(r.Symbol, FormatMoney(r.Target), r.Direction.String(), status, FormatDate(r.AddedOn))
			}
			table.Render()
			output.Println()
			output.Printf("Total: %s stocks\n", FormatCount(len(records)))
			return nil
		},
	}
}

func newResetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear triggered alerts so every stock is checked again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			n, err := app.Watchlist.ResetAlerts(cmd.Context())
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]int{"reset": n})
			}
			output.Success("✓ Reset %s", pluralAlerts(n))
			return nil
		},
	}
}

func pluralAlerts(n int) string {
	if n == 1 {
		return "1 alert"
	}
	return fmt.Sprintf("%d alerts", n)
}
