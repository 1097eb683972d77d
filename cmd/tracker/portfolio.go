package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"portfolio-tracker/internal/ledger"
	"portfolio-tracker/internal/report"
	"portfolio-tracker/internal/tracker"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newAddCmd(a *app) *cobra.Command {
	var fetch bool

	cmd := &cobra.Command{
		Use:   "add TICKER BUY_PRICE [CURRENT_PRICE] QUANTITY",
		Short: "Add a stock position and save the portfolio",
		Long: `Add a stock position. With --fetch the current price is taken from the
quote API; CURRENT_PRICE may then be omitted and is used only if the fetch fails.`,
		Args: cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			ticker, buy := args[0], args[1]
			var current, qty string
			if len(args) == 4 {
				current, qty = args[2], args[3]
			} else {
				if !fetch {
					return fmt.Errorf("CURRENT_PRICE is required unless --fetch is set")
				}
				qty = args[2]
			}

			if fetch {
				price, err := a.svc.FetchPrice(cmd.Context(), ticker)
				if err != nil {
					fmt.Fprintln(out, priceErrorMessage(err))
					if current == "" {
						return err
					}
				} else {
					current = price.String()
					fmt.Fprintf(out, "%s price updated!\n", strings.ToUpper(strings.TrimSpace(ticker)))
				}
			}

			if _, err := a.svc.AddPosition(ticker, buy, current, qty); err != nil {
				if errors.Is(err, ledger.ErrInvalidInput) {
					fmt.Fprintln(out, "Enter a valid input please")
				}
				return err
			}
			fmt.Fprintln(out, "Stock added successfully")
			return nil
		},
	}

	cmd.Flags().BoolVar(&fetch, "fetch", false, "fetch the current price from the quote API")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the positions in the portfolio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			positions := a.svc.Ledger().Positions()
			if len(positions) == 0 {
				fmt.Fprintln(out, "No saved portfolio found.")
				return nil
			}

			currency := a.cfg.Portfolio.Currency
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "#\tTICKER\tBUY\tCURRENT\tQTY\tVALUE\t")
			for i, p := range positions {
				if p.Malformed() {
					fmt.Fprintf(w, "%d\t%s\tinvalid\t\t\t\t\n", i+1, p.Ticker)
					continue
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\t\n", i+1, p.Ticker,
					report.FormatMoney(p.BuyPrice, currency),
					report.FormatMoney(p.CurrentPrice, currency),
					p.Quantity,
					report.FormatMoney(p.Value(), currency))
			}
			return w.Flush()
		},
	}
}

func newOverviewCmd(a *app) *cobra.Command {
	var pretty bool

	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Calculate profit/loss for every position and the whole portfolio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			rep, n, err := a.svc.Overview()
			if errors.Is(err, tracker.ErrEmptyPortfolio) {
				fmt.Fprintln(out, "Add stocks first and retry")
				return nil
			}
			if err != nil {
				return err
			}

			if pretty {
				rendered, err := report.Terminal(rep, 0)
				if err != nil {
					return err
				}
				fmt.Fprint(out, rendered)
			} else {
				fmt.Fprintln(out, report.Overview(rep))
				fmt.Fprintf(out, "Result: %s\n", rep.Tone())
			}

			fmt.Fprintln(out, n.Message)
			return nil
		},
	}

	cmd.Flags().BoolVar(&pretty, "pretty", false, "render the overview as styled Markdown")
	return cmd
}

func newCheckCmd(a *app) *cobra.Command {
	var thresholdText string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether the total profit/loss exceeds the notification threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			threshold := a.svc.DefaultThreshold()
			if cmd.Flags().Changed("threshold") {
				t, err := decimal.NewFromString(strings.TrimSpace(thresholdText))
				if err != nil {
					fmt.Fprintln(out, "Enter a number you want to set as your threshold number")
					return fmt.Errorf("invalid threshold %q", thresholdText)
				}
				threshold = t
			}

			n, err := a.svc.CheckNotifications(threshold)
			if errors.Is(err, tracker.ErrEmptyPortfolio) {
				fmt.Fprintln(out, "Add stocks first")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(out, n.Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&thresholdText, "threshold", "", "absolute profit/loss that triggers a notification (default portfolio.threshold)")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var output, formatName string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a portfolio report as text, Markdown or HTML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if output == "" {
				output = a.cfg.Report.File
			}
			format, err := exportFormat(formatName, output, a.cfg.Report.Format)
			if err != nil {
				return err
			}

			if _, err := a.svc.Export(output, format); err != nil {
				if errors.Is(err, tracker.ErrEmptyPortfolio) {
					fmt.Fprintln(out, "Add stocks first before exporting")
					return nil
				}
				return err
			}
			fmt.Fprintf(out, "Portfolio exported as %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "report file (default report.file)")
	cmd.Flags().StringVar(&formatName, "format", "", "text, markdown or html (default: from the file extension, then report.format)")
	return cmd
}

// exportFormat picks the explicit format, then the output extension, then
// the configured default.
func exportFormat(explicit, output, fallback string) (report.Format, error) {
	if explicit != "" {
		return report.ParseFormat(explicit)
	}
	if ext := filepath.Ext(output); ext != "" {
		if f, err := report.ParseFormat(ext); err == nil {
			return f, nil
		}
	}
	return report.ParseFormat(fallback)
}

func newCompoundCmd(a *app) *cobra.Command {
	var amount, rate, years, frequency string

	cmd := &cobra.Command{
		Use:   "compound",
		Short: "Compound interest calculator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var values [4]decimal.Decimal
			for i, text := range []string{amount, rate, years, frequency} {
				v, err := decimal.NewFromString(strings.TrimSpace(text))
				if err != nil {
					fmt.Fprintln(out, "Please enter values for each section")
					return fmt.Errorf("invalid number %q", text)
				}
				values[i] = v
			}

			res, err := tracker.CompoundInterest(values[0], values[1], values[2], values[3])
			if err != nil {
				return err
			}
			currency := a.cfg.Portfolio.Currency
			fmt.Fprintf(out, "Total Amount: %s\nInterest Earned: %s\n",
				report.FormatMoney(res.Total, currency), report.FormatMoney(res.Interest, currency))
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "starting amount")
	cmd.Flags().StringVar(&rate, "rate", "", "annual interest rate in percent")
	cmd.Flags().StringVar(&years, "years", "", "number of years")
	cmd.Flags().StringVar(&frequency, "frequency", "1", "number of times compounded per year")
	return cmd
}
