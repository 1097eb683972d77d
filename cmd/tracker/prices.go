package main

import (
	"errors"
	"fmt"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"portfolio-tracker/internal/quote"
	"portfolio-tracker/internal/report"

	"github.com/spf13/cobra"
)

// priceErrorMessage turns a fetch failure into the line shown to the user.
func priceErrorMessage(err error) string {
	switch {
	case errors.Is(err, quote.ErrMissingCredentials):
		return "Missing API key or ticker"
	case errors.Is(err, quote.ErrInvalidResponse):
		return "Invalid API response"
	default:
		return fmt.Sprintf("API Error: %v", err)
	}
}

func newQuoteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "quote TICKER",
		Short: "Fetch the latest price of a ticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			symbol := strings.ToUpper(strings.TrimSpace(args[0]))
			price, err := a.svc.FetchPrice(cmd.Context(), symbol)
			if err != nil {
				fmt.Fprintln(out, priceErrorMessage(err))
				if a.store != nil {
					if last, lerr := a.store.LatestQuote(symbol); lerr == nil {
						fmt.Fprintf(out, "Last known %s price: %s (%s)\n", symbol,
							report.FormatMoney(last.Price, a.cfg.Portfolio.Currency),
							last.FetchedAt.Local().Format("2006-01-02 15:04"))
					}
				}
				return err
			}
			fmt.Fprintf(out, "%s price: %s\n", symbol, report.FormatMoney(price, a.cfg.Portfolio.Currency))
			return nil
		},
	}
}

func newRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Update the current price of every position from the quote API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if a.svc.Ledger().Len() == 0 {
				fmt.Fprintln(out, "Add stocks first")
				return nil
			}

			result, err := a.svc.RefreshPrices(cmd.Context())
			if err != nil {
				return err
			}
			for _, ticker := range result.Updated {
				fmt.Fprintf(out, "%s price updated!\n", ticker)
			}
			failed := make([]string, 0, len(result.Failed))
			for ticker := range result.Failed {
				failed = append(failed, ticker)
			}
			sort.Strings(failed)
			for _, ticker := range failed {
				fmt.Fprintf(out, "%s not updated: %s\n", ticker, priceErrorMessage(result.Failed[ticker]))
			}
			return nil
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Periodically refresh prices and check the notification threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("interval") {
				interval = time.Duration(a.cfg.Watch.TickInterval) * time.Second
			}

			// Setup context for graceful shutdown
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := a.svc.Watch(ctx, interval); err != nil {
				return err
			}
			a.log.Info("Watch has been shut down.")
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "time between refreshes (default watch.tick_interval seconds)")
	return cmd
}
