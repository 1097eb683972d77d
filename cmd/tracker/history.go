package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"portfolio-tracker/internal/report"

	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded portfolio valuations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.store == nil {
				return errors.New("history database is not available, set database.dsn")
			}
			out := cmd.OutOrStdout()
			currency := a.cfg.Portfolio.Currency

			snaps, err := a.store.ListSnapshots(limit)
			if err != nil {
				return err
			}
			if len(snaps) == 0 {
				fmt.Fprintln(out, "No history yet")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TAKEN AT\tSOURCE\tPOSITIONS\tVALUE\tPROFIT/LOSS\tEXCEEDED")
			for _, s := range snaps {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%t\n",
					s.TakenAt.Local().Format("2006-01-02 15:04:05"), s.Source, s.Positions,
					report.FormatMoney(s.TotalValue, currency),
					report.FormatMoney(s.TotalProfitLoss, currency),
					s.Exceeded)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			stats, err := a.store.SnapshotStats(time.Now().Add(-since))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nLast %s: %d snapshots, %d over threshold (%.0f%%), best %s, worst %s\n",
				since, stats.Snapshots, stats.Exceeded, stats.ExceededRate*100,
				report.FormatMoney(stats.BestProfitLoss, currency),
				report.FormatMoney(stats.WorstProfitLoss, currency))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of snapshots to show (0 for all)")
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "period covered by the statistics line")
	return cmd
}
