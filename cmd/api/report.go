package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"dinidesk_backend/internal/reporting"
)

func newReportCmd(c *cli) *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Print or export business reports",
	}

	var start, end, granularity, xlsxPath string
	revenue := &cobra.Command{
		Use:   "revenue",
		Short: "Revenue per period from sales and subscriptions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, to, err := parseRange(start, end)
			if err != nil {
				return err
			}
			g, err := reporting.ParseGranularity(granularity)
			if err != nil {
				return err
			}

			a, err := wire(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if xlsxPath != "" {
				f, err := os.Create(xlsxPath)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := a.deps.Reports.ExportXLSX(cmd.Context(), f, from, to, g); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "report written to %s\n", xlsxPath)
				return nil
			}

			rows, err := a.deps.Reports.RevenueByPeriod(cmd.Context(), from, to, g)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "PERIOD\tSALES\tSUBSCRIPTIONS\tTOTAL\t")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", r.Period, r.Sales.StringFixed(2), r.Subscriptions.StringFixed(2), r.Total.StringFixed(2))
			}
			return w.Flush()
		},
	}
	revenue.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD (default 30 days ago)")
	revenue.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD (default today)")
	revenue.Flags().StringVar(&granularity, "granularity", "daily", "daily, weekly or monthly")
	revenue.Flags().StringVar(&xlsxPath, "xlsx", "", "write a full workbook to this path instead of printing")

	reportCmd.AddCommand(revenue)
	return reportCmd
}

// parseRange reads an inclusive day range, defaulting to the last 30 days.
func parseRange(start, end string) (time.Time, time.Time, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	to := today
	if end != "" {
		t, err := time.Parse(time.DateOnly, end)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --end: %w", err)
		}
		to = t
	}
	from := to.AddDate(0, 0, -30)
	if start != "" {
		t, err := time.Parse(time.DateOnly, start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --start: %w", err)
		}
		from = t
	}
	return from, to, nil
}
