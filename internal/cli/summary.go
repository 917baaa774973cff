package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/headline-goat/intent-goat/internal/report"
	"github.com/headline-goat/intent-goat/internal/store"
)

var summaryJSON bool

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the engagement summary of the event log",
	Long: `Show totals and per-block engagement computed from every ingested event.

Example:
  igt summary
  igt summary --json`,
	Args: cobra.NoArgs,
	RunE: runSummary,
}

func init() {
	summaryCmd.Flags().BoolVar(&summaryJSON, "json", false, "print the summary as JSON")
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	return withStore(func(s *store.SQLiteStore) error {
		sum, err := report.Overview(context.Background(), s)
		if err != nil {
			return fmt.Errorf("failed to build summary: %w", err)
		}

		out := cmd.OutOrStdout()
		if summaryJSON {
			encoder := json.NewEncoder(out)
			encoder.SetIndent("", "  ")
			return encoder.Encode(sum)
		}

		if sum.TotalEvents == 0 {
			fmt.Fprintln(out, "No events yet.")
			return nil
		}

		fmt.Fprintf(out, "EVENTS:       %s\n", formatNumber(sum.TotalEvents))
		fmt.Fprintf(out, "BLOCKS:       %d\n", sum.UniqueRegimes)
		fmt.Fprintf(out, "MAX SCROLL:   %.0f%%\n", sum.MaxScrollDepth)
		fmt.Fprintf(out, "CTA CLICKS:   %s\n", formatNumber(sum.TotalCTAClicks))
		fmt.Fprintf(out, "FORM VIEWS:   %s\n", formatNumber(sum.TotalFormViews))
		fmt.Fprintf(out, "FORM SUBMITS: %s\n", formatNumber(sum.TotalFormSubmits))
		fmt.Fprintf(out, "REORDERS:     %s\n", formatNumber(sum.TotalReorders))
		fmt.Fprintf(out, "AVG DWELL:    %.0f ms\n", sum.AvgDwellMsAllRegimes)
		fmt.Fprintf(out, "SESSIONS:     %s\n", formatNumber(len(sum.SessionPaths)))
		fmt.Fprintln(out)

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "BLOCK\tENTERS\tEXITS\tAVG DWELL\tCTA\tSUBMITS\tKPI\tENGAGEMENT")
		for _, b := range sum.Regimes {
			fmt.Fprintf(w, "%s\t%d\t%d\t%.0f ms\t%d\t%d\t%d\t%.3f\n",
				b.RegimeID, b.Enters, b.Exits, b.AvgDwellMs, b.CTAClicks, b.FormSubmits, b.KPIReveals, b.EngagementScore)
		}
		return w.Flush()
	})
}
