package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/headline-goat/intent-goat/internal/report"
	"github.com/headline-goat/intent-goat/internal/stats"
	"github.com/headline-goat/intent-goat/internal/store"
)

var (
	posteriorsSnapshot bool
	posteriorsSave     bool
)

var posteriorsCmd = &cobra.Command{
	Use:   "posteriors",
	Short: "Show per-block conversion posteriors",
	Long: `Compose the global and per-traffic-source posteriors of every block
from the event log, or show the last scheduled snapshot.

Examples:
  igt posteriors
  igt posteriors --snapshot
  igt posteriors --save`,
	Args: cobra.NoArgs,
	RunE: runPosteriors,
}

func init() {
	posteriorsCmd.Flags().BoolVar(&posteriorsSnapshot, "snapshot", false, "show the latest stored snapshot instead of recomputing")
	posteriorsCmd.Flags().BoolVar(&posteriorsSave, "save", false, "store the recomputed posteriors as a snapshot")
	rootCmd.AddCommand(posteriorsCmd)
}

func runPosteriors(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	return withStore(func(s *store.SQLiteStore) error {
		ctx := context.Background()

		var posteriors map[string]stats.BlockPosteriors
		switch {
		case posteriorsSnapshot:
			snap, err := s.LatestSnapshot(ctx, store.SnapshotPosteriors)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no snapshot yet. Run: igt posteriors --save")
			}
			if err != nil {
				return err
			}
			if err := json.Unmarshal(snap.Payload, &posteriors); err != nil {
				return fmt.Errorf("failed to decode snapshot: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "SNAPSHOT: %s\n\n", snap.CreatedAt.Format("2006-01-02 15:04:05"))
		case posteriorsSave:
			if _, err := report.Snapshot(ctx, s, cfg.Recompute.Kappa); err != nil {
				return err
			}
			snap, err := s.LatestSnapshot(ctx, store.SnapshotPosteriors)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(snap.Payload, &posteriors); err != nil {
				return fmt.Errorf("failed to decode snapshot: %w", err)
			}
		default:
			posteriors, err = report.Posteriors(ctx, s, cfg.Recompute.Kappa)
			if err != nil {
				return fmt.Errorf("failed to compose posteriors: %w", err)
			}
		}

		return printPosteriors(cmd.OutOrStdout(), posteriors)
	})
}

func printPosteriors(out io.Writer, posteriors map[string]stats.BlockPosteriors) error {
	if len(posteriors) == 0 {
		fmt.Fprintln(out, "No block exposures yet.")
		return nil
	}

	blocks := make([]string, 0, len(posteriors))
	for id := range posteriors {
		blocks = append(blocks, id)
	}
	sort.Strings(blocks)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BLOCK\tSOURCE\tEXPOSURES\tSUBMITS\tMEAN\t95% CI")
	for _, id := range blocks {
		bp := posteriors[id]
		printPosteriorRow(w, id, "(all)", bp.Global)

		sources := make([]string, 0, len(bp.Sources))
		for src := range bp.Sources {
			sources = append(sources, src)
		}
		sort.Strings(sources)
		for _, src := range sources {
			printPosteriorRow(w, "", src, bp.Sources[src].Posterior)
		}
	}
	return w.Flush()
}

func printPosteriorRow(w io.Writer, block, source string, p stats.Posterior) {
	fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t[%.1f%%, %.1f%%]\n",
		block, source, p.Exposures, p.Submits, formatPercent(p.Mean), p.Lower*100, p.Upper*100)
}
