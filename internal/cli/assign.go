package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/headline-goat/intent-goat/internal/experiment"
	"github.com/headline-goat/intent-goat/internal/intent"
	"github.com/headline-goat/intent-goat/internal/ranking"
	"github.com/headline-goat/intent-goat/internal/store"
)

var assignCmd = &cobra.Command{
	Use:   "assign <session>...",
	Short: "Show the experiment arm of sessions",
	Long: `Show the arm and initial block order each session id is assigned.

A stored experiment override (local state) is applied on top of the config.

Example:
  igt assign visitor-1 visitor-2`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAssign,
}

func init() {
	rootCmd.AddCommand(assignCmd)
}

func runAssign(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	return withStore(func(s *store.SQLiteStore) error {
		exp := cfg.Experiment
		var override experiment.Override
		ok, err := store.NewLocalState(s, nil).Load(context.Background(), experiment.OverrideKey, &override)
		if err != nil {
			return fmt.Errorf("failed to load experiment override: %w", err)
		}
		if ok {
			exp = exp.Merge(override)
		}

		fallback := cfg.Sequences.For(intent.StateLow)
		if len(fallback) == 0 {
			fallback = ranking.DefaultSequences.For(intent.StateLow)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tBUCKET\tVARIANT\tORDER")
		for _, id := range args {
			v := exp.VariantFor(id)
			fmt.Fprintf(w, "%s\t%.6f\t%s\t%s\n", id, experiment.HashUnit(id), v, strings.Join(exp.OrderFor(v, fallback), ","))
		}
		return w.Flush()
	})
}
