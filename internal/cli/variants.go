package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/headline-goat/intent-goat/internal/report"
	"github.com/headline-goat/intent-goat/internal/store"
)

var variantsExperiment string

var variantsCmd = &cobra.Command{
	Use:   "variants",
	Short: "Compare experiment arms",
	Long: `Show exposures, CTA and submit rates per arm, with the submit-rate
confidence of each arm against the control (A).

Example:
  igt variants
  igt variants --experiment home_narrative_v1`,
	Args: cobra.NoArgs,
	RunE: runVariants,
}

func init() {
	variantsCmd.Flags().StringVar(&variantsExperiment, "experiment", "", "experiment id (defaults to the configured experiment)")
	rootCmd.AddCommand(variantsCmd)
}

func runVariants(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	id := variantsExperiment
	if id == "" {
		id = cfg.Experiment.ID
	}

	return withStore(func(s *store.SQLiteStore) error {
		v, err := report.CompareVariants(context.Background(), s, id)
		if err != nil {
			return fmt.Errorf("failed to compare variants: %w", err)
		}
		printVariants(cmd.OutOrStdout(), v)
		return nil
	})
}

func printVariants(out io.Writer, v report.Variants) {
	fmt.Fprintf(out, "EXPERIMENT: %s\n", v.ExperimentID)
	fmt.Fprintln(out)

	if len(v.Arms) == 0 {
		fmt.Fprintln(out, "No exposures yet.")
		return
	}

	leading := 0
	for i, c := range v.Comparisons {
		if c.Rate > v.Comparisons[leading].Rate {
			leading = i
		}
	}

	fmt.Fprintln(out, "VARIANT  EXPOSURES  SESSIONS  CTA RATE  SUBMIT RATE  95% CI            DWELL/SESSION")
	fmt.Fprintln(out, strings.Repeat("─", 88))
	for i, a := range v.Arms {
		c := v.Comparisons[i]
		indicator := ""
		if i == leading && len(v.Arms) > 1 {
			indicator = " ← LEADING"
		}

		ciStr := fmt.Sprintf("[%.1f%%, %.1f%%]", c.CILower*100, c.CIUpper*100)
		if a.Exposures == 0 {
			ciStr = "N/A"
		}

		fmt.Fprintf(out, "%-7s  %-9s  %-8s  %-8s  %-11s  %-16s  %.1fs%s\n",
			a.Variant,
			formatNumber(a.Exposures),
			formatNumber(a.Sessions),
			formatPercent(a.CTARate),
			formatPercent(a.SubmitRate),
			ciStr,
			a.AvgDwellSecPerSession,
			indicator,
		)
	}
	fmt.Fprintln(out)

	if len(v.Arms) > 1 && leading > 0 {
		c := v.Comparisons[leading]
		confPct := c.Confidence * 100
		switch {
		case c.Confident:
			fmt.Fprintf(out, "Statistical significance: %.1f%% confident %q beats %q\n", confPct, c.Variant, v.Comparisons[0].Variant)
		case confPct >= 90:
			fmt.Fprintf(out, "Statistical significance: %.1f%% confident %q beats control (not yet significant)\n", confPct, c.Variant)
		default:
			fmt.Fprintln(out, "Statistical significance: Not enough data to determine a winner")
		}
	} else if len(v.Arms) > 1 {
		fmt.Fprintln(out, "Statistical significance: control is leading")
	}
}
