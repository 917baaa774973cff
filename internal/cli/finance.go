package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/headline-goat/intent-goat/internal/finance"
)

var (
	financeRate  float64
	financeGuess float64
)

var financeCmd = &cobra.Command{
	Use:   "finance",
	Short: "Discounted cash-flow helpers",
}

var npvCmd = &cobra.Command{
	Use:   "npv <flows>...",
	Short: "Net present value of a cash-flow series",
	Long: `Discount each flow by (1+rate)^t, with the first flow at t=0.

Example:
  igt finance npv --rate 0.1 -- -100 60 60
  igt finance npv --rate 0.1 -- -100,60,60`,
	Args: cobra.MinimumNArgs(1),
	RunE: runNPV,
}

var irrCmd = &cobra.Command{
	Use:   "irr <flows>...",
	Short: "Internal rate of return of a cash-flow series",
	Long: `Find the rate at which the net present value is zero.
Series without a sign change have no rate.

Example:
  igt finance irr -- -100 60 60`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIRR,
}

func init() {
	npvCmd.Flags().Float64Var(&financeRate, "rate", 0.1, "discount rate per period")
	irrCmd.Flags().Float64Var(&financeGuess, "guess", finance.DefaultGuess, "initial rate guess")
	financeCmd.AddCommand(npvCmd, irrCmd)
	rootCmd.AddCommand(financeCmd)
}

func runNPV(cmd *cobra.Command, args []string) error {
	if err := finance.ValidateRate(financeRate); err != nil {
		return err
	}
	flows, err := finance.ParseCashFlows(args)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "NPV: %.4f\n", finance.PresentValue(financeRate, flows))
	return nil
}

func runIRR(cmd *cobra.Command, args []string) error {
	flows, err := finance.ParseCashFlows(args)
	if err != nil {
		return err
	}
	rate, ok := finance.InternalRate(flows, financeGuess)
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "IRR: none (no rate solves this series)")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "IRR: %s\n", formatPercent(rate))
	return nil
}
