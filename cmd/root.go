package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "crossmarket-arb",
	Short: "Cross-venue prediction market arbitrage agent",
	Long: `Cross-venue arbitrage agent that consumes detected opportunities
where YES ask on one venue + NO ask on the other sum below one unit
of payout, executes both legs, verifies fills on-chain, and redeems
resolved positions.

The agent places the thin-liquidity leg first with fill-or-kill
orders, unwinds naked legs at a bounded discount ladder, and pauses
itself whenever an unwind classifies the venue failure as systematic.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
