package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "hyperdrive-amm",
	Short: "Fixed-rate AMM service",
	Long: `Fixed-rate AMM service built on a YieldSpace bonding curve.

The pool prices principal tokens against a yield-bearing vault so that
traders can lock in a fixed rate by opening longs, or take the variable
side by opening shorts. Positions mature on a daily checkpoint grid and
liquidity providers earn fees on both sides of the book.

The service exposes a REST API for trading and quoting, a websocket
stream of committed operations, and Prometheus metrics.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
