package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tradecore",
	Short: "An order lifecycle and position accounting engine",
	Long: `Tradecore is an order lifecycle and position accounting engine written in Go.

It provides tools for:
  - Placing market, limit, stop-loss and stop-limit orders
  - Simulated execution against bid/ask quotes with partial fills
  - FIFO lot accounting with realized and unrealized P/L
  - Pre-trade risk checks (position size, concentration, correlation, daily loss)
  - Value-at-Risk estimation (historical, parametric, Monte Carlo)
  - Order, trade and position journaling to SQLite or CSV

Complete documentation is available at https://github.com/quantfold/tradecore`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
