package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gpu-renter",
	Short: "Budget-bounded agent that rents GPU compute from paid vendors",
	Long: `gpu-renter runs a tick-driven agent that picks a GPU vendor, pays for a
fine-tuning job through the x402 payment challenge and tracks it to completion
without ever spending beyond the run's budget.

Configuration is read from the environment (DATABASE_URL, GPU_VENDOR_SECRET,
PLANNER_MODE, REDIS_ADDR, ...). Running without a subcommand starts the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}
