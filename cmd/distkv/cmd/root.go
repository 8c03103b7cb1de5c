package cmd

import (
	"github.com/spf13/cobra"
)

const usage = `distkv runs an in-process simulated cluster of peers. Every
peer is simultaneously a membership gossip participant, a consistent-hash
ring member, a client coordinator for CRUD requests, and a replica server
for the keys hashed into its range.

EXAMPLES:
  Start a 10-peer cluster and serve its control plane on :8090:
    distkv run --peers 10 --bind :8090

  Same, but also drop 5% of packets and fail/restart a random peer
  every 30 seconds to watch stabilization converge:
    distkv run --peers 10 --drop-rate 0.05 --fault-interval 30s`

var rootCmd = &cobra.Command{
	Use:   "distkv",
	Short: "a simulated distributed key-value store over a gossip membership overlay",
	Long:  usage,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
