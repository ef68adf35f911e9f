// Package cli implements the heritage command-line interface using Cobra.
// Most subcommands open the local store directly; serve runs the daemon.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "heritage",
	Short: "Heritage artifact governance",
	Long: `heritage runs the DAO governance engine for a heritage artifact registry.
Members propose verification, dispute and curation actions, vote with
reputation-weighted ballots, and execute passed proposals.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
