package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/heritage-dao/heritage/internal/daemon"
)

func init() {
	rootCmd.AddCommand(statsCmd, sweepCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show governance statistics",
	RunE:  runStats,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Finalize proposals whose voting or execution deadline has passed",
	RunE:  runSweep,
}

func runStats(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	s, err := d.Engine.Stats(cmd.Context())
	if err != nil {
		return err
	}

	w := newTable(os.Stdout)
	fmt.Fprintf(w, "Total proposals:\t%d\n", s.TotalProposals)
	fmt.Fprintf(w, "Active:\t%d\n", s.ActiveProposals)
	fmt.Fprintf(w, "Passed:\t%d\n", s.PassedProposals)
	fmt.Fprintf(w, "Rejected:\t%d\n", s.RejectedProposals)
	fmt.Fprintf(w, "Expired:\t%d\n", s.ExpiredProposals)
	fmt.Fprintf(w, "Executed:\t%d\n", s.ExecutedProposals)
	fmt.Fprintf(w, "Failed executions:\t%d\n", s.FailedExecutions)
	fmt.Fprintf(w, "Votes cast:\t%d\n", s.TotalVotesCast)
	return w.Flush()
}

func runSweep(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	changed, err := d.Engine.ResolveExpired(cmd.Context())
	if err != nil {
		return err
	}
	if len(changed) == 0 {
		fmt.Println("Nothing to resolve.")
		return nil
	}
	for _, p := range changed {
		fmt.Printf("Proposal %d -> %s\n", p.ID, p.Status)
	}
	return nil
}
