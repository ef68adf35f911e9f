package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heritage-dao/heritage/internal/daemon"
)

func init() {
	addCallerFlag(executeCmd)
	rootCmd.AddCommand(executeCmd)
}

var executeCmd = &cobra.Command{
	Use:   "execute ID",
	Short: "Execute a passed proposal",
	Long:  `Execute a passed proposal. Only the proposer or a moderator may execute.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runExecute,
}

func runExecute(cmd *cobra.Command, args []string) error {
	caller, err := requireCaller()
	if err != nil {
		return err
	}
	id, err := parseProposalID(args[0])
	if err != nil {
		return err
	}

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	res, err := d.Engine.ExecuteProposal(cmd.Context(), caller, id)
	if err != nil {
		return err
	}
	fmt.Printf("Proposal %d %s: %s\n", res.ProposalID, res.Status, res.Message)
	return nil
}
