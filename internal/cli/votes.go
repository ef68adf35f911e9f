package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/heritage-dao/heritage/internal/daemon"
	"github.com/heritage-dao/heritage/internal/domain"
	"github.com/heritage-dao/heritage/internal/infra/governance"
)

func init() {
	voteCmd.Flags().StringVar(&voteRationale, "rationale", "", "Reason for the vote (10-1000 characters)")
	voteCmd.Flags().Uint32Var(&voteRelevance, "relevance", 0, "Self-assessed expertise relevance, 0-100")
	changeVoteCmd.Flags().StringVar(&voteRationale, "rationale", "", "Reason for the change")
	for _, c := range []*cobra.Command{voteCmd, changeVoteCmd, votesCmd} {
		addCallerFlag(c)
		rootCmd.AddCommand(c)
	}
}

var (
	voteRationale string
	voteRelevance uint32
)

var voteCmd = &cobra.Command{
	Use:   "vote ID For|Against|Abstain|RequiresMoreEvidence",
	Short: "Cast a vote on an active proposal",
	Args:  cobra.ExactArgs(2),
	RunE:  runVote,
}

var changeVoteCmd = &cobra.Command{
	Use:   "change-vote ID For|Against|Abstain|RequiresMoreEvidence",
	Short: "Change an existing vote while voting is open",
	Args:  cobra.ExactArgs(2),
	RunE:  runChangeVote,
}

var votesCmd = &cobra.Command{
	Use:   "votes ID",
	Short: "List the individual votes on a proposal",
	Args:  cobra.ExactArgs(1),
	RunE:  runVotes,
}

func voteArgs(args []string) (domain.Principal, uint64, domain.VoteType, error) {
	caller, err := requireCaller()
	if err != nil {
		return "", 0, 0, err
	}
	id, err := parseProposalID(args[0])
	if err != nil {
		return "", 0, 0, err
	}
	vt, err := domain.ParseVoteType(args[1])
	if err != nil {
		return "", 0, 0, err
	}
	return caller, id, vt, nil
}

func runVote(cmd *cobra.Command, args []string) error {
	caller, id, vt, err := voteArgs(args)
	if err != nil {
		return err
	}
	req := governance.VoteRequest{ProposalID: id, Type: vt, Rationale: voteRationale}
	if cmd.Flags().Changed("relevance") {
		req.ExpertiseRelevance = &voteRelevance
	}

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	msg, err := d.Engine.VoteOnProposal(cmd.Context(), caller, req)
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}

func runChangeVote(cmd *cobra.Command, args []string) error {
	caller, id, vt, err := voteArgs(args)
	if err != nil {
		return err
	}

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	msg, err := d.Engine.ChangeVote(cmd.Context(), caller, id, vt, voteRationale)
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}

func runVotes(cmd *cobra.Command, args []string) error {
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

	votes, err := d.Engine.VoteDetails(cmd.Context(), caller, id)
	if err != nil {
		return err
	}
	return writeVoteTable(os.Stdout, votes)
}
