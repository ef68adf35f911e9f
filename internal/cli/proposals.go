package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/heritage-dao/heritage/internal/daemon"
	"github.com/heritage-dao/heritage/internal/domain"
	"github.com/heritage-dao/heritage/internal/infra/governance"
)

func init() {
	proposalsListCmd.Flags().StringVar(&listStatus, "status", "", "Only show proposals in this status (e.g. Active, Passed)")
	proposalsCreateCmd.Flags().StringVarP(&createFile, "file", "f", "proposal.yaml", "Path to the proposal YAML file")
	addCallerFlag(proposalsCreateCmd)
	addCallerFlag(proposalsCommentCmd)
	proposalsCommentCmd.Flags().Uint64Var(&commentReplyTo, "reply-to", 0, "Comment id this replies to")

	proposalsCmd.AddCommand(proposalsListCmd, proposalsShowCmd, proposalsCreateCmd, proposalsCommentCmd)
	rootCmd.AddCommand(proposalsCmd)
}

var (
	listStatus     string
	createFile     string
	callerFlag     string
	commentReplyTo uint64
)

var proposalsCmd = &cobra.Command{
	Use:     "proposals",
	Aliases: []string{"proposal", "p"},
	Short:   "Create, list and inspect governance proposals",
}

var proposalsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List proposals, newest first",
	RunE:    runProposalsList,
}

var proposalsShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a proposal with its tally and discussion",
	Args:  cobra.ExactArgs(1),
	RunE:  runProposalsShow,
}

var proposalsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a proposal from a YAML file",
	Long: `Create a proposal from a YAML file.

Example proposal.yaml:
  type: VerifyArtifact
  artifact_id: 1
  title: Verify the Han bronze mirror
  description: >
    Metallurgical analysis and the excavation report both support
    the attribution to the Western Han period.
  evidence: [ipfs://bafy.../xrf.pdf]
  voting_duration_hours: 72
  urgency: Normal`,
	Args: cobra.NoArgs,
	RunE: runProposalsCreate,
}

var proposalsCommentCmd = &cobra.Command{
	Use:   "comment ID TEXT",
	Short: "Add a comment to a proposal's discussion",
	Args:  cobra.ExactArgs(2),
	RunE:  runProposalsComment,
}

// proposalFile is the YAML form of a CreateProposalRequest.
type proposalFile struct {
	Type                domain.ProposalType  `yaml:"type"`
	ArtifactID          *uint64              `yaml:"artifact_id"`
	Title               string               `yaml:"title"`
	Description         string               `yaml:"description"`
	Evidence            []string             `yaml:"evidence"`
	VotingDurationHours uint32               `yaml:"voting_duration_hours"`
	RequiredExpertise   []string             `yaml:"required_expertise"`
	Urgency             *domain.UrgencyLevel `yaml:"urgency"`
	QuorumRequired      *uint32              `yaml:"quorum_required"`
	ExecutionPayload    string               `yaml:"execution_payload"`
}

func (f proposalFile) request() governance.CreateProposalRequest {
	return governance.CreateProposalRequest{
		Type:                f.Type,
		ArtifactID:          f.ArtifactID,
		Title:               f.Title,
		Description:         f.Description,
		Evidence:            f.Evidence,
		VotingDurationHours: f.VotingDurationHours,
		RequiredExpertise:   f.RequiredExpertise,
		Urgency:             f.Urgency,
		QuorumRequired:      f.QuorumRequired,
		ExecutionPayload:    f.ExecutionPayload,
	}
}

func parseProposalFile(data []byte) (governance.CreateProposalRequest, error) {
	var f proposalFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return governance.CreateProposalRequest{}, fmt.Errorf("parse proposal file: %w", err)
	}
	return f.request(), nil
}

func addCallerFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&callerFlag, "as", "", "Principal to act as")
}

func requireCaller() (domain.Principal, error) {
	if callerFlag == "" {
		return "", fmt.Errorf("--as is required")
	}
	return domain.Principal(callerFlag), nil
}

func runProposalsList(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := cmd.Context()
	var ps []*domain.Proposal
	if listStatus != "" {
		status, err := domain.ParseProposalStatus(listStatus)
		if err != nil {
			return err
		}
		ps, err = d.Engine.ProposalsByStatus(ctx, status)
		if err != nil {
			return err
		}
	} else if ps, err = d.Engine.ListProposals(ctx); err != nil {
		return err
	}

	if len(ps) == 0 {
		fmt.Println("No proposals found. Run 'heritage proposals create -f proposal.yaml --as <principal>' to start one.")
		return nil
	}
	return writeProposalTable(os.Stdout, ps)
}

func runProposalsShow(cmd *cobra.Command, args []string) error {
	id, err := parseProposalID(args[0])
	if err != nil {
		return err
	}

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	p, err := d.Engine.GetProposal(cmd.Context(), id)
	if err != nil {
		return err
	}
	writeProposal(os.Stdout, p)
	return nil
}

func runProposalsCreate(cmd *cobra.Command, args []string) error {
	caller, err := requireCaller()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(createFile)
	if err != nil {
		return fmt.Errorf("read proposal file: %w", err)
	}
	req, err := parseProposalFile(data)
	if err != nil {
		return err
	}

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	id, err := d.Engine.CreateProposal(cmd.Context(), caller, req)
	if err != nil {
		return err
	}

	fmt.Printf("Created proposal %d: %s\n", id, req.Title)
	return nil
}

func runProposalsComment(cmd *cobra.Command, args []string) error {
	caller, err := requireCaller()
	if err != nil {
		return err
	}
	id, err := parseProposalID(args[0])
	if err != nil {
		return err
	}
	var replyTo *uint64
	if commentReplyTo > 0 {
		replyTo = &commentReplyTo
	}

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	cid, err := d.Engine.AddComment(cmd.Context(), caller, id, args[1], replyTo)
	if err != nil {
		return err
	}

	fmt.Printf("Added comment %d to proposal %d\n", cid, id)
	return nil
}
