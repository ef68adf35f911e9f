package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/heritage-dao/heritage/internal/domain"
)

const timeLayout = "2006-01-02 15:04"

func parseProposalID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid proposal id %q", s)
	}
	return id, nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// writeProposalTable prints one row per proposal.
func writeProposalTable(w io.Writer, ps []*domain.Proposal) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tVOTES\tFOR\tAGAINST\tDEADLINE\tTITLE")
	for _, p := range ps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			p.ID,
			p.Type,
			p.Status,
			p.Results.TotalVotes,
			p.Results.VotesFor,
			p.Results.VotesAgainst,
			p.VotingDeadline.Local().Format(timeLayout),
			p.Title,
		)
	}
	return tw.Flush()
}

// writeProposal prints a detailed view of one proposal.
func writeProposal(w io.Writer, p *domain.Proposal) {
	fmt.Fprintf(w, "ID:           %d\n", p.ID)
	fmt.Fprintf(w, "Title:        %s\n", p.Title)
	fmt.Fprintf(w, "Type:         %s\n", p.Type)
	fmt.Fprintf(w, "Status:       %s\n", p.Status)
	fmt.Fprintf(w, "Urgency:      %s\n", p.Urgency)
	fmt.Fprintf(w, "Proposer:     %s\n", p.Proposer)
	if p.ArtifactID != nil {
		fmt.Fprintf(w, "Artifact:     %d\n", *p.ArtifactID)
	}
	fmt.Fprintf(w, "Created:      %s\n", p.CreatedAt.Local().Format(timeLayout))
	fmt.Fprintf(w, "Voting ends:  %s", p.VotingDeadline.Local().Format(timeLayout))
	if p.DeadlineExtensions > 0 {
		fmt.Fprintf(w, " (extended %dx)", p.DeadlineExtensions)
	}
	fmt.Fprintln(w)
	if !p.ExecutionDeadline.IsZero() {
		fmt.Fprintf(w, "Execute by:   %s\n", p.ExecutionDeadline.Local().Format(timeLayout))
	}

	r := p.Results
	fmt.Fprintf(w, "Quorum:       %d/%d votes\n", r.TotalVotes, p.QuorumRequired)
	fmt.Fprintf(w, "Weight:       %d for, %d against, %d abstain\n", r.VotesFor, r.VotesAgainst, r.Abstentions)
	fmt.Fprintf(w, "Score:        %.2f\n", r.WeightedScore)
	if ec := r.ExpertConsensus; ec != nil {
		fmt.Fprintf(w, "Experts:      %d for, %d against (confidence %.2f, peer review %.1f)\n",
			ec.ExpertVotesFor, ec.ExpertVotesAgainst, ec.ExpertConfidence, ec.PeerReviewScore)
	}
	if len(p.RequiredExpertise) > 0 {
		fmt.Fprintf(w, "Expertise:    %v\n", p.RequiredExpertise)
	}
	for _, ev := range p.Evidence {
		fmt.Fprintf(w, "Evidence:     %s\n", ev)
	}

	fmt.Fprintf(w, "\n%s\n", p.Description)

	if len(p.Discussion) > 0 {
		fmt.Fprintf(w, "\nDiscussion (%d):\n", len(p.Discussion))
		for _, c := range p.Discussion {
			fmt.Fprintf(w, "  #%d %s (%s): %s\n", c.ID, c.Author, c.Timestamp.Local().Format(timeLayout), c.Content)
		}
	}
}

func writeVoteTable(w io.Writer, votes []*domain.Vote) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "VOTER\tVOTE\tWEIGHT\tRELEVANCE\tCAST\tRATIONALE")
	for _, v := range votes {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			v.Voter,
			v.Type,
			v.Weight,
			v.ExpertiseRelevance,
			v.Timestamp.Local().Format(time.DateTime),
			v.Rationale,
		)
	}
	return tw.Flush()
}
