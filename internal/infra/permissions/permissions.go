// Package permissions derives governance capabilities from the user directory.
//
// A Resolver never fails: an unregistered principal simply has no
// capabilities and a voting weight of 1.
package permissions

import (
	"context"
	"strings"

	"github.com/heritage-dao/heritage/internal/domain"
)

// Capabilities is the resolved permission set for one principal, computed
// once per engine call.
type Capabilities struct {
	Principal           domain.Principal
	Registered          bool
	CanVote             bool
	CanCreateProposals  bool
	CanModerate         bool
	ExpertOrInstitution bool
	VotingWeight        uint32
	Specializations     []string
}

// HasRequiredExpertise reports whether any specialization overlaps any
// required tag. Matching is case-insensitive substring in either direction.
// An empty requirement list always matches.
func (c Capabilities) HasRequiredExpertise(required []string) bool {
	if len(required) == 0 {
		return true
	}
	for _, spec := range c.Specializations {
		s := strings.ToLower(spec)
		for _, req := range required {
			r := strings.ToLower(req)
			if strings.Contains(s, r) || strings.Contains(r, s) {
				return true
			}
		}
	}
	return false
}

// Resolver reads users from a directory and turns them into Capabilities.
type Resolver struct {
	users domain.UserDirectory
}

// NewResolver creates a resolver over the given directory.
func NewResolver(users domain.UserDirectory) *Resolver {
	return &Resolver{users: users}
}

// Resolve computes the capabilities of p.
func (r *Resolver) Resolve(ctx context.Context, p domain.Principal) Capabilities {
	u, ok := r.users.Lookup(ctx, p)
	if !ok {
		return Capabilities{Principal: p, VotingWeight: 1}
	}
	weight := u.Permissions.VotingWeight
	if weight == 0 {
		weight = 1
	}
	return Capabilities{
		Principal:           p,
		Registered:          true,
		CanVote:             u.Permissions.CanVote && votingVerified(u.VerificationLevel),
		CanCreateProposals:  u.Permissions.CanCreateProposals && proposingRole(u.Role),
		CanModerate:         u.Permissions.CanModerate && u.Role == domain.RoleModerator,
		ExpertOrInstitution: u.Role == domain.RoleExpert || u.Role == domain.RoleInstitution,
		VotingWeight:        weight,
		Specializations:     u.Specializations,
	}
}

// CanVote reports whether p may vote.
func (r *Resolver) CanVote(ctx context.Context, p domain.Principal) bool {
	return r.Resolve(ctx, p).CanVote
}

// CanCreateProposals reports whether p may submit proposals.
func (r *Resolver) CanCreateProposals(ctx context.Context, p domain.Principal) bool {
	return r.Resolve(ctx, p).CanCreateProposals
}

// CanModerate reports whether p is an acting moderator.
func (r *Resolver) CanModerate(ctx context.Context, p domain.Principal) bool {
	return r.Resolve(ctx, p).CanModerate
}

// VotingWeight returns p's weight, never less than 1.
func (r *Resolver) VotingWeight(ctx context.Context, p domain.Principal) uint32 {
	return r.Resolve(ctx, p).VotingWeight
}

// HasRequiredExpertise reports whether p's specializations cover required.
func (r *Resolver) HasRequiredExpertise(ctx context.Context, p domain.Principal, required []string) bool {
	return r.Resolve(ctx, p).HasRequiredExpertise(required)
}

func votingVerified(l domain.UserVerificationLevel) bool {
	switch l {
	case domain.UserPeerVerified, domain.UserFullyVerified, domain.UserInstitutionVerified:
		return true
	default:
		return false
	}
}

func proposingRole(r domain.UserRole) bool {
	switch r {
	case domain.RoleExpert, domain.RoleModerator, domain.RoleInstitution, domain.RoleCurator:
		return true
	default:
		return false
	}
}
