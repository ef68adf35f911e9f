package domain

import (
	"fmt"
	"strings"
)

// ─── Enum Helpers ───────────────────────────────────────────────────────────
// Every governance enum is int-backed and travels as its name in JSON, TOML,
// YAML and CBOR via encoding.TextMarshaler.

func enumName(names []string, v int) string {
	if v < 0 || v >= len(names) {
		return "Unknown"
	}
	return names[v]
}

func enumParse(kind string, names []string, s string) (int, error) {
	for i, n := range names {
		if strings.EqualFold(n, s) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown %s %q", ErrValidation, kind, s)
}

// ─── Proposal Type ──────────────────────────────────────────────────────────

// ProposalType is the closed set of actions a proposal can request.
type ProposalType int

const (
	VerifyArtifact ProposalType = iota
	DisputeArtifact
	UpdateArtifactStatus
	GrantUserRole
	RevokeUserRole
	UpdateArtifactMetadata
	RequestAdditionalEvidence
	ProposeConservationAction
	RequestExpertReview
	UpdateVerificationCriteria
	EmergencyIntervention
)

var proposalTypeNames = []string{
	"VerifyArtifact",
	"DisputeArtifact",
	"UpdateArtifactStatus",
	"GrantUserRole",
	"RevokeUserRole",
	"UpdateArtifactMetadata",
	"RequestAdditionalEvidence",
	"ProposeConservationAction",
	"RequestExpertReview",
	"UpdateVerificationCriteria",
	"EmergencyIntervention",
}

// AllProposalTypes lists every proposal type in declaration order.
func AllProposalTypes() []ProposalType {
	out := make([]ProposalType, len(proposalTypeNames))
	for i := range out {
		out[i] = ProposalType(i)
	}
	return out
}

func (t ProposalType) String() string { return enumName(proposalTypeNames, int(t)) }

func (t ProposalType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *ProposalType) UnmarshalText(b []byte) error {
	v, err := ParseProposalType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseProposalType converts a name such as "VerifyArtifact" to its value.
func ParseProposalType(s string) (ProposalType, error) {
	v, err := enumParse("proposal type", proposalTypeNames, s)
	return ProposalType(v), err
}

// ─── Proposal Status ────────────────────────────────────────────────────────

// ProposalStatus tracks where a proposal is in its lifecycle.
type ProposalStatus int

const (
	StatusDraft ProposalStatus = iota
	StatusActive
	StatusUnderReview
	StatusPassed
	StatusRejected
	StatusExecuted
	StatusFailedExecution
	StatusExpired
	StatusWithdrawn
)

var proposalStatusNames = []string{
	"Draft",
	"Active",
	"UnderReview",
	"Passed",
	"Rejected",
	"Executed",
	"FailedExecution",
	"Expired",
	"Withdrawn",
}

func (s ProposalStatus) String() string { return enumName(proposalStatusNames, int(s)) }

// IsTerminal reports whether no further transition can leave this status.
func (s ProposalStatus) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusExecuted, StatusFailedExecution, StatusExpired, StatusWithdrawn:
		return true
	default:
		return false
	}
}

func (s ProposalStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *ProposalStatus) UnmarshalText(b []byte) error {
	v, err := ParseProposalStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseProposalStatus converts a status name to its value.
func ParseProposalStatus(s string) (ProposalStatus, error) {
	v, err := enumParse("proposal status", proposalStatusNames, s)
	return ProposalStatus(v), err
}

// ─── Urgency ────────────────────────────────────────────────────────────────

// UrgencyLevel affects quorum percentage and deadline grace.
type UrgencyLevel int

const (
	UrgencyLow UrgencyLevel = iota
	UrgencyNormal
	UrgencyHigh
	UrgencyEmergency
)

var urgencyNames = []string{"Low", "Normal", "High", "Emergency"}

func (u UrgencyLevel) String() string { return enumName(urgencyNames, int(u)) }

func (u UrgencyLevel) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

func (u *UrgencyLevel) UnmarshalText(b []byte) error {
	v, err := ParseUrgencyLevel(string(b))
	if err != nil {
		return err
	}
	*u = v
	return nil
}

// ParseUrgencyLevel converts an urgency name to its value.
func ParseUrgencyLevel(s string) (UrgencyLevel, error) {
	v, err := enumParse("urgency level", urgencyNames, s)
	return UrgencyLevel(v), err
}

// ─── Vote Type ──────────────────────────────────────────────────────────────

// VoteType is a voter's decision on a proposal.
type VoteType int

const (
	VoteFor VoteType = iota
	VoteAgainst
	VoteAbstain
	VoteRequiresMoreEvidence
)

var voteTypeNames = []string{"For", "Against", "Abstain", "RequiresMoreEvidence"}

func (v VoteType) String() string { return enumName(voteTypeNames, int(v)) }

func (v VoteType) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *VoteType) UnmarshalText(b []byte) error {
	p, err := ParseVoteType(string(b))
	if err != nil {
		return err
	}
	*v = p
	return nil
}

// ParseVoteType converts a vote name to its value.
func ParseVoteType(s string) (VoteType, error) {
	v, err := enumParse("vote type", voteTypeNames, s)
	return VoteType(v), err
}

// ─── User Role ──────────────────────────────────────────────────────────────

// UserRole is the participant's role in the heritage community.
type UserRole int

const (
	RoleInstitution UserRole = iota
	RoleExpert
	RoleModerator
	RoleCommunity
	RoleValidator
	RoleCurator
)

var userRoleNames = []string{"Institution", "Expert", "Moderator", "Community", "Validator", "Curator"}

func (r UserRole) String() string { return enumName(userRoleNames, int(r)) }

func (r UserRole) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *UserRole) UnmarshalText(b []byte) error {
	v, err := enumParse("user role", userRoleNames, string(b))
	if err != nil {
		return err
	}
	*r = UserRole(v)
	return nil
}

// ─── User Verification Level ────────────────────────────────────────────────

// UserVerificationLevel describes how thoroughly a participant was vetted.
type UserVerificationLevel int

const (
	UserUnverified UserVerificationLevel = iota
	UserEmailVerified
	UserInstitutionVerified
	UserPeerVerified
	UserFullyVerified
)

var userVerificationNames = []string{"Unverified", "EmailVerified", "InstitutionVerified", "PeerVerified", "FullyVerified"}

func (l UserVerificationLevel) String() string { return enumName(userVerificationNames, int(l)) }

func (l UserVerificationLevel) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *UserVerificationLevel) UnmarshalText(b []byte) error {
	v, err := enumParse("user verification level", userVerificationNames, string(b))
	if err != nil {
		return err
	}
	*l = UserVerificationLevel(v)
	return nil
}

// ─── Artifact Status ────────────────────────────────────────────────────────

// ArtifactStatus is the registry-side state of an artifact.
type ArtifactStatus int

const (
	ArtifactPendingVerification ArtifactStatus = iota
	ArtifactUnderReview
	ArtifactVerified
	ArtifactDisputed
	ArtifactRejected
	ArtifactRequiresAdditionalEvidence
	ArtifactArchived
)

var artifactStatusNames = []string{
	"PendingVerification",
	"UnderReview",
	"Verified",
	"Disputed",
	"Rejected",
	"RequiresAdditionalEvidence",
	"Archived",
}

func (s ArtifactStatus) String() string { return enumName(artifactStatusNames, int(s)) }

func (s ArtifactStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *ArtifactStatus) UnmarshalText(b []byte) error {
	v, err := enumParse("artifact status", artifactStatusNames, string(b))
	if err != nil {
		return err
	}
	*s = ArtifactStatus(v)
	return nil
}

// ─── Artifact Verification Level ────────────────────────────────────────────

// VerificationLevel records how an artifact's authenticity was established.
type VerificationLevel int

const (
	VerificationNone VerificationLevel = iota
	VerificationBasic
	VerificationPeerReviewed
	VerificationDaoVerified
	VerificationScientificallyValidated
)

var verificationLevelNames = []string{
	"Unverified",
	"BasicVerification",
	"PeerReviewed",
	"DaoVerified",
	"ScientificallyValidated",
}

func (l VerificationLevel) String() string { return enumName(verificationLevelNames, int(l)) }

func (l VerificationLevel) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *VerificationLevel) UnmarshalText(b []byte) error {
	v, err := enumParse("verification level", verificationLevelNames, string(b))
	if err != nil {
		return err
	}
	*l = VerificationLevel(v)
	return nil
}

// ─── Audit ──────────────────────────────────────────────────────────────────

// AuditEventType classifies governance audit events.
type AuditEventType int

const (
	AuditProposalCreation AuditEventType = iota
	AuditVoteCast
	AuditVoteChanged
	AuditProposalFinalized
	AuditProposalExecution
	AuditCommentAdded
	AuditProposalExpired
)

var auditEventNames = []string{
	"ProposalCreation",
	"VoteCast",
	"VoteChanged",
	"ProposalFinalized",
	"ProposalExecution",
	"CommentAdded",
	"ProposalExpired",
}

func (t AuditEventType) String() string { return enumName(auditEventNames, int(t)) }

func (t AuditEventType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *AuditEventType) UnmarshalText(b []byte) error {
	v, err := enumParse("audit event type", auditEventNames, string(b))
	if err != nil {
		return err
	}
	*t = AuditEventType(v)
	return nil
}

// AuditSeverity grades audit events.
type AuditSeverity int

const (
	SeverityInfo AuditSeverity = iota
	SeverityWarning
	SeverityCritical
	SeveritySecurityAlert
)

var auditSeverityNames = []string{"Info", "Warning", "Critical", "SecurityAlert"}

func (s AuditSeverity) String() string { return enumName(auditSeverityNames, int(s)) }

func (s AuditSeverity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *AuditSeverity) UnmarshalText(b []byte) error {
	v, err := enumParse("audit severity", auditSeverityNames, string(b))
	if err != nil {
		return err
	}
	*s = AuditSeverity(v)
	return nil
}
