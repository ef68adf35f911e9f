package directory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/heritage-dao/heritage/internal/domain"
)

// Roster is the YAML seed for the directory:
//
//	users:
//	  - principal: alice
//	    role: Expert
//	    verification_level: PeerVerified
//	    specializations: [ceramics]
//	    permissions: {can_vote: true, can_create_proposals: true, voting_weight: 3}
//	artifacts:
//	  - id: 1
//	    title: Amphora
//	    status: PendingVerification
type Roster struct {
	Users     []domain.User     `yaml:"users"`
	Artifacts []domain.Artifact `yaml:"artifacts"`
}

// LoadRoster reads and parses a roster file.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return ParseRoster(data)
}

// ParseRoster decodes roster YAML. Users without an explicit voting weight
// get weight 1.
func ParseRoster(data []byte) (*Roster, error) {
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	seen := make(map[domain.Principal]bool, len(r.Users))
	for i := range r.Users {
		u := &r.Users[i]
		if u.Principal == "" {
			return nil, fmt.Errorf("%w: roster user %d has no principal", domain.ErrValidation, i)
		}
		if seen[u.Principal] {
			return nil, fmt.Errorf("%w: duplicate roster principal %q", domain.ErrValidation, u.Principal)
		}
		seen[u.Principal] = true
		if u.Permissions.VotingWeight == 0 {
			u.Permissions.VotingWeight = 1
		}
	}
	for i, a := range r.Artifacts {
		if a.ID == 0 {
			return nil, fmt.Errorf("%w: roster artifact %d has no id", domain.ErrValidation, i)
		}
	}
	return &r, nil
}

// Seed loads every roster entry into the directory.
func (d *Directory) Seed(r *Roster) {
	for _, u := range r.Users {
		d.PutUser(u)
	}
	for _, a := range r.Artifacts {
		d.PutArtifact(a)
	}
	d.logger.Info("directory seeded", "users", len(r.Users), "artifacts", len(r.Artifacts))
}
