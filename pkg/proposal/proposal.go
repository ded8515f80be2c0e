// Package proposal defines the persisted, versioned unit of change derived
// from detected opportunities: its record shape, its monotonic status
// machine, the factory that templates opportunities into proposals, and
// the durable keyed store they live in. Proposals are never deleted; they
// only move along the allowed status graph.
package proposal

import (
	"time"

	"github.com/pkg/errors"

	"github.com/evolvekit/skillevo/pkg/version"
)

// Status is the lifecycle state of a proposal.
type Status string

// Allowed proposal statuses.
const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusApplied    Status = "applied"
	StatusExpired    Status = "expired"
	StatusRolledBack Status = "rolled_back"
)

// ErrIllegalTransition reports a status change outside the allowed graph,
// such as reapplying an applied proposal or rolling back anything that is
// not applied.
var ErrIllegalTransition = errors.New("illegal status transition")

// transitions is the allowed status graph. Terminal statuses have no
// outgoing edges.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusExpired},
	StatusApproved: {StatusApplied},
	StatusApplied:  {StatusRolledBack},
}

// CanTransition reports whether from -> to is on the allowed graph.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Change kinds.
const (
	KindEdit   = "edit"
	KindAdd    = "add"
	KindReview = "review"
)

// SectionFrontmatter routes an add operation into the document header.
const SectionFrontmatter = "frontmatter"

// Change is one atomic text-mutation instruction within a proposal.
// edit replaces an exact before-match with after; add inserts a content
// block at an anchor (frontmatter merge, after/before an exact anchor
// text, or appended to the end when no anchor is given); review is
// advisory and never mutates.
type Change struct {
	File    string `yaml:"file,omitempty" json:"file,omitempty"`
	Kind    string `yaml:"type" json:"type"`
	Section string `yaml:"section,omitempty" json:"section,omitempty"`
	Before  string `yaml:"before,omitempty" json:"before,omitempty"`
	After   string `yaml:"after,omitempty" json:"after,omitempty"`
	Add     string `yaml:"add,omitempty" json:"add,omitempty"`
	Note    string `yaml:"note,omitempty" json:"note,omitempty"`
}

// Proposal is the durable record of one approvable unit of change.
// Timestamps are fixed-offset RFC3339 strings, matching the ledger format.
type Proposal struct {
	ID          string        `yaml:"proposal_id" json:"proposal_id"`
	SkillID     string        `yaml:"skill_id" json:"skill_id"`
	CreatedAt   string        `yaml:"created_at" json:"created_at"`
	ExpiresAt   string        `yaml:"expires_at" json:"expires_at"`
	ChangeLevel version.Level `yaml:"change_level" json:"change_level"`
	Status      Status        `yaml:"status" json:"status"`

	SourceType      string `yaml:"source_type" json:"source_type"`
	SourceSessionID string `yaml:"source_session_id,omitempty" json:"source_session_id,omitempty"`
	SourceTrigger   string `yaml:"source_trigger" json:"source_trigger"`

	Title       string   `yaml:"title" json:"title"`
	Description string   `yaml:"description" json:"description"`
	Changes     []Change `yaml:"changes" json:"changes"`
	Impact      []string `yaml:"impact" json:"impact"`

	BackupPath   string `yaml:"backup_path,omitempty" json:"backup_path,omitempty"`
	AppliedAt    string `yaml:"applied_at,omitempty" json:"applied_at,omitempty"`
	RolledBackAt string `yaml:"rolled_back_at,omitempty" json:"rolled_back_at,omitempty"`
}

// Transition moves the proposal to a new status, rejecting anything off
// the allowed graph with ErrIllegalTransition and leaving the record
// unchanged.
func (p *Proposal) Transition(to Status) error {
	if !CanTransition(p.Status, to) {
		return errors.Wrapf(ErrIllegalTransition, "%s -> %s", p.Status, to)
	}
	p.Status = to
	return nil
}

// CreatedTime parses the creation timestamp. A malformed timestamp sorts
// as the zero time.
func (p *Proposal) CreatedTime() time.Time {
	t, err := time.Parse(time.RFC3339, p.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ExpiredAt reports whether the proposal's expiry has passed at now.
func (p *Proposal) ExpiredAt(now time.Time) bool {
	t, err := time.Parse(time.RFC3339, p.ExpiresAt)
	if err != nil {
		return false
	}
	return now.After(t)
}

// Terminal reports whether the proposal has reached a state with no
// outgoing transitions.
func (p *Proposal) Terminal() bool {
	return len(transitions[p.Status]) == 0
}
