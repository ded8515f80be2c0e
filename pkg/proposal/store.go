package proposal

import "github.com/pkg/errors"

// ErrNotFound reports a missing proposal record.
var ErrNotFound = errors.New("proposal not found")

// ListOptions filters a store listing.
type ListOptions struct {
	// Status restricts the listing to one status; empty lists everything.
	Status Status
	// Skill restricts the listing to one skill; empty lists everything.
	Skill string
}

// Store is durable keyed persistence for proposals: one record per
// proposal, last-write-wins. Callers must guarantee at most one concurrent
// writer per skill (the engine's per-skill lock does this for applies).
type Store interface {
	// Save persists a proposal record, replacing any previous version.
	Save(p *Proposal) error
	// Load retrieves a proposal by id, or ErrNotFound.
	Load(id string) (*Proposal, error)
	// List returns matching proposals ordered by creation time ascending,
	// deterministically.
	List(opts ListOptions) ([]*Proposal, error)
	// Close releases store resources.
	Close() error
}
