package engine

import (
	"github.com/pkg/errors"

	"github.com/evolvekit/skillevo/pkg/proposal"
	"github.com/evolvekit/skillevo/pkg/version"
)

// ErrConfirmationRequired reports that a proposal's risk tier needs
// explicit confirmation before it may be applied.
var ErrConfirmationRequired = errors.New("confirmation required")

// Gate is the risk-tiered approval policy. It holds no state beyond the
// proposal's tier: patch auto-applies, minor requires confirmation (or a
// delayed auto-apply window whose cancellation lives in the external
// approval channel), major always requires confirmation.
type Gate struct{}

// Allows returns nil when the proposal may be applied now.
func (Gate) Allows(p *proposal.Proposal, confirmed bool) error {
	if p.ChangeLevel == version.Patch || confirmed {
		return nil
	}
	return errors.Wrapf(ErrConfirmationRequired, "%s proposal %s", p.ChangeLevel, p.ID)
}
