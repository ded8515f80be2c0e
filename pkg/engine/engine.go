// Package engine applies proposals to skill documents and rolls them
// back. An apply is a run-to-completion batch: resolve the document,
// snapshot it, execute the change operations independently, bump the
// version, rewrite metadata, persist the applied proposal, and append one
// audit event. Per-operation failures are non-fatal under the default
// best-effort policy; anything that raises after the snapshot but before
// the proposal is persisted leaves the proposal's status unchanged.
package engine

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/evolvekit/skillevo/pkg/audit"
	"github.com/evolvekit/skillevo/pkg/backup"
	"github.com/evolvekit/skillevo/pkg/config"
	"github.com/evolvekit/skillevo/pkg/logger"
	"github.com/evolvekit/skillevo/pkg/proposal"
	"github.com/evolvekit/skillevo/pkg/skilldoc"
	"github.com/evolvekit/skillevo/pkg/version"
)

// ErrStrictApply reports that strict mode aborted an apply because one or
// more change operations failed.
var ErrStrictApply = errors.New("operation failed under strict apply policy")

// Outcome is the result of one change operation. Outcomes are recorded
// independently: one operation's failure never blocks the others.
type Outcome struct {
	Index  int    `json:"index"`
	Kind   string `json:"kind"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Result summarizes one apply.
type Result struct {
	ProposalID     string    `json:"proposal_id"`
	Skill          string    `json:"skill"`
	VersionBefore  string    `json:"version_before"`
	AppliedVersion string    `json:"applied_version"`
	BackupPath     string    `json:"backup_path,omitempty"`
	Outcomes       []Outcome `json:"outcomes"`
}

// Failed returns the number of failed operations.
func (r *Result) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.OK {
			n++
		}
	}
	return n
}

// Engine orchestrates proposal application and rollback.
type Engine struct {
	cfg      *config.Config
	registry *skilldoc.Registry
	store    proposal.Store
	backups  *backup.Manager
	auditLog *audit.Log
}

// New wires an engine from its collaborators.
func New(cfg *config.Config, registry *skilldoc.Registry, store proposal.Store, backups *backup.Manager, auditLog *audit.Log) *Engine {
	return &Engine{cfg: cfg, registry: registry, store: store, backups: backups, auditLog: auditLog}
}

// Apply executes a proposal against its skill document. The proposal must
// be pending or approved; anything else is an illegal transition. A
// missing skill document is fatal before any mutation. The returned
// Result carries per-operation outcomes even on partial success.
func (e *Engine) Apply(ctx context.Context, p *proposal.Proposal) (*Result, error) {
	log := logger.G(ctx).WithField("proposal", p.ID).WithField("skill", p.SkillID)

	if p.Status != proposal.StatusPending && p.Status != proposal.StatusApproved {
		return nil, errors.Wrapf(proposal.ErrIllegalTransition, "cannot apply proposal in status %s", p.Status)
	}

	lock, err := AcquireLock(e.cfg.LocksDir(), p.SkillID)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	// Step 1: resolve the document. Fatal, nothing mutated yet.
	content, err := e.registry.Read(p.SkillID)
	if err != nil {
		return nil, err
	}

	// Step 2: current version, baseline when unparseable.
	versionBefore := skilldoc.Parse(content).Version()

	// Step 3: snapshot strictly before mutation.
	backupPath, err := e.backups.Create(p.SkillID, versionBefore, content)
	if err != nil {
		return nil, err
	}
	log.WithField("backup", backupPath).Debug("snapshot taken")

	// Step 4: execute operations in order, independently.
	mutated := string(content)
	outcomes := make([]Outcome, 0, len(p.Changes))
	for i, change := range p.Changes {
		next, outcome := applyChange(mutated, change)
		outcome.Index = i
		if outcome.OK {
			mutated = next
		} else {
			log.WithField("operation", i).Warn(outcome.Detail)
		}
		outcomes = append(outcomes, outcome)
	}

	result := &Result{
		ProposalID:    p.ID,
		Skill:         p.SkillID,
		VersionBefore: versionBefore,
		BackupPath:    backupPath,
		Outcomes:      outcomes,
	}

	if e.cfg.StrictApply && result.Failed() > 0 {
		// The document is untouched; the proposal keeps its status and
		// remains applicable after the mismatch is fixed up.
		return result, errors.Wrapf(ErrStrictApply, "%d of %d operations failed", result.Failed(), len(outcomes))
	}

	// Steps 5-6: derive the next version and rewrite document metadata.
	now := e.cfg.Now()
	today := now.Format("2006-01-02")
	next := version.Increment(versionBefore, p.ChangeLevel)

	doc := skilldoc.Parse([]byte(mutated))
	doc.SetVersion(next)
	doc.SetUpdated(today)
	doc.InsertChangelog(next, today, p.Title)

	if err := e.registry.Write(p.SkillID, doc.Bytes()); err != nil {
		return result, err
	}
	result.AppliedVersion = next

	// Step 7: persist the applied proposal. The pending->approved hop
	// happens in memory so the record is written exactly once.
	if p.Status == proposal.StatusPending {
		if err := p.Transition(proposal.StatusApproved); err != nil {
			return result, err
		}
	}
	if err := p.Transition(proposal.StatusApplied); err != nil {
		return result, err
	}
	p.AppliedAt = e.cfg.Timestamp(now)
	p.BackupPath = backupPath
	if err := e.store.Save(p); err != nil {
		return result, errors.Wrap(err, "failed to persist applied proposal")
	}

	// Step 8: one audit event per applied proposal.
	event := audit.Event{
		Timestamp:     e.cfg.Timestamp(now),
		Action:        audit.ActionApplied,
		Skill:         p.SkillID,
		VersionBefore: versionBefore,
		VersionAfter:  next,
		ChangeLevel:   p.ChangeLevel,
		Description:   p.Title,
	}
	if err := e.auditLog.Append(event, now); err != nil {
		return result, errors.Wrap(err, "failed to append audit event")
	}

	log.WithField("version", next).Info("proposal applied")
	return result, nil
}

// Rollback restores a skill document from an applied proposal's snapshot
// and flips the proposal to rolled_back. Legal only from applied with a
// recorded backup path.
func (e *Engine) Rollback(ctx context.Context, id string) error {
	p, err := e.store.Load(id)
	if err != nil {
		return err
	}
	if p.Status != proposal.StatusApplied {
		return errors.Wrapf(proposal.ErrIllegalTransition, "cannot roll back proposal in status %s", p.Status)
	}
	if p.BackupPath == "" {
		return errors.Errorf("proposal %s has no backup path", id)
	}

	lock, err := AcquireLock(e.cfg.LocksDir(), p.SkillID)
	if err != nil {
		return err
	}
	defer lock.Release()

	// Snapshot bytes carry the pre-mutation version string, so restoring
	// them is the whole rollback; no version decrement happens.
	if err := e.backups.Restore(p.BackupPath, e.registry.Path(p.SkillID)); err != nil {
		return err
	}

	if err := p.Transition(proposal.StatusRolledBack); err != nil {
		return err
	}
	p.RolledBackAt = e.cfg.Timestamp(e.cfg.Now())
	if err := e.store.Save(p); err != nil {
		return errors.Wrap(err, "failed to persist rolled back proposal")
	}

	logger.G(ctx).WithField("proposal", id).WithField("skill", p.SkillID).Info("proposal rolled back")
	return nil
}

// DryRun computes what Apply would do without snapshotting, mutating, or
// persisting anything.
func (e *Engine) DryRun(p *proposal.Proposal) (*Result, error) {
	content, err := e.registry.Read(p.SkillID)
	if err != nil {
		return nil, err
	}
	versionBefore := skilldoc.Parse(content).Version()

	mutated := string(content)
	outcomes := make([]Outcome, 0, len(p.Changes))
	for i, change := range p.Changes {
		next, outcome := applyChange(mutated, change)
		outcome.Index = i
		if outcome.OK {
			mutated = next
		}
		outcomes = append(outcomes, outcome)
	}

	return &Result{
		ProposalID:     p.ID,
		Skill:          p.SkillID,
		VersionBefore:  versionBefore,
		AppliedVersion: version.Increment(versionBefore, p.ChangeLevel),
		Outcomes:       outcomes,
	}, nil
}

// applyChange executes one operation against content, returning the new
// content and the outcome. Failed operations leave content untouched.
func applyChange(content string, change proposal.Change) (string, Outcome) {
	outcome := Outcome{Kind: change.Kind}

	switch change.Kind {
	case proposal.KindEdit:
		next, err := skilldoc.ReplaceExact(content, change.Before, change.After)
		if err != nil {
			outcome.Detail = err.Error()
			return content, outcome
		}
		outcome.OK = true
		outcome.Detail = fmt.Sprintf("replaced %q", truncate(change.Before, 40))
		return next, outcome

	case proposal.KindAdd:
		if change.Add == "" {
			outcome.Detail = "add operation has no content block"
			return content, outcome
		}
		next, err := insertBlock(content, change)
		if err != nil {
			outcome.Detail = err.Error()
			return content, outcome
		}
		outcome.OK = true
		outcome.Detail = "block inserted"
		return next, outcome

	case proposal.KindReview:
		// Advisory only, never mutates.
		outcome.OK = true
		outcome.Detail = change.Note
		if outcome.Detail == "" {
			outcome.Detail = "review requested"
		}
		return content, outcome

	default:
		outcome.Detail = fmt.Sprintf("unknown operation kind %q", change.Kind)
		return content, outcome
	}
}

func insertBlock(content string, change proposal.Change) (string, error) {
	switch {
	case change.Section == proposal.SectionFrontmatter:
		return skilldoc.MergeFrontmatter(content, change.Add)
	case change.After != "":
		return skilldoc.InsertAfter(content, change.Add, change.After)
	case change.Before != "":
		return skilldoc.InsertBefore(content, change.Add, change.Before)
	default:
		return skilldoc.AppendToEnd(content, change.Add), nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
