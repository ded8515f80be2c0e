package engine

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evolvekit/skillevo/pkg/audit"
	"github.com/evolvekit/skillevo/pkg/backup"
	"github.com/evolvekit/skillevo/pkg/config"
	"github.com/evolvekit/skillevo/pkg/proposal"
	"github.com/evolvekit/skillevo/pkg/skilldoc"
	"github.com/evolvekit/skillevo/pkg/version"
)

const leadDoc = `---
name: pine-lead
description: Qualify inbound leads before handoff
version: "1.2.3"
updated: 2026-01-10
---

# Pine Lead

## Usage

Run the qualifier against the inbox.

## Changelog

### v1.2.3 (2026-01-10)

- Tighten scoring thresholds.
`

type fixture struct {
	cfg      *config.Config
	registry *skilldoc.Registry
	store    proposal.Store
	backups  *backup.Manager
	auditLog *audit.Log
	engine   *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default(base)
	require.NoError(t, cfg.EnsureDirs())

	require.NoError(t, os.MkdirAll(cfg.SkillsDir+"/pine-lead", 0o755))
	require.NoError(t, os.WriteFile(cfg.SkillsDir+"/pine-lead/SKILL.md", []byte(leadDoc), 0o644))

	registry := skilldoc.NewRegistry(cfg.SkillsDir)
	store, err := proposal.NewFileStore(cfg.PendingDir(), time.Now)
	require.NoError(t, err)
	backups, err := backup.NewManager(cfg.BackupsDir(), time.Now)
	require.NoError(t, err)
	auditLog, err := audit.NewLog(cfg.LogsDir(), cfg.Location())
	require.NoError(t, err)

	return &fixture{
		cfg:      cfg,
		registry: registry,
		store:    store,
		backups:  backups,
		auditLog: auditLog,
		engine:   New(cfg, registry, store, backups, auditLog),
	}
}

func pendingProposal(level version.Level, changes ...proposal.Change) *proposal.Proposal {
	now := time.Now().UTC()
	return &proposal.Proposal{
		ID:          "pine-lead-20260115093000-deadbeef",
		SkillID:     "pine-lead",
		CreatedAt:   now.Format(time.RFC3339),
		ExpiresAt:   now.Add(7 * 24 * time.Hour).Format(time.RFC3339),
		ChangeLevel: level,
		Status:      proposal.StatusPending,
		Title:       "Tune lead scoring guidance",
		Changes:     changes,
	}
}

func TestApplyHappyPath(t *testing.T) {
	f := newFixture(t)
	p := pendingProposal(version.Minor, proposal.Change{
		Kind:   proposal.KindEdit,
		Before: "Run the qualifier against the inbox.",
		After:  "Run the qualifier against the inbox, newest first.",
	})
	require.NoError(t, f.store.Save(p))

	result, err := f.engine.Apply(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, "1.2.3", result.VersionBefore)
	assert.Equal(t, "1.3.0", result.AppliedVersion)
	assert.Equal(t, 0, result.Failed())
	require.Len(t, result.Outcomes, 1)
	assert.True(t, result.Outcomes[0].OK)

	// Snapshot holds the pre-mutation bytes.
	snapshot, err := f.backups.Read(result.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, leadDoc, string(snapshot))

	// Document carries the edit, the new version, and a changelog entry.
	content, err := f.registry.Read("pine-lead")
	require.NoError(t, err)
	assert.Contains(t, string(content), "newest first")
	assert.Contains(t, string(content), `version: "1.3.0"`)
	assert.Contains(t, string(content), "### v1.3.0")
	assert.Contains(t, string(content), "- Tune lead scoring guidance")

	// Persisted proposal is applied with provenance fields set.
	saved, err := f.store.Load(p.ID)
	require.NoError(t, err)
	assert.Equal(t, proposal.StatusApplied, saved.Status)
	assert.Equal(t, result.BackupPath, saved.BackupPath)
	assert.NotEmpty(t, saved.AppliedAt)

	// Exactly one audit event for today.
	events, err := f.auditLog.Day(f.cfg.Now())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionApplied, events[0].Action)
	assert.Equal(t, "pine-lead", events[0].Skill)
	assert.Equal(t, "1.2.3", events[0].VersionBefore)
	assert.Equal(t, "1.3.0", events[0].VersionAfter)
}

func TestApplyBestEffortRecordsFailures(t *testing.T) {
	f := newFixture(t)
	p := pendingProposal(version.Patch,
		proposal.Change{
			Kind:   proposal.KindEdit,
			Before: "text that is nowhere in the document",
			After:  "replacement",
		},
		proposal.Change{
			Kind:  proposal.KindAdd,
			After: "## Usage",
			Add:   "Prefer exact company names over fuzzy matches.",
		},
	)
	require.NoError(t, f.store.Save(p))

	result, err := f.engine.Apply(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed())
	assert.False(t, result.Outcomes[0].OK)
	assert.True(t, result.Outcomes[1].OK)
	assert.Equal(t, "1.2.4", result.AppliedVersion)

	content, err := f.registry.Read("pine-lead")
	require.NoError(t, err)
	assert.Contains(t, string(content), "Prefer exact company names")
	assert.NotContains(t, string(content), "replacement")

	saved, err := f.store.Load(p.ID)
	require.NoError(t, err)
	assert.Equal(t, proposal.StatusApplied, saved.Status)
}

func TestApplyStrictAbortsBeforeWrites(t *testing.T) {
	f := newFixture(t)
	f.cfg.StrictApply = true
	p := pendingProposal(version.Patch, proposal.Change{
		Kind:   proposal.KindEdit,
		Before: "text that is nowhere in the document",
		After:  "replacement",
	})
	require.NoError(t, f.store.Save(p))

	result, err := f.engine.Apply(context.Background(), p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStrictApply))
	require.NotNil(t, result)
	assert.Empty(t, result.AppliedVersion)

	// Document untouched, proposal still pending and reusable.
	content, err := f.registry.Read("pine-lead")
	require.NoError(t, err)
	assert.Equal(t, leadDoc, string(content))

	saved, err := f.store.Load(p.ID)
	require.NoError(t, err)
	assert.Equal(t, proposal.StatusPending, saved.Status)
	assert.Empty(t, saved.BackupPath)
}

func TestApplyMissingSkillIsFatal(t *testing.T) {
	f := newFixture(t)
	p := pendingProposal(version.Patch, proposal.Change{Kind: proposal.KindReview, Note: "check triggers"})
	p.SkillID = "no-such-skill"

	_, err := f.engine.Apply(context.Background(), p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, skilldoc.ErrNotFound))
}

func TestApplyRejectsTerminalStatus(t *testing.T) {
	f := newFixture(t)
	for _, status := range []proposal.Status{
		proposal.StatusRejected,
		proposal.StatusApplied,
		proposal.StatusExpired,
		proposal.StatusRolledBack,
	} {
		p := pendingProposal(version.Patch, proposal.Change{Kind: proposal.KindReview})
		p.Status = status
		_, err := f.engine.Apply(context.Background(), p)
		require.Error(t, err, "status %s", status)
		assert.True(t, errors.Is(err, proposal.ErrIllegalTransition))
	}
}

func TestApplyAcceptsApproved(t *testing.T) {
	f := newFixture(t)
	p := pendingProposal(version.Major, proposal.Change{Kind: proposal.KindReview, Note: "full rewrite review"})
	p.Status = proposal.StatusApproved
	require.NoError(t, f.store.Save(p))

	result, err := f.engine.Apply(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", result.AppliedVersion)

	saved, err := f.store.Load(p.ID)
	require.NoError(t, err)
	assert.Equal(t, proposal.StatusApplied, saved.Status)
}

func TestRollbackRestoresSnapshot(t *testing.T) {
	f := newFixture(t)
	p := pendingProposal(version.Minor, proposal.Change{
		Kind:   proposal.KindEdit,
		Before: "Run the qualifier against the inbox.",
		After:  "Run the qualifier twice.",
	})
	require.NoError(t, f.store.Save(p))

	_, err := f.engine.Apply(context.Background(), p)
	require.NoError(t, err)

	require.NoError(t, f.engine.Rollback(context.Background(), p.ID))

	content, err := f.registry.Read("pine-lead")
	require.NoError(t, err)
	assert.Equal(t, leadDoc, string(content))

	saved, err := f.store.Load(p.ID)
	require.NoError(t, err)
	assert.Equal(t, proposal.StatusRolledBack, saved.Status)
	assert.NotEmpty(t, saved.RolledBackAt)
}

func TestRollbackRequiresApplied(t *testing.T) {
	f := newFixture(t)
	p := pendingProposal(version.Patch, proposal.Change{Kind: proposal.KindReview})
	require.NoError(t, f.store.Save(p))

	err := f.engine.Rollback(context.Background(), p.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, proposal.ErrIllegalTransition))
}

func TestDryRunLeavesEverythingUntouched(t *testing.T) {
	f := newFixture(t)
	p := pendingProposal(version.Minor, proposal.Change{
		Kind:   proposal.KindEdit,
		Before: "Run the qualifier against the inbox.",
		After:  "Run the qualifier twice.",
	})

	result, err := f.engine.DryRun(p)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", result.VersionBefore)
	assert.Equal(t, "1.3.0", result.AppliedVersion)
	assert.Empty(t, result.BackupPath)
	require.Len(t, result.Outcomes, 1)
	assert.True(t, result.Outcomes[0].OK)

	content, err := f.registry.Read("pine-lead")
	require.NoError(t, err)
	assert.Equal(t, leadDoc, string(content))
	assert.Equal(t, proposal.StatusPending, p.Status)
}

func TestApplyChangeKinds(t *testing.T) {
	doc := "---\nname: demo\n---\n\n# Demo\n\n## Usage\n\nDo the thing.\n"

	tests := []struct {
		name     string
		change   proposal.Change
		wantOK   bool
		contains string
	}{
		{
			name: "frontmatter merge",
			change: proposal.Change{
				Kind:    proposal.KindAdd,
				Section: proposal.SectionFrontmatter,
				Add:     "evolution:\n  enabled: true",
			},
			wantOK:   true,
			contains: "evolution:",
		},
		{
			name: "insert before anchor",
			change: proposal.Change{
				Kind:   proposal.KindAdd,
				Before: "## Usage",
				Add:    "## Out of Scope\n\n_To be filled in._",
			},
			wantOK:   true,
			contains: "## Out of Scope",
		},
		{
			name: "append without anchor",
			change: proposal.Change{
				Kind: proposal.KindAdd,
				Add:  "## Verification\n\n_To be filled in._",
			},
			wantOK:   true,
			contains: "## Verification",
		},
		{
			name:   "add without content fails",
			change: proposal.Change{Kind: proposal.KindAdd},
			wantOK: false,
		},
		{
			name:   "review never mutates",
			change: proposal.Change{Kind: proposal.KindReview, Note: "inspect triggers"},
			wantOK: true,
		},
		{
			name:   "unknown kind fails",
			change: proposal.Change{Kind: "rename"},
			wantOK: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, outcome := applyChange(doc, tc.change)
			assert.Equal(t, tc.wantOK, outcome.OK)
			if tc.contains != "" {
				assert.Contains(t, next, tc.contains)
			}
			if !tc.wantOK || tc.change.Kind == proposal.KindReview {
				assert.Equal(t, doc, next)
			}
		})
	}
}
