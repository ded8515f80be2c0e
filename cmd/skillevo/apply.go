package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/evolvekit/skillevo/pkg/engine"
	"github.com/evolvekit/skillevo/pkg/notify"
	"github.com/evolvekit/skillevo/pkg/presenter"
	"github.com/evolvekit/skillevo/pkg/proposal"
	"github.com/evolvekit/skillevo/pkg/version"
)

// ApplyConfig holds configuration for the apply command
type ApplyConfig struct {
	ProposalID string
	Level      string
	All        bool
	Confirm    bool
	DryRun     bool
	Notify     bool
}

// NewApplyConfig creates a new ApplyConfig with default values
func NewApplyConfig() *ApplyConfig {
	return &ApplyConfig{}
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply pending proposals to skill documents",
	Long: `Apply executes pending proposals: snapshot the document, run the change
operations, bump the version, and record an audit event. Patch-level
proposals apply without confirmation; minor and major ones require
--confirm.

Example:
  skillevo apply --proposal pine-lead-20260115093000-deadbeef
  skillevo apply --level patch --all
  skillevo apply --level minor --all --confirm
  skillevo apply --level minor --notify
  skillevo apply --proposal <id> --dry-run`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getApplyConfigFromFlags(cmd)
		runApplyCmd(ctx, config)
	},
}

func init() {
	defaults := NewApplyConfig()
	applyCmd.Flags().String("proposal", defaults.ProposalID, "Apply a single proposal by id")
	applyCmd.Flags().String("level", defaults.Level, "Apply pending proposals of one change level (patch, minor, major)")
	applyCmd.Flags().Bool("all", defaults.All, "Apply every matching pending proposal")
	applyCmd.Flags().Bool("confirm", defaults.Confirm, "Confirm minor/major changes")
	applyCmd.Flags().Bool("dry-run", defaults.DryRun, "Compute outcomes without mutating anything")
	applyCmd.Flags().Bool("notify", defaults.Notify, "Send a Telegram summary of the result")
}

// getApplyConfigFromFlags extracts apply configuration from command flags
func getApplyConfigFromFlags(cmd *cobra.Command) *ApplyConfig {
	config := NewApplyConfig()

	if id, err := cmd.Flags().GetString("proposal"); err == nil {
		config.ProposalID = id
	}
	if level, err := cmd.Flags().GetString("level"); err == nil {
		config.Level = level
	}
	if all, err := cmd.Flags().GetBool("all"); err == nil {
		config.All = all
	}
	if confirm, err := cmd.Flags().GetBool("confirm"); err == nil {
		config.Confirm = confirm
	}
	if dryRun, err := cmd.Flags().GetBool("dry-run"); err == nil {
		config.DryRun = dryRun
	}
	if doNotify, err := cmd.Flags().GetBool("notify"); err == nil {
		config.Notify = doNotify
	}

	if config.ProposalID == "" && config.Level == "" {
		presenter.Error(errors.New("nothing selected"), "Use --proposal <id> or --level <tier>")
		os.Exit(1)
	}
	if config.ProposalID != "" && config.All {
		presenter.Error(errors.New("conflicting flags"), "--proposal and --all cannot be used together")
		os.Exit(1)
	}

	return config
}

func runApplyCmd(ctx context.Context, config *ApplyConfig) {
	ws, err := newWorkspace()
	if err != nil {
		presenter.Error(err, "Failed to initialize workspace")
		os.Exit(1)
	}

	candidates, err := selectProposals(ws, config)
	if err != nil {
		presenter.Error(err, "Failed to select proposals")
		os.Exit(1)
	}
	if len(candidates) == 0 {
		presenter.Info("No matching pending proposals")
		return
	}

	gate := engine.Gate{}
	sink := notify.NewTelegramSink(ws.cfg.Telegram)
	displayTime := ws.cfg.Timestamp(ws.cfg.Now())

	var blocked []*proposal.Proposal
	applied := 0
	failed := 0
	var appliedProposals []*proposal.Proposal

	for _, p := range candidates {
		if err := gate.Allows(p, config.Confirm); err != nil {
			blocked = append(blocked, p)
			presenter.Warning(fmt.Sprintf("%s %s needs --confirm", presenter.Level(p.ChangeLevel), p.ID))
			continue
		}

		var result *engine.Result
		if config.DryRun {
			result, err = ws.engine.DryRun(p)
		} else {
			result, err = ws.engine.Apply(ctx, p)
		}
		if err != nil {
			failed++
			presenter.Error(err, fmt.Sprintf("Failed to apply %s", p.ID))
			continue
		}

		applied++
		appliedProposals = append(appliedProposals, p)
		presenter.Success(fmt.Sprintf("%s %s: %s -> %s (%d/%d operations ok)",
			presenter.Level(p.ChangeLevel), p.SkillID,
			result.VersionBefore, result.AppliedVersion,
			len(result.Outcomes)-result.Failed(), len(result.Outcomes)))
		for _, o := range result.Outcomes {
			if !o.OK {
				presenter.Warning(fmt.Sprintf("  operation %d (%s) failed: %s", o.Index+1, o.Kind, o.Detail))
			}
		}
	}

	presenter.Separator()
	if config.DryRun {
		presenter.Warning(fmt.Sprintf("Dry run: %d would apply, %d blocked, %d failed", applied, len(blocked), failed))
	} else {
		presenter.Info(fmt.Sprintf("%d applied, %d blocked, %d failed", applied, len(blocked), failed))
	}

	if config.Notify && !config.DryRun {
		sendApplyNotifications(ctx, sink, appliedProposals, blocked, displayTime)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// selectProposals resolves the apply target set: one proposal by id, or
// pending proposals filtered by level (first only unless --all).
func selectProposals(ws *workspace, config *ApplyConfig) ([]*proposal.Proposal, error) {
	if config.ProposalID != "" {
		p, err := ws.store.Load(config.ProposalID)
		if err != nil {
			return nil, err
		}
		return []*proposal.Proposal{p}, nil
	}

	level, err := version.ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	pending, err := ws.store.List(proposal.ListOptions{Status: proposal.StatusPending})
	if err != nil {
		return nil, err
	}

	var matched []*proposal.Proposal
	for _, p := range pending {
		if p.ChangeLevel != level {
			continue
		}
		matched = append(matched, p)
		if !config.All {
			break
		}
	}
	return matched, nil
}

// sendApplyNotifications reports applied patches and confirmation-gated
// proposals. Notification failures never fail the apply.
func sendApplyNotifications(ctx context.Context, sink notify.Notifier, applied, blocked []*proposal.Proposal, displayTime string) {
	var patches []*proposal.Proposal
	for _, p := range applied {
		if p.ChangeLevel == version.Patch {
			patches = append(patches, p)
		}
	}
	if len(patches) > 0 {
		if err := sink.Send(ctx, notify.PatchApplied(patches, displayTime)); err != nil {
			presenter.Warning(fmt.Sprintf("Notification failed: %v", err))
		}
	}

	var minor, major []*proposal.Proposal
	for _, p := range blocked {
		switch p.ChangeLevel {
		case version.Minor:
			minor = append(minor, p)
		case version.Major:
			major = append(major, p)
		}
	}
	if len(minor) > 0 {
		if err := sink.Send(ctx, notify.MinorPending(minor, displayTime)); err != nil {
			presenter.Warning(fmt.Sprintf("Notification failed: %v", err))
		}
	}
	if len(major) > 0 {
		if err := sink.Send(ctx, notify.MajorPending(major, displayTime)); err != nil {
			presenter.Warning(fmt.Sprintf("Notification failed: %v", err))
		}
	}
}
