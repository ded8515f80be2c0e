package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evolvekit/skillevo/pkg/presenter"
	"github.com/evolvekit/skillevo/pkg/proposal"
)

// ProposalsListConfig holds configuration for the proposals list command
type ProposalsListConfig struct {
	Status string
	Skill  string
	JSON   bool
}

// NewProposalsListConfig creates a new ProposalsListConfig with default values
func NewProposalsListConfig() *ProposalsListConfig {
	return &ProposalsListConfig{
		Status: string(proposal.StatusPending),
	}
}

var proposalsCmd = &cobra.Command{
	Use:   "proposals",
	Short: "Inspect improvement proposals",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

var proposalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List proposals",
	Long: `List proposals, pending ones by default.

Example:
  skillevo proposals list
  skillevo proposals list --status applied
  skillevo proposals list --skill pine-lead --json`,
	Run: func(cmd *cobra.Command, args []string) {
		config := getProposalsListConfigFromFlags(cmd)
		runProposalsListCmd(config)
	},
}

var proposalsShowCmd = &cobra.Command{
	Use:   "show [proposal-id]",
	Short: "Show one proposal in full",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runProposalsShowCmd(args[0])
	},
}

func init() {
	defaults := NewProposalsListConfig()
	proposalsListCmd.Flags().String("status", defaults.Status, "Filter by status (pending, approved, rejected, applied, expired, rolled_back, all)")
	proposalsListCmd.Flags().String("skill", defaults.Skill, "Filter by skill id")
	proposalsListCmd.Flags().Bool("json", defaults.JSON, "Emit JSON instead of a table")

	proposalsCmd.AddCommand(proposalsListCmd)
	proposalsCmd.AddCommand(proposalsShowCmd)
}

// getProposalsListConfigFromFlags extracts list configuration from command flags
func getProposalsListConfigFromFlags(cmd *cobra.Command) *ProposalsListConfig {
	config := NewProposalsListConfig()

	if status, err := cmd.Flags().GetString("status"); err == nil && status != "" {
		config.Status = status
	}
	if skill, err := cmd.Flags().GetString("skill"); err == nil {
		config.Skill = skill
	}
	if asJSON, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = asJSON
	}

	return config
}

func runProposalsListCmd(config *ProposalsListConfig) {
	ws, err := newWorkspace()
	if err != nil {
		presenter.Error(err, "Failed to initialize workspace")
		os.Exit(1)
	}

	opts := proposal.ListOptions{Skill: config.Skill}
	if config.Status != "all" {
		opts.Status = proposal.Status(config.Status)
	}

	proposals, err := ws.store.List(opts)
	if err != nil {
		presenter.Error(err, "Failed to list proposals")
		os.Exit(1)
	}

	if config.JSON {
		out, err := json.MarshalIndent(proposals, "", "  ")
		if err != nil {
			presenter.Error(err, "Failed to encode proposals")
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	if len(proposals) == 0 {
		presenter.Info("No proposals found")
		return
	}

	presenter.Section(fmt.Sprintf("%d proposal(s)", len(proposals)))
	for _, p := range proposals {
		presenter.Info(fmt.Sprintf("%s %s  %s  %s  %s",
			presenter.Level(p.ChangeLevel), p.ID, p.SkillID, p.Status, p.Title))
	}
}

func runProposalsShowCmd(id string) {
	ws, err := newWorkspace()
	if err != nil {
		presenter.Error(err, "Failed to initialize workspace")
		os.Exit(1)
	}

	p, err := ws.store.Load(id)
	if err != nil {
		presenter.Error(err, "Failed to load proposal")
		os.Exit(1)
	}

	presenter.Section(p.ID)
	presenter.Info(fmt.Sprintf("Skill:       %s", p.SkillID))
	presenter.Info(fmt.Sprintf("Status:      %s", p.Status))
	presenter.Info(fmt.Sprintf("Level:       %s", presenter.Level(p.ChangeLevel)))
	presenter.Info(fmt.Sprintf("Created:     %s", p.CreatedAt))
	presenter.Info(fmt.Sprintf("Expires:     %s", p.ExpiresAt))
	presenter.Info(fmt.Sprintf("Title:       %s", p.Title))
	if p.Description != "" {
		presenter.Info(fmt.Sprintf("Description: %s", p.Description))
	}
	if p.BackupPath != "" {
		presenter.Info(fmt.Sprintf("Backup:      %s", p.BackupPath))
	}
	if p.AppliedAt != "" {
		presenter.Info(fmt.Sprintf("Applied:     %s", p.AppliedAt))
	}
	if p.RolledBackAt != "" {
		presenter.Info(fmt.Sprintf("Rolled back: %s", p.RolledBackAt))
	}

	presenter.Separator()
	for i, c := range p.Changes {
		presenter.Info(fmt.Sprintf("Change %d: %s", i+1, c.Kind))
		if c.Section != "" {
			presenter.Info(fmt.Sprintf("  section: %s", c.Section))
		}
		if c.Before != "" {
			presenter.Info(fmt.Sprintf("  before:  %s", c.Before))
		}
		if c.After != "" {
			presenter.Info(fmt.Sprintf("  after:   %s", c.After))
		}
		if c.Add != "" {
			presenter.Info(fmt.Sprintf("  add:     %s", c.Add))
		}
		if c.Note != "" {
			presenter.Info(fmt.Sprintf("  note:    %s", c.Note))
		}
	}
}
