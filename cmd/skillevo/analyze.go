package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/evolvekit/skillevo/pkg/detector"
	"github.com/evolvekit/skillevo/pkg/presenter"
	"github.com/evolvekit/skillevo/pkg/proposal"
	"github.com/evolvekit/skillevo/pkg/report"
	"github.com/evolvekit/skillevo/pkg/telemetry"
	"github.com/evolvekit/skillevo/pkg/version"
)

// AnalyzeConfig holds configuration for the analyze command
type AnalyzeConfig struct {
	Skill  string
	Days   int
	Report bool
	DryRun bool
}

// NewAnalyzeConfig creates a new AnalyzeConfig with default values
func NewAnalyzeConfig() *AnalyzeConfig {
	return &AnalyzeConfig{
		Days: 0, // 0 means use the configured window
	}
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Detect improvement opportunities and create proposals",
	Long: `Analyze reads skill usage telemetry over the observation window, runs
the detectors against every skill, and persists an improvement proposal
for each finding.

Example:
  skillevo analyze
  skillevo analyze --skill pine-lead --days 14
  skillevo analyze --report
  skillevo analyze --dry-run`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getAnalyzeConfigFromFlags(cmd)
		runAnalyzeCmd(ctx, config)
	},
}

func init() {
	defaults := NewAnalyzeConfig()
	analyzeCmd.Flags().String("skill", defaults.Skill, "Analyze a single skill instead of the whole library")
	analyzeCmd.Flags().Int("days", defaults.Days, "Observation window in days (default from config)")
	analyzeCmd.Flags().Bool("report", defaults.Report, "Write the weekly markdown report")
	analyzeCmd.Flags().Bool("dry-run", defaults.DryRun, "Compute findings without persisting proposals or the report")
}

// getAnalyzeConfigFromFlags extracts analyze configuration from command flags
func getAnalyzeConfigFromFlags(cmd *cobra.Command) *AnalyzeConfig {
	config := NewAnalyzeConfig()

	if skill, err := cmd.Flags().GetString("skill"); err == nil {
		config.Skill = skill
	}
	if days, err := cmd.Flags().GetInt("days"); err == nil {
		config.Days = days
	}
	if withReport, err := cmd.Flags().GetBool("report"); err == nil {
		config.Report = withReport
	}
	if dryRun, err := cmd.Flags().GetBool("dry-run"); err == nil {
		config.DryRun = dryRun
	}

	return config
}

func runAnalyzeCmd(ctx context.Context, config *AnalyzeConfig) {
	ws, err := newWorkspace()
	if err != nil {
		presenter.Error(err, "Failed to initialize workspace")
		os.Exit(1)
	}

	days := config.Days
	if days <= 0 {
		days = ws.cfg.WindowDays
	}

	skills, err := ws.registry.List()
	if err != nil {
		presenter.Error(err, "Failed to list skills")
		os.Exit(1)
	}
	if config.Skill != "" {
		if !containsSkill(skills, config.Skill) {
			presenter.Error(fmt.Errorf("skill %q not found", config.Skill), "Unknown skill")
			os.Exit(1)
		}
		skills = []string{config.Skill}
	}
	if len(skills) == 0 {
		presenter.Info("No skills found, nothing to analyze")
		return
	}

	now := ws.cfg.Now()
	reader := telemetry.NewReader(ws.cfg.LogsDir(), ws.cfg.Location())
	records := reader.Window(days, now)
	metrics := telemetry.Aggregate(records, skills)

	docs := make(map[string][]byte, len(skills))
	for _, id := range skills {
		if content, err := ws.registry.Read(id); err == nil {
			docs[id] = content
		}
	}

	corpus := &detector.Corpus{Metrics: metrics, Docs: docs, WindowDays: days}
	opportunities := detector.Run(ctx, detector.Defaults(), skills, corpus)

	presenter.Section(fmt.Sprintf("Analyzed %d skill(s) over %d day(s)", len(skills), days))
	if len(opportunities) == 0 {
		presenter.Success("No improvement opportunities detected")
		return
	}

	factory := proposal.NewFactory(ws.cfg, uuid.NewString())
	byLevel := map[version.Level]int{}
	var created []*proposal.Proposal
	for _, opp := range opportunities {
		p := factory.Create(opp)
		byLevel[p.ChangeLevel]++
		created = append(created, p)

		if !config.DryRun {
			if err := ws.store.Save(p); err != nil {
				presenter.Error(err, fmt.Sprintf("Failed to save proposal for %s", opp.Skill))
				continue
			}
		}
		presenter.Info(fmt.Sprintf("%s %s: %s", presenter.Level(p.ChangeLevel), p.SkillID, p.Title))
	}

	presenter.Separator()
	for _, level := range []version.Level{version.Patch, version.Minor, version.Major} {
		if byLevel[level] > 0 {
			presenter.Info(fmt.Sprintf("%d %s proposal(s)", byLevel[level], level))
		}
	}
	if config.DryRun {
		presenter.Warning("Dry run: nothing was persisted")
	} else {
		presenter.Success(fmt.Sprintf("Created %d proposal(s)", len(created)))
	}

	if config.Report {
		content := report.Generate(metrics, opportunities, created, days, now)
		if config.DryRun {
			fmt.Println(content)
			return
		}
		path, err := report.Save(content, ws.cfg.ReportsDir(), now)
		if err != nil {
			presenter.Error(err, "Failed to write report")
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Report written to %s", path))
	}
}

func containsSkill(skills []string, id string) bool {
	for _, s := range skills {
		if s == id {
			return true
		}
	}
	return false
}
