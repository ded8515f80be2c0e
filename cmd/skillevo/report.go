package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evolvekit/skillevo/pkg/detector"
	"github.com/evolvekit/skillevo/pkg/presenter"
	"github.com/evolvekit/skillevo/pkg/proposal"
	"github.com/evolvekit/skillevo/pkg/report"
	"github.com/evolvekit/skillevo/pkg/telemetry"
)

// ReportConfig holds configuration for the report command
type ReportConfig struct {
	Days int
}

// NewReportConfig creates a new ReportConfig with default values
func NewReportConfig() *ReportConfig {
	return &ReportConfig{}
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the weekly evolution report",
	Long: `Report renders usage, detected opportunities, and proposal state over the
observation window into a weekly markdown file under the reports directory.

Example:
  skillevo report
  skillevo report --days 14`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getReportConfigFromFlags(cmd)
		runReportCmd(ctx, config)
	},
}

func init() {
	defaults := NewReportConfig()
	reportCmd.Flags().Int("days", defaults.Days, "Observation window in days (default from config)")
}

// getReportConfigFromFlags extracts report configuration from command flags
func getReportConfigFromFlags(cmd *cobra.Command) *ReportConfig {
	config := NewReportConfig()
	if days, err := cmd.Flags().GetInt("days"); err == nil {
		config.Days = days
	}
	return config
}

func runReportCmd(ctx context.Context, config *ReportConfig) {
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

	now := ws.cfg.Now()
	reader := telemetry.NewReader(ws.cfg.LogsDir(), ws.cfg.Location())
	metrics := telemetry.Aggregate(reader.Window(days, now), skills)

	docs := make(map[string][]byte, len(skills))
	for _, id := range skills {
		if content, err := ws.registry.Read(id); err == nil {
			docs[id] = content
		}
	}
	corpus := &detector.Corpus{Metrics: metrics, Docs: docs, WindowDays: days}
	opportunities := detector.Run(ctx, detector.Defaults(), skills, corpus)

	proposals, err := ws.store.List(proposal.ListOptions{})
	if err != nil {
		presenter.Error(err, "Failed to list proposals")
		os.Exit(1)
	}

	content := report.Generate(metrics, opportunities, proposals, days, now)
	path, err := report.Save(content, ws.cfg.ReportsDir(), now)
	if err != nil {
		presenter.Error(err, "Failed to write report")
		os.Exit(1)
	}
	presenter.Success(fmt.Sprintf("Report written to %s", path))
}
