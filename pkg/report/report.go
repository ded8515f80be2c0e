// Package report renders weekly evolution summaries as markdown.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/evolvekit/skillevo/pkg/detector"
	"github.com/evolvekit/skillevo/pkg/proposal"
	"github.com/evolvekit/skillevo/pkg/telemetry"
)

// maxUsageRows caps the usage table at the most-invoked skills.
const maxUsageRows = 20

// Generate renders the weekly report for the observation window ending at
// now.
func Generate(metrics map[string]*telemetry.Metrics, opportunities []detector.Opportunity, proposals []*proposal.Proposal, days int, now time.Time) string {
	var b strings.Builder

	year, week := now.ISOWeek()
	fmt.Fprintf(&b, "# Skill Evolution Report - %d-W%02d\n\n", year, week)
	fmt.Fprintf(&b, "Generated %s, observation window %d days.\n\n", now.Format("2006-01-02"), days)

	writeUsage(&b, metrics)
	writeOpportunities(&b, opportunities)
	writeProposals(&b, proposals)
	writeNextSteps(&b, proposals)

	return b.String()
}

// Save writes the report under reportsDir as weekly-YYYY-Www.md and
// returns the path.
func Save(content, reportsDir string, now time.Time) (string, error) {
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create reports directory")
	}
	year, week := now.ISOWeek()
	path := filepath.Join(reportsDir, fmt.Sprintf("weekly-%d-W%02d.md", year, week))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write report")
	}
	return path, nil
}

func writeUsage(b *strings.Builder, metrics map[string]*telemetry.Metrics) {
	b.WriteString("## Usage\n\n")
	if len(metrics) == 0 {
		b.WriteString("No skills found.\n\n")
		return
	}

	rows := make([]*telemetry.Metrics, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, m)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].InvocationCount != rows[j].InvocationCount {
			return rows[i].InvocationCount > rows[j].InvocationCount
		}
		return rows[i].Skill < rows[j].Skill
	})
	if len(rows) > maxUsageRows {
		rows = rows[:maxUsageRows]
	}

	b.WriteString("| Skill | Invocations | Success Rate | Skips | Avg Duration |\n")
	b.WriteString("|-------|-------------|--------------|-------|--------------|\n")
	for _, m := range rows {
		rate := "n/a"
		if m.InvocationCount > 0 {
			rate = fmt.Sprintf("%.1f%%", m.SuccessRate())
		}
		fmt.Fprintf(b, "| %s | %d | %s | %d | %.0fms |\n",
			m.Skill, m.InvocationCount, rate, m.SkipCount, m.AvgDurationMS)
	}
	b.WriteString("\n")
}

func writeOpportunities(b *strings.Builder, opportunities []detector.Opportunity) {
	b.WriteString("## Opportunities\n\n")
	if len(opportunities) == 0 {
		b.WriteString("No improvement opportunities detected.\n\n")
		return
	}

	byType := map[string][]detector.Opportunity{}
	var order []string
	for _, opp := range opportunities {
		if _, seen := byType[opp.Type]; !seen {
			order = append(order, opp.Type)
		}
		byType[opp.Type] = append(byType[opp.Type], opp)
	}

	for _, typ := range order {
		fmt.Fprintf(b, "### %s\n\n", typ)
		for _, opp := range byType[typ] {
			fmt.Fprintf(b, "- **%s** (%s): %s\n", opp.Skill, opp.Level, opp.Reason)
			for _, ev := range opp.Evidence {
				fmt.Fprintf(b, "  - %s\n", ev)
			}
		}
		b.WriteString("\n")
	}
}

func writeProposals(b *strings.Builder, proposals []*proposal.Proposal) {
	b.WriteString("## Proposals\n\n")
	if len(proposals) == 0 {
		b.WriteString("No proposals in the window.\n\n")
		return
	}

	b.WriteString("| ID | Skill | Level | Status | Title |\n")
	b.WriteString("|----|-------|-------|--------|-------|\n")
	for _, p := range proposals {
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s |\n",
			p.ID, p.SkillID, p.ChangeLevel, p.Status, p.Title)
	}
	b.WriteString("\n")
}

func writeNextSteps(b *strings.Builder, proposals []*proposal.Proposal) {
	b.WriteString("## Next Steps\n\n")

	pending := 0
	confirm := 0
	for _, p := range proposals {
		if p.Status != proposal.StatusPending {
			continue
		}
		pending++
		if p.ChangeLevel.String() != "patch" {
			confirm++
		}
	}

	if pending == 0 {
		b.WriteString("Nothing pending. Run `skillevo analyze` after the next batch of sessions.\n")
		return
	}
	fmt.Fprintf(b, "- %d pending proposal(s). Review with `skillevo proposals list`.\n", pending)
	if pending > confirm {
		b.WriteString("- Apply patch-level updates with `skillevo apply --level patch --all`.\n")
	}
	if confirm > 0 {
		fmt.Fprintf(b, "- %d proposal(s) need explicit confirmation: `skillevo apply --proposal <id> --confirm`.\n", confirm)
	}
}
