package report

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evolvekit/skillevo/pkg/detector"
	"github.com/evolvekit/skillevo/pkg/proposal"
	"github.com/evolvekit/skillevo/pkg/telemetry"
	"github.com/evolvekit/skillevo/pkg/version"
)

var reportTime = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

func TestGenerateSections(t *testing.T) {
	metrics := map[string]*telemetry.Metrics{
		"pine-lead": {
			Skill:           "pine-lead",
			InvocationCount: 12,
			SuccessCount:    10,
			FailureCount:    2,
			AvgDurationMS:   340,
		},
		"pine-outreach": {Skill: "pine-outreach"},
	}
	opportunities := []detector.Opportunity{
		{
			Skill:    "pine-lead",
			Type:     "error_fix",
			Level:    version.Minor,
			Reason:   "success rate 83.3% across 12 invocations",
			Evidence: []string{"timeout contacting enrichment service"},
		},
		{
			Skill:  "pine-outreach",
			Type:   "unused",
			Level:  version.Major,
			Reason: "no invocations in the window",
		},
	}
	proposals := []*proposal.Proposal{
		{
			ID:          "pine-lead-20260115093000-deadbeef",
			SkillID:     "pine-lead",
			ChangeLevel: version.Minor,
			Status:      proposal.StatusPending,
			Title:       "Fix recurring enrichment timeouts",
		},
		{
			ID:          "pine-outreach-20260115093001-cafef00d",
			SkillID:     "pine-outreach",
			ChangeLevel: version.Patch,
			Status:      proposal.StatusPending,
			Title:       "Sharpen trigger phrasing",
		},
	}

	out := Generate(metrics, opportunities, proposals, 7, reportTime)

	assert.Contains(t, out, "# Skill Evolution Report - 2026-W03")
	assert.Contains(t, out, "observation window 7 days")

	// Usage table sorted by invocations, zero-invocation rate is n/a.
	assert.Contains(t, out, "| pine-lead | 12 | 83.3% | 0 | 340ms |")
	assert.Contains(t, out, "| pine-outreach | 0 | n/a | 0 | 0ms |")

	// Opportunities grouped by type with evidence nested.
	assert.Contains(t, out, "### error_fix")
	assert.Contains(t, out, "- **pine-lead** (minor): success rate 83.3%")
	assert.Contains(t, out, "  - timeout contacting enrichment service")
	assert.Contains(t, out, "### unused")

	// Next steps call out the patch batch and the confirmation-gated item.
	assert.Contains(t, out, "2 pending proposal(s)")
	assert.Contains(t, out, "--level patch --all")
	assert.Contains(t, out, "1 proposal(s) need explicit confirmation")
}

func TestGenerateEmpty(t *testing.T) {
	out := Generate(nil, nil, nil, 7, reportTime)

	assert.Contains(t, out, "No skills found.")
	assert.Contains(t, out, "No improvement opportunities detected.")
	assert.Contains(t, out, "No proposals in the window.")
	assert.Contains(t, out, "Nothing pending.")
}

func TestSaveWritesWeeklyFile(t *testing.T) {
	dir := t.TempDir()

	path, err := Save("# report\n", dir, reportTime)
	require.NoError(t, err)
	assert.Equal(t, dir+"/weekly-2026-W03.md", path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# report\n", string(content))
}
