package proposal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/evolvekit/skillevo/pkg/config"
	"github.com/evolvekit/skillevo/pkg/detector"
)

// SourceTypeAnalysis marks proposals generated by a telemetry analysis run.
const SourceTypeAnalysis = "session-analysis"

// Factory templates opportunities into proposals. Creation is
// deterministic per opportunity type; unknown types fall back to a single
// generic review operation carrying the raw reason.
type Factory struct {
	cfg       *config.Config
	sessionID string
	now       func() time.Time
}

// NewFactory creates a factory. sessionID stamps the analysis run into
// proposal provenance.
func NewFactory(cfg *config.Config, sessionID string) *Factory {
	return &Factory{cfg: cfg, sessionID: sessionID, now: cfg.Now}
}

// Create builds a pending proposal from an opportunity. Expiry defaults to
// creation plus the configured expiry window.
func (f *Factory) Create(opp detector.Opportunity) *Proposal {
	now := f.now()

	p := &Proposal{
		ID:              f.generateID(opp, now),
		SkillID:         opp.Skill,
		CreatedAt:       f.cfg.Timestamp(now),
		ExpiresAt:       f.cfg.Timestamp(now.AddDate(0, 0, f.cfg.ExpiryDays)),
		ChangeLevel:     opp.Level,
		Status:          StatusPending,
		SourceType:      SourceTypeAnalysis,
		SourceSessionID: f.sessionID,
		SourceTrigger:   opp.Type,
		Impact:          []string{opp.Reason},
	}

	switch opp.Type {
	case detector.TypeTriggerImprovement:
		p.Title = fmt.Sprintf("Improve %s trigger wording", opp.Skill)
		p.Description = fmt.Sprintf("Analysis found that the skill was %s.\nReview and extend the trigger description.", opp.Reason)
		if len(opp.Evidence) > 0 {
			p.Description += "\nRecent attempts: " + strings.Join(opp.Evidence, "; ")
		}
		p.Changes = []Change{{
			File:    "SKILL.md",
			Kind:    KindReview,
			Section: "frontmatter.description",
			Note:    "review trigger coverage",
		}}

	case detector.TypeErrorFix:
		p.Title = fmt.Sprintf("Fix %s error patterns", opp.Skill)
		p.Description = fmt.Sprintf("Analysis found that the %s.", opp.Reason)
		if len(opp.Evidence) > 0 {
			p.Description += "\nCommon errors: " + strings.Join(opp.Evidence, "; ")
		}
		p.Changes = []Change{{
			File:    "SKILL.md",
			Kind:    KindReview,
			Section: "workflow",
			Note:    "review the workflow and its error handling",
		}}

	case detector.TypeUnused:
		p.Title = fmt.Sprintf("Review unused skill %s", opp.Skill)
		p.Description = fmt.Sprintf("The skill was %s.\nConsider improving its triggers, merging it, or retiring it.", opp.Reason)
		p.Changes = []Change{{
			File: "SKILL.md",
			Kind: KindReview,
			Note: "consider improving, merging, or retiring",
		}}

	case detector.TypeMissingEvolution:
		p.Title = fmt.Sprintf("Add evolution metadata to %s", opp.Skill)
		p.Description = "The skill has no evolution metadata and cannot participate in automatic evolution."
		p.Changes = []Change{{
			File:    "SKILL.md",
			Kind:    KindAdd,
			Section: SectionFrontmatter,
			Add:     "evolution:\n  enabled: true\n  version: \"1.0.0\"\n  auto_evolve: patch",
		}}

	case detector.TypeMissingSection:
		p.Title = fmt.Sprintf("Add %s section to %s", opp.Section, opp.Skill)
		p.Description = fmt.Sprintf("The skill is missing the recommended %s section.", opp.Section)
		p.Changes = []Change{{
			File: "SKILL.md",
			Kind: KindAdd,
			Add:  fmt.Sprintf("## %s\n\n_To be filled in._", opp.Section),
		}}

	default:
		p.Title = fmt.Sprintf("Improvement proposal for %s", opp.Skill)
		p.Description = opp.Reason
		if p.Description == "" {
			p.Description = "needs review"
		}
		p.Changes = []Change{{
			File: "SKILL.md",
			Kind: KindReview,
			Note: opp.Reason,
		}}
	}

	return p
}

// generateID derives a collision-resistant id from the skill id, a
// second-resolution timestamp, and a short hash over the opportunity
// content plus nanosecond time, so concurrent runs under clock skew do
// not collide.
func (f *Factory) generateID(opp detector.Opportunity, now time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", opp.Skill, opp.Type, opp.Reason, now.UnixNano())))
	return fmt.Sprintf("%s-%s-%s", opp.Skill, now.Format("20060102150405"), hex.EncodeToString(sum[:4]))
}
