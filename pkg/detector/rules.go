package detector

import (
	"fmt"

	"github.com/evolvekit/skillevo/pkg/skilldoc"
	"github.com/evolvekit/skillevo/pkg/version"
)

// Thresholds from the observed evolution rules.
const (
	minInvocationsForRate = 5
	successRateFloor      = 70.0
	skipCountThreshold    = 3
	maxErrorEvidence      = 3
	maxTriggerEvidence    = 5
)

// requiredSections are the body sections every skill document should carry.
var requiredSections = []string{"Out of Scope", "Verification", "Integrations"}

// UnusedDetector flags skills with zero invocations in the observation
// window. Usage silence is the strongest signal and recommends a major
// review: improve triggers, merge, or retire.
type UnusedDetector struct{}

// Name identifies the detector in logs and provenance.
func (d *UnusedDetector) Name() string { return "unused" }

// Detect returns exactly one major opportunity for a silent skill.
func (d *UnusedDetector) Detect(skillID string, c *Corpus) ([]Opportunity, error) {
	m, ok := c.Metrics[skillID]
	if !ok || m.InvocationCount > 0 {
		return nil, nil
	}
	return []Opportunity{{
		Skill:  skillID,
		Rule:   d.Name(),
		Type:   TypeUnused,
		Level:  version.Major,
		Reason: fmt.Sprintf("not invoked in the past %d days", c.WindowDays),
	}}, nil
}

// ErrorRateDetector flags skills whose success rate degraded below the
// floor, once they have enough invocations for the rate to mean anything.
type ErrorRateDetector struct{}

// Name identifies the detector in logs and provenance.
func (d *ErrorRateDetector) Name() string { return "error-rate" }

// Detect returns one minor opportunity when the success rate is below the
// floor, carrying a sample of observed error patterns as evidence.
func (d *ErrorRateDetector) Detect(skillID string, c *Corpus) ([]Opportunity, error) {
	m, ok := c.Metrics[skillID]
	if !ok || m.InvocationCount < minInvocationsForRate || m.SuccessRate() >= successRateFloor {
		return nil, nil
	}
	return []Opportunity{{
		Skill:    skillID,
		Rule:     d.Name(),
		Type:     TypeErrorFix,
		Level:    version.Minor,
		Reason:   fmt.Sprintf("success rate is only %.1f%%", m.SuccessRate()),
		Evidence: head(m.ErrorPatterns, maxErrorEvidence),
	}}, nil
}

// TriggerDetector flags skills that keep getting skipped, suggesting the
// trigger wording needs review.
type TriggerDetector struct{}

// Name identifies the detector in logs and provenance.
func (d *TriggerDetector) Name() string { return "trigger" }

// Detect returns one patch opportunity when the skip count crosses the
// threshold, with recent trigger attempts as evidence.
func (d *TriggerDetector) Detect(skillID string, c *Corpus) ([]Opportunity, error) {
	m, ok := c.Metrics[skillID]
	if !ok || m.SkipCount <= skipCountThreshold {
		return nil, nil
	}
	return []Opportunity{{
		Skill:    skillID,
		Rule:     d.Name(),
		Type:     TypeTriggerImprovement,
		Level:    version.Patch,
		Reason:   fmt.Sprintf("skipped %d times", m.SkipCount),
		Evidence: head(m.TriggerAttempts, maxTriggerEvidence),
	}}, nil
}

// ContentDetector checks document quality: required frontmatter fields,
// evolution metadata, and the recommended body sections.
type ContentDetector struct{}

// Name identifies the detector in logs and provenance.
func (d *ContentDetector) Name() string { return "content" }

// Detect returns one opportunity per structural gap in the document.
func (d *ContentDetector) Detect(skillID string, c *Corpus) ([]Opportunity, error) {
	content, ok := c.Docs[skillID]
	if !ok {
		return nil, nil
	}

	var findings []Opportunity

	meta, err := skilldoc.ParseMeta(content)
	switch {
	case err != nil || meta.Description == "":
		findings = append(findings, Opportunity{
			Skill:  skillID,
			Rule:   d.Name(),
			Type:   TypeMissingDescription,
			Level:  version.Patch,
			Reason: "missing description field",
		})
		if err != nil {
			// Without frontmatter, evolution metadata is missing too.
			findings = append(findings, Opportunity{
				Skill:  skillID,
				Rule:   d.Name(),
				Type:   TypeMissingEvolution,
				Level:  version.Patch,
				Reason: "missing evolution metadata",
			})
		}
	}
	if err == nil && !meta.Evolution {
		findings = append(findings, Opportunity{
			Skill:  skillID,
			Rule:   d.Name(),
			Type:   TypeMissingEvolution,
			Level:  version.Patch,
			Reason: "missing evolution metadata",
		})
	}

	doc := skilldoc.Parse(content)
	present := make(map[string]bool)
	for _, heading := range doc.Sections() {
		present[heading] = true
	}
	for _, section := range requiredSections {
		if !present[section] {
			findings = append(findings, Opportunity{
				Skill:   skillID,
				Rule:    d.Name(),
				Type:    TypeMissingSection,
				Level:   version.Patch,
				Reason:  fmt.Sprintf("missing %s section", section),
				Section: section,
			})
		}
	}
	return findings, nil
}

func head(list []string, n int) []string {
	if len(list) <= n {
		return list
	}
	return list[:n]
}
