// Package detector hosts the pluggable opportunity-detection contract and
// the built-in rules. Detectors are pure functions over the current
// telemetry and document snapshot; they never mutate anything. Each
// detector is isolated: a failing or panicking detector degrades to zero
// findings and never aborts the run.
package detector

import (
	"context"
	"fmt"

	"github.com/evolvekit/skillevo/pkg/logger"
	"github.com/evolvekit/skillevo/pkg/telemetry"
	"github.com/evolvekit/skillevo/pkg/version"
)

// Opportunity types produced by the built-in detectors.
const (
	TypeUnused             = "unused"
	TypeErrorFix           = "error_fix"
	TypeTriggerImprovement = "trigger_improvement"
	TypeMissingDescription = "missing_description"
	TypeMissingEvolution   = "missing_evolution_metadata"
	TypeMissingSection     = "missing_section"
)

// Opportunity is a detected, unpersisted signal that a skill may need
// improvement, with a suggested risk tier.
type Opportunity struct {
	Skill    string
	Rule     string
	Type     string
	Level    version.Level
	Reason   string
	Evidence []string
	// Section names the missing section for missing_section findings.
	Section string
}

// Corpus is the read-only snapshot detectors run against.
type Corpus struct {
	Metrics    map[string]*telemetry.Metrics
	Docs       map[string][]byte
	WindowDays int
}

// Detector maps a skill's current state to zero or more opportunities.
type Detector interface {
	Name() string
	Detect(skillID string, c *Corpus) ([]Opportunity, error)
}

// Defaults returns the built-in detector set in its canonical order.
func Defaults() []Detector {
	return []Detector{
		&TriggerDetector{},
		&ErrorRateDetector{},
		&UnusedDetector{},
		&ContentDetector{},
	}
}

// Run executes every detector against every skill. A detector's error or
// panic is logged and contributes zero findings; the remaining detectors
// still run (one detector's failure must not abort others).
func Run(ctx context.Context, detectors []Detector, skills []string, corpus *Corpus) []Opportunity {
	log := logger.G(ctx)

	var findings []Opportunity
	for _, d := range detectors {
		for _, skill := range skills {
			found, err := detectOne(d, skill, corpus)
			if err != nil {
				log.WithField("detector", d.Name()).WithField("skill", skill).
					WithError(err).Warn("detector failed, skipping its findings")
				continue
			}
			findings = append(findings, found...)
		}
	}
	return findings
}

func detectOne(d Detector, skill string, corpus *Corpus) (found []Opportunity, err error) {
	defer func() {
		if r := recover(); r != nil {
			found = nil
			err = fmt.Errorf("detector panicked: %v", r)
		}
	}()
	return d.Detect(skill, corpus)
}
