// Package version derives semantic versions for skill documents. Version
// bumps are keyed by the change level of the proposal being applied:
// patch bumps the patch component, minor bumps minor and resets patch,
// major bumps major and resets both. Unparseable versions fall back to
// the "1.0.0" baseline before the bump rule is applied.
package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// Baseline is the version assumed for documents without a parseable
// semantic version.
const Baseline = "1.0.0"

// Level is the magnitude of a change, ordered by escalation.
type Level int

const (
	// Patch changes auto-apply without confirmation.
	Patch Level = iota
	// Minor changes require confirmation or a delayed auto-apply window.
	Minor
	// Major changes always require explicit confirmation.
	Major
)

// String returns the wire representation of the level.
func (l Level) String() string {
	switch l {
	case Patch:
		return "patch"
	case Minor:
		return "minor"
	case Major:
		return "major"
	default:
		return "unknown"
	}
}

// MarshalYAML serializes the level as its string form.
func (l Level) MarshalYAML() (interface{}, error) {
	return l.String(), nil
}

// UnmarshalYAML parses the level from its string form.
func (l *Level) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalJSON serializes the level as its string form.
func (l Level) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", l.String())), nil
}

// UnmarshalJSON parses the level from its string form.
func (l *Level) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "patch":
		return Patch, nil
	case "minor":
		return Minor, nil
	case "major":
		return Major, nil
	default:
		return Patch, errors.Errorf("unknown change level %q", s)
	}
}

// Normalize returns the canonical form of v, or Baseline when v is not a
// valid semantic version.
func Normalize(v string) string {
	parsed, err := semver.StrictNewVersion(strings.TrimSpace(v))
	if err != nil {
		return Baseline
	}
	return parsed.String()
}

// Increment returns the next version after applying the bump rule for the
// given level. The input is normalized first, so malformed versions bump
// from the baseline.
func Increment(v string, level Level) string {
	parsed, err := semver.StrictNewVersion(strings.TrimSpace(v))
	if err != nil {
		parsed = semver.MustParse(Baseline)
	}

	var next semver.Version
	switch level {
	case Major:
		next = parsed.IncMajor()
	case Minor:
		next = parsed.IncMinor()
	default:
		next = parsed.IncPatch()
	}
	return next.String()
}

// Compare returns -1, 0, or 1 when a is less than, equal to, or greater
// than b. Malformed inputs are normalized to the baseline first.
func Compare(a, b string) int {
	return semver.MustParse(Normalize(a)).Compare(semver.MustParse(Normalize(b)))
}
