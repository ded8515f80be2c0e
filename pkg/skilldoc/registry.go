// Package skilldoc models skill definition documents: a SKILL.md file per
// skill directory, beginning with a delimited YAML header that carries at
// minimum a semantic-version field and an update-date field, followed by
// free-form markdown sections. The package provides a registry for
// locating documents on disk, a document model for header and changelog
// rewrites, and exact-match mutation helpers used by the change engine.
package skilldoc

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// SkillFileName is the canonical document name inside a skill directory.
const SkillFileName = "SKILL.md"

// ErrNotFound reports a missing skill or skill document.
var ErrNotFound = errors.New("skill not found")

// Directories excluded from skill listings.
var reservedDirs = map[string]bool{
	"_archived": true,
	"_shared":   true,
}

// Registry locates skill documents under a skills directory.
type Registry struct {
	skillsDir string
}

// NewRegistry creates a registry rooted at skillsDir.
func NewRegistry(skillsDir string) *Registry {
	return &Registry{skillsDir: skillsDir}
}

// List returns the ids of all skills that have a document, sorted.
func (r *Registry) List() ([]string, error) {
	entries, err := os.ReadDir(r.skillsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read skills directory")
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() || reservedDirs[entry.Name()] {
			continue
		}
		if _, err := os.Stat(filepath.Join(r.skillsDir, entry.Name(), SkillFileName)); err == nil {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Path returns the document path for a skill id.
func (r *Registry) Path(id string) string {
	return filepath.Join(r.skillsDir, id, SkillFileName)
}

// Read returns the document bytes for a skill, or ErrNotFound.
func (r *Registry) Read(id string) ([]byte, error) {
	content, err := os.ReadFile(r.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "skill %q", id)
		}
		return nil, errors.Wrapf(err, "failed to read skill %q", id)
	}
	return content, nil
}

// Write replaces the document for a skill in place.
func (r *Registry) Write(id string, content []byte) error {
	path := r.Path(id)
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrNotFound, "skill %q", id)
		}
		return errors.Wrapf(err, "failed to stat skill directory for %q", id)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write skill %q", id)
	}
	return nil
}

// HasSection reports whether the document body contains a markdown section
// with the given heading.
func HasSection(content, heading string) bool {
	return strings.Contains(content, "## "+heading)
}
