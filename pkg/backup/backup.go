// Package backup manages immutable pre-mutation snapshots of skill
// documents. A snapshot is keyed by (skill, version) and is write-once:
// a key collision gets a timestamp suffix rather than overwriting, so
// every snapshot ever taken remains retrievable. Snapshots are the sole
// rollback mechanism; restoring one brings back the pre-mutation version
// string verbatim, so no version decrement is ever needed.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound reports a missing snapshot.
var ErrNotFound = errors.New("backup snapshot not found")

// Manager creates and restores snapshots under a single directory.
type Manager struct {
	dir string
	now func() time.Time
}

// NewManager creates the backups directory if needed.
func NewManager(dir string, now func() time.Time) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create backups directory")
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{dir: dir, now: now}, nil
}

// Create writes a snapshot of content keyed by (skill, version) and
// returns its path. Existing snapshots are never overwritten: on
// collision the name gets a timestamp suffix, and a nanosecond suffix if
// even that collides.
func (m *Manager) Create(skill, version string, content []byte) (string, error) {
	path := filepath.Join(m.dir, fmt.Sprintf("%s-v%s.md", skill, version))
	if exists(path) {
		stamp := m.now().Format("20060102150405")
		path = filepath.Join(m.dir, fmt.Sprintf("%s-v%s-%s.md", skill, version, stamp))
	}
	if exists(path) {
		path = filepath.Join(m.dir, fmt.Sprintf("%s-v%s-%d.md", skill, version, m.now().UnixNano()))
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create backup %s", path)
	}
	defer f.Close()

	if _, err := f.Write(content); err != nil {
		return "", errors.Wrapf(err, "failed to write backup %s", path)
	}
	return path, nil
}

// Read returns the snapshot bytes at path, or ErrNotFound.
func (m *Manager) Read(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "failed to read backup %s", path)
	}
	return content, nil
}

// Restore overwrites the live document at livePath with the snapshot
// bytes. It fails with ErrNotFound when the snapshot is missing.
func (m *Manager) Restore(path, livePath string) error {
	content, err := m.Read(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(livePath, content, 0o644); err != nil {
		return errors.Wrapf(err, "failed to restore %s", livePath)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
