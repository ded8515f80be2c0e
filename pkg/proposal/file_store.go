package proposal

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/evolvekit/skillevo/pkg/logger"
)

// FileStore keeps one YAML record per proposal in a flat directory.
// Writes go through a temporary file and rename, so a crashed write never
// leaves a torn record. Expiry is lazy: pending proposals past their
// expires_at flip to expired (and are persisted) at read time.
type FileStore struct {
	dir string
	now func() time.Time
}

// NewFileStore creates the store directory if needed.
func NewFileStore(dir string, now func() time.Time) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create proposal store directory")
	}
	if now == nil {
		now = time.Now
	}
	return &FileStore{dir: dir, now: now}, nil
}

// Save persists a proposal record, replacing any previous version.
func (s *FileStore) Save(p *Proposal) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "failed to marshal proposal")
	}

	path := s.path(p.ID)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write temporary proposal file")
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to rename temporary proposal file")
	}
	return nil
}

// Load retrieves a proposal by id, lazily expiring it when its window has
// passed.
func (s *FileStore) Load(id string) (*Proposal, error) {
	p, err := s.read(s.path(id))
	if err != nil {
		return nil, err
	}
	return s.sweep(p), nil
}

// List returns matching proposals ordered by creation time ascending,
// ties broken by id for determinism.
func (s *FileStore) List(opts ListOptions) ([]*Proposal, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read proposal store directory")
	}

	var proposals []*Proposal
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		p, err := s.read(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			logger.L.WithField("file", entry.Name()).WithError(err).Warn("skipping unreadable proposal record")
			continue
		}
		p = s.sweep(p)

		if opts.Status != "" && p.Status != opts.Status {
			continue
		}
		if opts.Skill != "" && p.SkillID != opts.Skill {
			continue
		}
		proposals = append(proposals, p)
	}

	sort.Slice(proposals, func(i, j int) bool {
		ti, tj := proposals[i].CreatedTime(), proposals[j].CreatedTime()
		if ti.Equal(tj) {
			return proposals[i].ID < proposals[j].ID
		}
		return ti.Before(tj)
	})
	return proposals, nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".yaml")
}

func (s *FileStore) read(path string) (*Proposal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "%s", strings.TrimSuffix(filepath.Base(path), ".yaml"))
		}
		return nil, errors.Wrap(err, "failed to read proposal file")
	}

	var p Proposal
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal proposal record")
	}
	return &p, nil
}

// sweep applies lazy expiry. A persistence failure during the flip is
// logged but does not block the read; the flip is retried on the next one.
func (s *FileStore) sweep(p *Proposal) *Proposal {
	if p.Status != StatusPending || !p.ExpiredAt(s.now()) {
		return p
	}
	if err := p.Transition(StatusExpired); err != nil {
		return p
	}
	if err := s.Save(p); err != nil {
		logger.L.WithField("proposal", p.ID).WithError(err).Warn("failed to persist lazy expiry")
	}
	return p
}
