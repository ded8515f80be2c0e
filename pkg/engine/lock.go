package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// staleLockAge is how old a lock file must be before another run may take
// it over. Applies are short batch operations; anything holding a lock
// this long is dead.
const staleLockAge = 10 * time.Minute

// ErrLocked reports that another run holds the skill's lock.
var ErrLocked = errors.New("skill is locked by another run")

// Lock is a per-skill advisory file lock guarding the snapshot+mutate
// window. It makes the at-most-one-writer-per-skill contract a property
// of the engine instead of external scheduling discipline.
type Lock struct {
	path string
}

// AcquireLock takes the advisory lock for a skill, removing a stale lock
// left behind by a dead run.
func AcquireLock(dir, skill string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create locks directory")
	}
	path := filepath.Join(dir, skill+".lock")

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d %s\n", os.Getpid(), time.Now().Format(time.RFC3339))
			f.Close()
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, errors.Wrapf(err, "failed to create lock for %s", skill)
		}

		info, statErr := os.Stat(path)
		if statErr != nil {
			// Holder released between our attempts; try again.
			continue
		}
		if time.Since(info.ModTime()) < staleLockAge {
			return nil, errors.Wrapf(ErrLocked, "skill %s", skill)
		}
		os.Remove(path)
	}
	return nil, errors.Wrapf(ErrLocked, "skill %s", skill)
}

// Release drops the lock.
func (l *Lock) Release() error {
	return errors.Wrap(os.Remove(l.path), "failed to release lock")
}
