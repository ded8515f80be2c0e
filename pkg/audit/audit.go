// Package audit keeps the append-only, day-partitioned ledger of version
// transitions. The ledger is the system of record for evolution history,
// independent of proposal store integrity: one JSON object per line, one
// file per day, never rewritten in place.
package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/evolvekit/skillevo/pkg/version"
)

// ActionApplied is the ledger action recorded for every applied proposal.
const ActionApplied = "evolution_applied"

// Event is one immutable ledger entry recording a version transition.
type Event struct {
	Timestamp     string        `json:"timestamp"`
	Action        string        `json:"action"`
	Skill         string        `json:"skill"`
	VersionBefore string        `json:"version_before"`
	VersionAfter  string        `json:"version_after"`
	ChangeLevel   version.Level `json:"change_level"`
	Description   string        `json:"description"`
}

// Log appends events to day-partitioned files under dir.
type Log struct {
	dir string
	loc *time.Location
}

// NewLog creates the ledger directory if needed. Day file names are
// resolved in loc.
func NewLog(dir string, loc *time.Location) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create audit log directory")
	}
	return &Log{dir: dir, loc: loc}, nil
}

// Append writes one event to the current day's file.
func (l *Log) Append(event Event, now time.Time) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal audit event")
	}

	path := l.dayPath(now)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to open audit log %s", path)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return errors.Wrapf(err, "failed to append audit event to %s", path)
	}
	return nil
}

// Day returns all events recorded on the given day, skipping malformed
// lines. A missing day file yields no events.
func (l *Log) Day(day time.Time) ([]Event, error) {
	f, err := os.Open(l.dayPath(day))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to open audit log")
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	return events, errors.Wrap(scanner.Err(), "failed to read audit log")
}

func (l *Log) dayPath(day time.Time) string {
	return filepath.Join(l.dir, day.In(l.loc).Format("2006-01-02")+".jsonl")
}
