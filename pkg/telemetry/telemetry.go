// Package telemetry reads the day-partitioned skill usage ledger and
// aggregates it into per-skill metrics for the opportunity detectors.
// The ledger is external input: one JSON object per line in
// <logs>/YYYY-MM-DD.jsonl files, written by whatever invokes skills.
package telemetry

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/evolvekit/skillevo/pkg/logger"
)

// Actions recorded by the usage ledger.
const (
	ActionInvoked = "invoked"
	ActionSkipped = "skipped"
)

// Record is one usage event.
type Record struct {
	Timestamp  string  `json:"timestamp"`
	Skill      string  `json:"skill"`
	Action     string  `json:"action"`
	Result     string  `json:"result,omitempty"`
	Error      string  `json:"error,omitempty"`
	DurationMS float64 `json:"duration_ms,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// Reader loads usage records from a day-partitioned log directory.
type Reader struct {
	logsDir string
	loc     *time.Location
}

// NewReader creates a Reader over logsDir. Day file names are resolved in
// loc, matching the fixed offset used when the ledger was written.
func NewReader(logsDir string, loc *time.Location) *Reader {
	return &Reader{logsDir: logsDir, loc: loc}
}

// Window returns all records from the last `days` day files, today
// included. Missing day files and malformed lines are skipped.
func (r *Reader) Window(days int, now time.Time) []Record {
	var records []Record
	day := now.In(r.loc)

	for i := 0; i < days; i++ {
		path := filepath.Join(r.logsDir, day.AddDate(0, 0, -i).Format("2006-01-02")+".jsonl")
		records = append(records, r.readFile(path)...)
	}
	return records
}

func (r *Reader) readFile(path string) []Record {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			logger.L.WithField("file", path).WithError(err).Debug("skipping malformed telemetry line")
			continue
		}
		records = append(records, record)
	}
	return records
}

// Metrics is the aggregated usage of one skill over the observation window.
type Metrics struct {
	Skill           string
	InvocationCount int
	SuccessCount    int
	FailureCount    int
	SkipCount       int
	AvgDurationMS   float64
	LastInvoked     string
	ErrorPatterns   []string
	TriggerAttempts []string
}

// SuccessRate returns successes as a percentage of invocations, 0 when the
// skill was never invoked.
func (m *Metrics) SuccessRate() float64 {
	if m.InvocationCount == 0 {
		return 0
	}
	return float64(m.SuccessCount) / float64(m.InvocationCount) * 100
}

// Aggregate folds records into per-skill metrics. Every listed skill gets
// an entry even with zero records, so silence is observable. Records for
// unknown skills are ignored.
func Aggregate(records []Record, skills []string) map[string]*Metrics {
	metrics := make(map[string]*Metrics, len(skills))
	for _, skill := range skills {
		metrics[skill] = &Metrics{Skill: skill}
	}

	for _, record := range records {
		m, ok := metrics[record.Skill]
		if !ok {
			continue
		}

		switch record.Action {
		case ActionInvoked:
			m.InvocationCount++
			m.LastInvoked = record.Timestamp

			result := record.Result
			if result == "" {
				result = "success"
			}
			if result == "success" {
				m.SuccessCount++
			} else {
				m.FailureCount++
				if record.Error != "" && !contains(m.ErrorPatterns, record.Error) {
					m.ErrorPatterns = append(m.ErrorPatterns, record.Error)
				}
			}

			if record.DurationMS > 0 {
				total := m.AvgDurationMS*float64(m.InvocationCount-1) + record.DurationMS
				m.AvgDurationMS = total / float64(m.InvocationCount)
			}

		case ActionSkipped:
			m.SkipCount++
			if record.Reason != "" {
				m.TriggerAttempts = append(m.TriggerAttempts, record.Reason)
			}
		}
	}
	return metrics
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
