// Package config materializes the viper-backed configuration into one
// explicit Config value constructed at startup and passed to every
// component. No other package reads configuration or ambient paths
// directly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Telegram holds the notification sink settings. Notifications are
// fire-and-forget; an empty BotToken disables them.
type Telegram struct {
	BotToken string
	ChatID   string
}

// Config is the assembled runtime configuration.
type Config struct {
	// SkillsDir holds one directory per skill, each containing SKILL.md.
	SkillsDir string
	// EvolutionDir is the root of the durable evolution state
	// (logs, pending proposals, backups, reports).
	EvolutionDir string
	// WindowDays is the telemetry observation window for analysis runs.
	WindowDays int
	// ExpiryDays is how long a proposal stays actionable after creation.
	ExpiryDays int
	// StrictApply fails an apply when any change operation fails,
	// instead of the default best-effort policy.
	StrictApply bool
	// TimezoneOffset is the fixed UTC offset used for all persisted
	// timestamps, e.g. "+08:00".
	TimezoneOffset string
	Telegram       Telegram
}

// Load builds a Config from the current viper state.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve home directory")
	}

	viper.SetDefault("skills_dir", filepath.Join(home, ".skillevo", "skills"))
	viper.SetDefault("evolution_dir", filepath.Join(home, ".skillevo", "evolution"))
	viper.SetDefault("window_days", 7)
	viper.SetDefault("expiry_days", 7)
	viper.SetDefault("apply.strict", false)
	viper.SetDefault("timezone_offset", "+08:00")

	cfg := &Config{
		SkillsDir:      viper.GetString("skills_dir"),
		EvolutionDir:   viper.GetString("evolution_dir"),
		WindowDays:     viper.GetInt("window_days"),
		ExpiryDays:     viper.GetInt("expiry_days"),
		StrictApply:    viper.GetBool("apply.strict"),
		TimezoneOffset: viper.GetString("timezone_offset"),
		Telegram: Telegram{
			BotToken: viper.GetString("telegram.bot_token"),
			ChatID:   viper.GetString("telegram.chat_id"),
		},
	}

	if _, err := parseOffset(cfg.TimezoneOffset); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config rooted at baseDir, used by tests and dry runs.
func Default(baseDir string) *Config {
	return &Config{
		SkillsDir:      filepath.Join(baseDir, "skills"),
		EvolutionDir:   filepath.Join(baseDir, "evolution"),
		WindowDays:     7,
		ExpiryDays:     7,
		TimezoneOffset: "+08:00",
	}
}

// LogsDir is the day-partitioned telemetry and audit ledger directory.
func (c *Config) LogsDir() string { return filepath.Join(c.EvolutionDir, "logs") }

// PendingDir holds one durable record per proposal.
func (c *Config) PendingDir() string { return filepath.Join(c.EvolutionDir, "pending") }

// BackupsDir holds immutable pre-mutation snapshots.
func (c *Config) BackupsDir() string { return filepath.Join(c.EvolutionDir, "backups") }

// ReportsDir holds generated weekly reports.
func (c *Config) ReportsDir() string { return filepath.Join(c.EvolutionDir, "reports") }

// LocksDir holds per-skill advisory lock files.
func (c *Config) LocksDir() string { return filepath.Join(c.EvolutionDir, "locks") }

// EnsureDirs creates the evolution directory tree.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.LogsDir(), c.PendingDir(), c.BackupsDir(), c.ReportsDir(), c.LocksDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create directory %s", dir)
		}
	}
	return nil
}

// Location returns the fixed-offset zone all persisted timestamps use.
func (c *Config) Location() *time.Location {
	loc, err := parseOffset(c.TimezoneOffset)
	if err != nil {
		return time.Local
	}
	return loc
}

// Now returns the current time in the configured fixed-offset zone.
func (c *Config) Now() time.Time {
	return time.Now().In(c.Location())
}

// Timestamp formats t as a fixed-offset RFC3339 timestamp.
func (c *Config) Timestamp(t time.Time) string {
	return t.In(c.Location()).Format(time.RFC3339)
}

func parseOffset(offset string) (*time.Location, error) {
	var sign rune
	var hh, mm int
	if _, err := fmt.Sscanf(offset, "%c%02d:%02d", &sign, &hh, &mm); err != nil {
		return nil, errors.Errorf("invalid timezone offset %q", offset)
	}
	seconds := hh*3600 + mm*60
	switch sign {
	case '+':
	case '-':
		seconds = -seconds
	default:
		return nil, errors.Errorf("invalid timezone offset %q", offset)
	}
	return time.FixedZone("UTC"+offset, seconds), nil
}
