// Package config provides configuration types and defaults for mapedit.
package config

import (
	"fmt"
	"os"
	"os/user"
	"time"
)

// Config holds all configuration for mapedit.
type Config struct {
	Editing     EditingConfig     `yaml:"editing" mapstructure:"editing"`
	Lock        LockConfig        `yaml:"lock" mapstructure:"lock"`
	Save        SaveConfig        `yaml:"save" mapstructure:"save"`
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
	LogRotation LogRotationConfig `yaml:"log_rotation" mapstructure:"log_rotation"`
	Prompt      PromptConfig      `yaml:"prompt" mapstructure:"prompt"`
}

// SaveFolding decides whether fold state is part of the saved document.
type SaveFolding string

const (
	// SaveFoldingNever keeps folding transient: toggles never dirty the map
	// and the writer drops fold state.
	SaveFoldingNever SaveFolding = "never"
	// SaveFoldingAlways treats a fold toggle as a document change.
	SaveFoldingAlways SaveFolding = "always"
	// SaveFoldingIfMapChanged writes fold state, but a toggle alone does
	// not mark the map unsaved.
	SaveFoldingIfMapChanged SaveFolding = "if_map_changed"
)

// Valid reports whether s is a known policy.
func (s SaveFolding) Valid() bool {
	switch s {
	case SaveFoldingNever, SaveFoldingAlways, SaveFoldingIfMapChanged:
		return true
	}
	return false
}

// EditingConfig holds tree editing behavior.
type EditingConfig struct {
	EnableLeavesFolding bool        `yaml:"enable_leaves_folding" mapstructure:"enable_leaves_folding"` // Allow folding nodes without children
	SaveFolding         SaveFolding `yaml:"save_folding" mapstructure:"save_folding"`                   // never, always or if_map_changed
	UndoLevels          int         `yaml:"undo_levels" mapstructure:"undo_levels"`                     // Max undo steps per map
}

// LockConfig holds advisory file locking settings.
type LockConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	User            string        `yaml:"user" mapstructure:"user"`                         // Identity written into lock files
	SafetyPeriod    time.Duration `yaml:"safety_period" mapstructure:"safety_period"`       // Age after which an unrefreshed lock is stale
	RefreshInterval time.Duration `yaml:"refresh_interval" mapstructure:"refresh_interval"` // Keepalive period while holding a lock
}

// SaveConfig holds document writer settings.
type SaveConfig struct {
	OnlyIntrinsicallyNeededIDs bool `yaml:"only_intrinsically_needed_ids" mapstructure:"only_intrinsically_needed_ids"`
}

// PathsConfig holds file paths for preferences, logs and the event journal.
type PathsConfig struct {
	Preferences string `yaml:"preferences" mapstructure:"preferences"`
	Log         string `yaml:"log" mapstructure:"log"`
	Journal     string `yaml:"journal" mapstructure:"journal"` // Empty disables the journal
}

// LogRotationConfig holds settings for log file rotation.
type LogRotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool `yaml:"compress" mapstructure:"compress"`
}

// PromptConfig holds user interaction settings.
type PromptConfig struct {
	Interactive bool `yaml:"interactive" mapstructure:"interactive"` // Ask on a terminal; otherwise use AssumeYes
	AssumeYes   bool `yaml:"assume_yes" mapstructure:"assume_yes"`   // Answer for confirmations when not interactive
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Editing: EditingConfig{
			EnableLeavesFolding: false,
			SaveFolding:         SaveFoldingIfMapChanged,
			UndoLevels:          100,
		},
		Lock: LockConfig{
			Enabled:         true,
			User:            defaultUser(),
			SafetyPeriod:    5 * time.Minute,
			RefreshInterval: time.Minute,
		},
		Save: SaveConfig{
			OnlyIntrinsicallyNeededIDs: false,
		},
		Paths: PathsConfig{
			Preferences: defaultPreferencesPath(),
			Log:         "",
			Journal:     "",
		},
		LogRotation: LogRotationConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Prompt: PromptConfig{
			Interactive: true,
			AssumeYes:   false,
		},
	}
}

// Validate checks values that cannot be expressed by the types alone.
func (c *Config) Validate() error {
	if !c.Editing.SaveFolding.Valid() {
		return fmt.Errorf("editing.save_folding: unknown policy %q", c.Editing.SaveFolding)
	}
	if c.Editing.UndoLevels < 1 {
		return fmt.Errorf("editing.undo_levels: must be positive, got %d", c.Editing.UndoLevels)
	}
	if c.Lock.Enabled && c.Lock.User == "" {
		return fmt.Errorf("lock.user: required when locking is enabled")
	}
	if c.Lock.SafetyPeriod < 0 || c.Lock.RefreshInterval < 0 {
		return fmt.Errorf("lock: durations must not be negative")
	}
	if c.Lock.RefreshInterval > 0 && c.Lock.SafetyPeriod > 0 && c.Lock.RefreshInterval >= c.Lock.SafetyPeriod {
		return fmt.Errorf("lock.refresh_interval (%s) must be shorter than lock.safety_period (%s)",
			c.Lock.RefreshInterval, c.Lock.SafetyPeriod)
	}
	return nil
}

// defaultUser returns the login name, falling back to $USER.
func defaultUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}
