// Package config provides configuration types and defaults for growth.
package config

import (
	"fmt"
	"time"
)

// Config holds all configuration for growth.
type Config struct {
	Routine     RoutineConfig     `yaml:"routine" mapstructure:"routine"`
	Session     SessionConfig     `yaml:"session" mapstructure:"session"`
	Timer       TimerConfig       `yaml:"timer" mapstructure:"timer"`
	Quick       QuickConfig       `yaml:"quick" mapstructure:"quick"`
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
	Intent      IntentConfig      `yaml:"intent" mapstructure:"intent"`
	Progress    ProgressConfig    `yaml:"progress" mapstructure:"progress"`
	LogRotation LogRotationConfig `yaml:"log_rotation" mapstructure:"log_rotation"`

	// Sources lists the config files LoadConfig read, in merge order.
	Sources []string `yaml:"-" mapstructure:"-"`
}

// RoutineConfig selects the routine file and the day to practice.
type RoutineConfig struct {
	File string `yaml:"file" mapstructure:"file"`
	Day  int    `yaml:"day" mapstructure:"day"` // 1-based day number
}

// SessionConfig holds progression settings.
type SessionConfig struct {
	AutoProgression   bool          `yaml:"auto_progression" mapstructure:"auto_progression"`
	AutoProgressDelay time.Duration `yaml:"auto_progress_delay" mapstructure:"auto_progress_delay"` // Pause between a completion and the next method's start
}

// TimerConfig holds timer engine settings.
type TimerConfig struct {
	TickInterval time.Duration `yaml:"tick_interval" mapstructure:"tick_interval"`
	// MaxRecommended is the default overexertion threshold for stopwatch
	// methods that do not set their own (0 = no warning).
	MaxRecommended time.Duration `yaml:"max_recommended" mapstructure:"max_recommended"`
	Persist        bool          `yaml:"persist" mapstructure:"persist"` // Write the background record to Paths.Timer
}

// QuickConfig holds quick practice defaults.
type QuickConfig struct {
	Duration time.Duration `yaml:"duration" mapstructure:"duration"`
	Name     string        `yaml:"name" mapstructure:"name"`
}

// PathsConfig holds file paths for state, logs, and socket.
type PathsConfig struct {
	State    string `yaml:"state" mapstructure:"state"`       // Session progress (crash recovery)
	Timer    string `yaml:"timer" mapstructure:"timer"`       // Background persistence record
	Log      string `yaml:"log" mapstructure:"log"`           // Event log (JSON lines)
	Socket   string `yaml:"socket" mapstructure:"socket"`     // Control socket
	PID      string `yaml:"pid" mapstructure:"pid"`           // Daemon PID file
	Progress string `yaml:"progress" mapstructure:"progress"` // Progress database
	Intent   string `yaml:"intent" mapstructure:"intent"`     // Widget action file
}

// IntentConfig holds settings for the widget action file watcher.
type IntentConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	StaleAfter time.Duration `yaml:"stale_after" mapstructure:"stale_after"` // Actions older than this are ignored
	Debounce   time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

// ProgressConfig holds settings for the progress database.
type ProgressConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// LogRotationConfig holds settings for log file rotation.
// Used for the TUI debug log (lumberjack-based automatic rotation).
type LogRotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool `yaml:"compress" mapstructure:"compress"`
}

// DefaultAutoProgressDelay leaves the completion feedback on screen briefly
// before the next method starts.
const DefaultAutoProgressDelay = 3 * time.Second

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Routine: RoutineConfig{
			File: ".growth/routine.yaml",
			Day:  1,
		},
		Session: SessionConfig{
			AutoProgression:   true,
			AutoProgressDelay: DefaultAutoProgressDelay,
		},
		Timer: TimerConfig{
			TickInterval:   250 * time.Millisecond,
			MaxRecommended: 0,
			Persist:        true,
		},
		Quick: QuickConfig{
			Duration: 5 * time.Minute,
			Name:     "Quick practice",
		},
		Paths: PathsConfig{
			State:    ".growth/state.json",
			Timer:    ".growth/timer.json",
			Log:      ".growth/events.jsonl",
			Socket:   ".growth/growth.sock",
			PID:      ".growth/growth.pid",
			Progress: ".growth/progress.db",
			Intent:   ".growth/intent.json",
		},
		Intent: IntentConfig{
			Enabled:    true,
			StaleAfter: 30 * time.Second,
			Debounce:   100 * time.Millisecond,
		},
		Progress: ProgressConfig{
			Enabled: true,
		},
		LogRotation: LogRotationConfig{
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
	}
}

// Validate rejects settings the engine cannot work with.
func (c *Config) Validate() error {
	if c.Routine.Day <= 0 {
		return fmt.Errorf("routine.day must be positive, got %d", c.Routine.Day)
	}
	if c.Session.AutoProgressDelay < 0 {
		return fmt.Errorf("session.auto_progress_delay must not be negative")
	}
	if c.Timer.TickInterval <= 0 {
		return fmt.Errorf("timer.tick_interval must be positive")
	}
	if c.Timer.MaxRecommended < 0 {
		return fmt.Errorf("timer.max_recommended must not be negative")
	}
	if c.Quick.Duration <= 0 {
		return fmt.Errorf("quick.duration must be positive")
	}
	if c.Intent.StaleAfter <= 0 {
		return fmt.Errorf("intent.stale_after must be positive")
	}
	return nil
}
