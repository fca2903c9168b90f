// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Practice    PracticeConfig    `toml:"practice"`
	Recognition RecognitionConfig `toml:"recognition"`
	Speech      SpeechConfig      `toml:"speech"`
	Log         LogConfig         `toml:"log"`
}

// PracticeConfig maps drill-related settings.
type PracticeConfig struct {
	Words         *int     `toml:"words"`
	MaxAttempts   *int     `toml:"max-attempts"`
	ListenTimeout *string  `toml:"listen-timeout"`
	FocusWeak     *bool    `toml:"focus-weak"`
	WeakTop       *int     `toml:"weak-top"`
	WeakFactor    *float64 `toml:"weak-factor"`
	WeakWindow    *int     `toml:"weak-window"`
}

// RecognitionConfig maps speech recognition settings.
type RecognitionConfig struct {
	Command      *string `toml:"command"`
	Lang         *string `toml:"lang"`
	RestartDelay *string `toml:"restart-delay"`
	ErrorBackoff *string `toml:"error-backoff"`
	StopGrace    *string `toml:"stop-grace"`
}

// SpeechConfig maps speech synthesis settings.
type SpeechConfig struct {
	Command       *string  `toml:"command"`
	Voice         *string  `toml:"voice"`
	Locale        *string  `toml:"locale"`
	Rate          *float64 `toml:"rate"`
	BackupTimeout *string  `toml:"backup-timeout"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level  *string `toml:"level"`
	Format *string `toml:"format"`
	Path   *string `toml:"path"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

// Duration parses an optional duration value such as "300ms". A nil value
// yields fallback.
func Duration(key string, value *string, fallback time.Duration) (time.Duration, error) {
	if value == nil {
		return fallback, nil
	}
	d, err := time.ParseDuration(*value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
