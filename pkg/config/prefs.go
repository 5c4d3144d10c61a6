// Package config loads the host process's persisted preferences (spec.md
// §6.2) and command-line surface (§6.3).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Preferences is the persisted user preferences file (spec.md §6.2).
// Missing fields in an on-disk file take these defaults, so adding a field
// later is backwards compatible.
type Preferences struct {
	Providers         []string `json:"providers" mapstructure:"providers"`
	DarkMode          bool     `json:"dark_mode" mapstructure:"dark_mode"`
	AudioInputDevice  *string  `json:"audio_input_device" mapstructure:"audio_input_device"`
	AudioOutputDevice *string  `json:"audio_output_device" mapstructure:"audio_output_device"`
}

func defaultPreferences() Preferences {
	return Preferences{
		Providers: []string{},
		DarkMode:  false,
	}
}

// DefaultPath returns the preferences file path under the user's config
// directory; exact location is implementation-defined per spec.md §6.2.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "mofa-studio", "preferences.json"), nil
}

// LoadPreferences reads path via viper (so a missing file or missing fields
// silently fall back to defaults) and unmarshals into Preferences.
func LoadPreferences(path string) (*Preferences, error) {
	prefs := defaultPreferences()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetDefault("providers", prefs.Providers)
	v.SetDefault("dark_mode", prefs.DarkMode)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return &prefs, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return &prefs, nil
		}
		return nil, fmt.Errorf("config: read preferences %q: %w", path, err)
	}

	if err := v.Unmarshal(&prefs); err != nil {
		return nil, fmt.Errorf("config: parse preferences %q: %w", path, err)
	}
	return &prefs, nil
}

// Save persists prefs to path as JSON, creating parent directories as
// needed.
func (p *Preferences) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create preferences dir: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal preferences: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write preferences %q: %w", path, err)
	}
	return nil
}
