package platform

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the content of a docsync.yaml workspace file.
// Every key is optional; missing keys keep the defaults.
type FileConfig struct {
	Debounce         string   `yaml:"debounce"`
	ProtectionWindow string   `yaml:"protection_window"`
	BatchWindow      string   `yaml:"batch_window"`
	Versioning       *bool    `yaml:"versioning"`
	Ignore           []string `yaml:"ignore"`
	EventBuffer      int      `yaml:"event_buffer"`
	ReadOnly         bool     `yaml:"read_only"`
	SystemDir        string   `yaml:"system_dir"`
}

// LoadConfig reads a docsync.yaml file and converts it into options.
// A missing file yields no options and no error.
func LoadConfig(path string) ([]Option, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return fc.Options()
}

// Options converts the file configuration into functional options.
func (fc FileConfig) Options() ([]Option, error) {
	var opts []Option

	durations := []struct {
		key   string
		value string
		apply func(time.Duration) Option
	}{
		{"debounce", fc.Debounce, WithDebounce},
		{"protection_window", fc.ProtectionWindow, WithProtectionWindow},
		{"batch_window", fc.BatchWindow, WithBatchWindow},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.key, d.value, err)
		}
		if parsed < 0 {
			return nil, fmt.Errorf("invalid %s %q: must not be negative", d.key, d.value)
		}
		opts = append(opts, d.apply(parsed))
	}

	if fc.Versioning != nil {
		opts = append(opts, WithVersioning(*fc.Versioning))
	}
	if fc.Ignore != nil {
		opts = append(opts, WithIgnorePatterns(fc.Ignore...))
	}
	if fc.EventBuffer > 0 {
		opts = append(opts, WithEventBuffer(fc.EventBuffer))
	}
	if fc.ReadOnly {
		opts = append(opts, WithReadOnly(true))
	}
	if fc.SystemDir != "" {
		opts = append(opts, WithSystemDir(fc.SystemDir))
	}
	return opts, nil
}
