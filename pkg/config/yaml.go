package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadYAML parses a YAML file into the provided struct. Unlike Load it is
// not cached: files are small and callers decide when to re-read them.
// Environment-tagged fields are untouched; combine with Load when a struct
// carries both `yaml` and `env` tags, letting the environment win.
func LoadYAML[T any](path string, v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoadYAML works like LoadYAML but panics on failure.
func MustLoadYAML[T any](path string, v *T) {
	if err := LoadYAML(path, v); err != nil {
		panic(fmt.Sprintf("failed to load yaml configuration: %v", err))
	}
}
