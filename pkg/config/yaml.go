package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadYAML loads configuration from a YAML file. Decoding is strict:
// unknown keys are an error, so a misspelled option surfaces instead of
// silently keeping its default. An empty file leaves target untouched.
func LoadYAML(path string, target interface{}) error {
	file, err := os.Open(path) // #nosec G304 -- path comes from the operator's flag or test.
	if err != nil {
		return fmt.Errorf("open YAML config %s: %w", path, err)
	}
	defer file.Close()

	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode YAML config %s: %w", path, err)
	}
	return nil
}

// SaveYAML writes configuration to a YAML file with restrictive
// permissions.
func SaveYAML(path string, cfg interface{}) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal YAML config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write YAML config %s: %w", path, err)
	}
	return nil
}
