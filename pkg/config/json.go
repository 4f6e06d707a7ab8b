package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadJSON loads configuration from a JSON file. Like LoadYAML, decoding
// is strict: unknown keys are rejected.
func LoadJSON(path string, target interface{}) error {
	file, err := os.Open(path) // #nosec G304 -- path comes from the operator's flag or test.
	if err != nil {
		return fmt.Errorf("open JSON config %s: %w", path, err)
	}
	defer file.Close()

	dec := json.NewDecoder(file)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("decode JSON config %s: %w", path, err)
	}
	return nil
}
