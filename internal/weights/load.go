package weights

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML weight file and overlays it on Default.
// Keys absent from the file keep their default value; impact and energy
// entries are merged by kind.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read weights: %w", err)
	}
	return Parse(data)
}

// Parse overlays YAML bytes on Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse weights: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid weights: %w", err)
	}
	return cfg, nil
}
