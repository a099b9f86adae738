package ctcdecode

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/happyhackingspace/ctcdecode/ctc"
)

// LoadConfig reads a YAML decoder configuration. Fields missing from the
// file keep their ctc.DefaultConfig() values.
func LoadConfig(path string) (*ctc.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ctcdecode: %w", err)
	}
	cfg := ctc.DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("ctcdecode: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// SaveConfig writes cfg as YAML.
func SaveConfig(cfg *ctc.Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("ctcdecode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("ctcdecode: %w", err)
	}
	return nil
}
