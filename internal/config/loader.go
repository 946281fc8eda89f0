package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads, expands, parses, defaults, and validates the configuration
// file at path. Environment variables of the form ${VAR} are expanded
// before the TOML parser sees the file, mirroring the gatherer's YAML
// loader's os.ExpandEnv pass.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	if _, err := toml.Decode(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}
