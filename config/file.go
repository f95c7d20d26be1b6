package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile overlays the configuration file at path onto cfg.
// Fields missing from the file keep their current values.
// The format is chosen by extension: .json, .yaml or .yml.
func LoadFile(path string, cfg *Config) error {
	if path == "" {
		return fmt.Errorf("config file path is empty")
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist: %s", path)
	}

	// #nosec G304 - config file path comes from the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q (expected .json, .yaml or .yml)", filepath.Ext(path))
	}

	mode, err := ParseMode(string(cfg.Mode))
	if err != nil {
		return fmt.Errorf("invalid mode in config file: %w", err)
	}
	cfg.Mode = mode
	return nil
}
