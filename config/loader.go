package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadYAMLConfig builds a config with fn and overlays the YAML file at
// configPath on it. ${VAR} references in the file are expanded from the
// environment first. An empty path or a missing file yields the defaults.
func LoadYAMLConfig[T any](configPath string, fn func() *T) (*T, error) {
	config := fn()

	if configPath == "" {
		return config, nil
	}
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}

	yamlFile, err := os.ReadFile(configPath)
	if err != nil {
		return config, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(yamlFile))), config); err != nil {
		return config, fmt.Errorf("failed to parse config %s: %w", configPath, err)
	}
	return config, nil
}

// LoadEnv loads variables from a .env file without overriding ones
// already set. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}
