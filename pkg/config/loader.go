package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// configFileName is the single YAML file read from the config directory.
const configFileName = "crucible.yaml"

// Initialize loads, merges, and validates ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load crucible.yaml from configDir (optional — defaults apply if absent)
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge user values over built-in defaults
//  5. Validate the merged result
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	log.Info("Configuration initialized successfully",
		"generators_per_wave", cfg.Orchestrator.GeneratorCountPerWave,
		"llm_endpoint", cfg.LLM.Endpoint)
	return cfg, nil
}

// load reads the YAML file (if present) and merges it over defaults.
func load(configDir string) (*Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(configDir, configFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Info("No configuration file found, using built-in defaults", "path", path)
			return cfg, nil
		}
		return nil, NewLoadError(path, err)
	}

	data = ExpandEnv(data)

	var user Config
	if err := yaml.Unmarshal(data, &user); err != nil {
		return nil, NewLoadError(path, err)
	}

	// User-provided non-zero values override defaults field by field.
	if err := mergo.Merge(cfg, &user, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge configuration: %w", err)
	}

	return cfg, nil
}
