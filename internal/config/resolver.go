package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Resolver finds the settings file and loads it.
// Priority order (highest to lowest):
// 1. CLI flag (--config)
// 2. Environment variable (WGTUNNEL_CONFIG)
// 3. Home settings: $WGTUNNEL_HOME/config.yaml, default ~/.wgtunnel/config.yaml
// 4. Built-in defaults
//
// WGTUNNEL_* variables are applied on top of whatever was loaded.
type Resolver struct {
	// CLIConfigPath is set via --config flag
	CLIConfigPath string
}

// NewResolver creates a new settings resolver
func NewResolver(cliConfigPath string) *Resolver {
	return &Resolver{CLIConfigPath: cliConfigPath}
}

// SettingsPath returns the settings file to use and whether it was named
// explicitly. An explicitly named file must exist.
func (r *Resolver) SettingsPath() (path string, explicit bool, err error) {
	// 1. CLI flag has highest priority
	if r.CLIConfigPath != "" {
		absPath, err := filepath.Abs(r.CLIConfigPath)
		if err != nil {
			return "", true, fmt.Errorf("failed to resolve CLI config path: %w", err)
		}
		if _, err := os.Stat(absPath); err != nil {
			return "", true, fmt.Errorf("settings file not found: %s", absPath)
		}
		return absPath, true, nil
	}

	// 2. Environment variable
	if envPath := os.Getenv(EnvConfigFile); envPath != "" {
		absPath, err := filepath.Abs(envPath)
		if err != nil {
			return "", true, fmt.Errorf("failed to resolve %s path: %w", EnvConfigFile, err)
		}
		if _, err := os.Stat(absPath); err != nil {
			return "", true, fmt.Errorf("settings file from %s not found: %s", EnvConfigFile, absPath)
		}
		return absPath, true, nil
	}

	// 3. Home directory
	home, err := GetHome()
	if err != nil {
		return "", false, err
	}
	return filepath.Join(home, SettingsFile), false, nil
}

// Resolve loads, overrides from the environment and validates the settings
func (r *Resolver) Resolve() (*Settings, error) {
	path, _, err := r.SettingsPath()
	if err != nil {
		return nil, err
	}

	settings, err := LoadSettings(path)
	if err != nil {
		return nil, err
	}
	settings.ApplyEnv()

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}
	return settings, nil
}
