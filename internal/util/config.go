// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aplane-algo/icxsign/internal/fsutil"

	"gopkg.in/yaml.v3"
)

// DataDirEnv overrides the default data directory.
const DataDirEnv = "ICXSIGN_DATA"

// DefaultMaxDepth mirrors the encoder's default nesting limit.
const DefaultMaxDepth = 64

// Config holds icxsign configuration settings
type Config struct {
	KeystoreDir    string `yaml:"keystore_dir" description:"Directory of keystore files (relative to data dir)" default:"keystore"`
	DefaultAddress string `yaml:"default_address" description:"Address used when --from is not given"`
	MaxDepth       int    `yaml:"max_depth" description:"Maximum value nesting depth when encoding" default:"64"`
	CheckOrder     bool   `yaml:"check_order" description:"Reject unordered mappings in bare values too"`
	AuditLog       string `yaml:"audit_log" description:"Signing audit log path (relative to data dir, empty disables)" default:"audit.log"`
	NetworkID      string `yaml:"network_id" description:"Default nid added to transactions that omit it" default:"0x1"`
}

// DefaultConfig returns the default configuration for runtime use.
func DefaultConfig() Config {
	return Config{
		KeystoreDir: "keystore",
		MaxDepth:    DefaultMaxDepth,
		AuditLog:    "audit.log",
		NetworkID:   "0x1",
	}
}

// GetDataDir returns the icxsign data directory.
// Resolution order: --data-dir flag > ICXSIGN_DATA env var > ~/.icxsign
func GetDataDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envDir := os.Getenv(DataDirEnv); envDir != "" {
		return envDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".icxsign")
}

// GetConfigPath returns the path to the config file in the data directory.
// Returns empty string if dataDir is empty.
func GetConfigPath(dataDir string) string {
	if dataDir == "" {
		return ""
	}
	return filepath.Join(dataDir, "config.yaml")
}

// LoadConfig loads config.yaml from dataDir and resolves relative paths
// against it. A missing file yields the defaults.
func LoadConfig(dataDir string) (Config, error) {
	config, err := LoadConfigFromPath(GetConfigPath(dataDir))
	if err != nil {
		return config, err
	}
	config.KeystoreDir = ResolvePath(config.KeystoreDir, dataDir)
	if config.AuditLog != "" {
		config.AuditLog = ResolvePath(config.AuditLog, dataDir)
	}
	return config, nil
}

// LoadConfigFromPath loads configuration from the specified path.
// If path is empty or the file doesn't exist, returns default config.
func LoadConfigFromPath(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay config file values
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.MaxDepth < 0 {
		return Config{}, fmt.Errorf("invalid max_depth %d (must be >= 0)", config.MaxDepth)
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = DefaultMaxDepth
	}
	if config.KeystoreDir == "" {
		config.KeystoreDir = DefaultConfig().KeystoreDir
	}
	if config.DefaultAddress != "" && !strings.HasPrefix(config.DefaultAddress, "hx") {
		return Config{}, fmt.Errorf("invalid default_address %q (must start with hx)", config.DefaultAddress)
	}
	if config.NetworkID != "" && !strings.HasPrefix(config.NetworkID, "0x") {
		return Config{}, fmt.Errorf("invalid network_id %q (must be 0x-prefixed hex)", config.NetworkID)
	}
	return config, nil
}

// SaveConfig writes config as YAML to path, creating parent directories.
func SaveConfig(path string, config Config) error {
	data, err := yaml.Marshal(&config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := fsutil.MkdirAll(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := fsutil.WriteFile(path, data); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ResolvePath expands a leading ~ and makes relative paths relative to baseDir.
func ResolvePath(path, baseDir string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
