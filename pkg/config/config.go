// Package config loads the per-device service configuration and resolves
// the on-disk layout (data directory, lock file).
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/pb-/lgtd-suite/pkg/crypto"
)

// Config is the per-device configuration file.
type Config struct {
	// AppID is this device's writer identity; it owns exactly one segment.
	AppID string `yaml:"app_id"`
	// LocalAuth is the shared secret for the local socket challenge.
	LocalAuth string `yaml:"local_auth"`
	// Key optionally holds the hex-encoded derived encryption key. When
	// absent the service prompts for the password instead.
	Key string `yaml:"key,omitempty"`
	// StateDir overrides the default state directory.
	StateDir string `yaml:"state_dir,omitempty"`
}

// DefaultPath returns the config file location: $LGTD_CONFIG or
// ~/.config/lgtd/config.yaml.
func DefaultPath() string {
	if v := os.Getenv("LGTD_CONFIG"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "lgtd", "config.yaml")
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if c.AppID == "" {
		return nil, fmt.Errorf("config %s: app_id is required", path)
	}
	if c.LocalAuth == "" {
		return nil, fmt.Errorf("config %s: local_auth is required", path)
	}
	return &c, nil
}

// stateDir resolves the state directory: explicit config value, then
// $LGTD_STATE, then ~/.local/share/lgtd.
func (c *Config) stateDir() string {
	if c.StateDir != "" {
		return c.StateDir
	}
	if v := os.Getenv("LGTD_STATE"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "lgtd-state"
	}
	return filepath.Join(home, ".local", "share", "lgtd")
}

// DataDir returns the directory holding one segment file per writer.
func (c *Config) DataDir() string { return filepath.Join(c.stateDir(), "data") }

// LockFile returns the advisory lock target guarding the data directory.
// Its modification is also the wake signal for file watchers.
func (c *Config) LockFile() string { return filepath.Join(c.stateDir(), "lock") }

// KeyBytes decodes the configured key, if any. The boolean reports whether
// a key was configured at all.
func (c *Config) KeyBytes() ([]byte, bool, error) {
	if c.Key == "" {
		return nil, false, nil
	}
	key, err := hex.DecodeString(c.Key)
	if err != nil {
		return nil, true, fmt.Errorf("config key is not valid hex: %w", err)
	}
	if len(key) != crypto.KeySize {
		return nil, true, fmt.Errorf("config key is %d bytes, want %d", len(key), crypto.KeySize)
	}
	return key, true, nil
}
