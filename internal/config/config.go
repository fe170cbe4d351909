// Package config provides configuration management for murdev.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/mur-run/murdev/internal/cloud"
)

// CurrentSchemaVersion is the latest config schema version.
// Increment this when adding config changes that need migration.
const CurrentSchemaVersion = 2

const (
	DefaultServerURL = cloud.DefaultServerURL
	DefaultVersion   = cloud.DefaultVersion
)

// Config represents the murdev configuration structure.
type Config struct {
	SchemaVersion int            `yaml:"schema_version" toml:"schema_version"`
	Server        ServerConfig   `yaml:"server" toml:"server"`
	Identity      IdentityConfig `yaml:"identity" toml:"identity"`
	Device        DeviceConfig   `yaml:"device" toml:"device"`
	Log           LogConfig      `yaml:"log" toml:"log"`
}

// ServerConfig locates the backend.
type ServerConfig struct {
	URL     string `yaml:"url" toml:"url"`         // e.g. https://api.mycroft.ai
	Version string `yaml:"version" toml:"version"` // API version path segment, e.g. v1
}

// IdentityConfig locates the stored device credentials.
type IdentityConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// DeviceConfig describes what the device reports about itself.
type DeviceConfig struct {
	VersionFile      string `yaml:"version_file,omitempty" toml:"version_file,omitempty"`
	EnclosureVersion string `yaml:"enclosure_version,omitempty" toml:"enclosure_version,omitempty"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug | info | warn | error
	Format string `yaml:"format" toml:"format"` // text | json
}

// Dir returns the murdev home directory (~/.murdev).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".murdev"), nil
}

// ConfigPath returns the path to the config file (~/.murdev/config.yaml).
func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load returns the effective configuration: the file at path (ConfigPath
// when empty) merged with defaults, then MURDEV_* environment overrides.
// Home-relative paths are expanded.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.Identity.Path = expandHome(cfg.Identity.Path)
	cfg.Device.VersionFile = expandHome(cfg.Device.VersionFile)
	return cfg, nil
}

// Read parses the config file without environment overrides, for callers
// that write it back. A missing file yields the defaults. Files ending in
// .toml are parsed as TOML, anything else as YAML.
func Read(path string) (*Config, error) {
	path, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	cfg := &Config{}
	if err := unmarshal(path, data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}
	return MergeConfig(cfg, Default()), nil
}

// Save writes the config to path (ConfigPath when empty).
func (c *Config) Save(path string) error {
	path, err := resolvePath(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	var content []byte
	if isTOML(path) {
		data, err := toml.Marshal(c)
		if err != nil {
			return fmt.Errorf("cannot serialize config: %w", err)
		}
		content = append([]byte("# murdev configuration\n\n"), data...)
	} else {
		data, err := yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("cannot serialize config: %w", err)
		}
		content = append([]byte("# murdev configuration\n\n"), data...)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("cannot write config: %w", err)
	}
	return nil
}

// Set updates a single dotted key, e.g. "server.url".
func (c *Config) Set(key, value string) error {
	switch key {
	case "server.url":
		c.Server.URL = strings.TrimRight(value, "/")
	case "server.version":
		c.Server.Version = value
	case "identity.path":
		c.Identity.Path = value
	case "device.version_file":
		c.Device.VersionFile = value
	case "device.enclosure_version":
		c.Device.EnclosureVersion = value
	case "log.level":
		c.Log.Level = value
	case "log.format":
		c.Log.Format = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		SchemaVersion: CurrentSchemaVersion,
		Server: ServerConfig{
			URL:     DefaultServerURL,
			Version: DefaultVersion,
		},
		Identity: IdentityConfig{
			Path: "~/.murdev/identity.json",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// applyEnv lets MURDEV_* variables override the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("MURDEV_SERVER_URL"); v != "" {
		c.Server.URL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("MURDEV_SERVER_VERSION"); v != "" {
		c.Server.Version = v
	}
	if v := os.Getenv("MURDEV_IDENTITY_PATH"); v != "" {
		c.Identity.Path = v
	}
	if v := os.Getenv("MURDEV_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func resolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return ConfigPath()
}

func unmarshal(path string, data []byte, cfg *Config) error {
	if isTOML(path) {
		return toml.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
