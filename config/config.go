package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/deskfs/internal/util"
	"github.com/brettbedarf/deskfs/kv"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Config contains runtime configuration values for a deskfs session.
type Config struct {
	MountOptions
	LogLvl      util.LogLevel // Minimum log level (Default Info)
	Backend     kv.Backend    // Snapshot store: memory, file, badger or sqlite (Default file)
	DataPath    string        // Directory (file, badger) or database file (sqlite) for the store (Default .deskfs)
	SnapshotKey string        // Key the tree snapshot is stored under (Default prathvios-files)
	MetricsAddr string        // Address to serve Prometheus metrics on; empty disables (Default "")
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	LogLvl       *int     `yaml:"verbose,omitempty" json:"verbose,omitempty"` // CLI verbosity 1 (error) to 5 (trace)
	Backend      *string  `yaml:"backend,omitempty" json:"backend,omitempty"`
	DataPath     *string  `yaml:"data_path,omitempty" json:"data_path,omitempty"`
	SnapshotKey  *string  `yaml:"snapshot_key,omitempty" json:"snapshot_key,omitempty"`
	MetricsAddr  *string  `yaml:"metrics_addr,omitempty" json:"metrics_addr,omitempty"`
	Debug        *bool    `yaml:"fuse_debug,omitempty" json:"fuse_debug,omitempty"`
	FsName       *string  `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name         *string  `yaml:"name,omitempty" json:"name,omitempty"`
	AttrTimeout  *float64 `yaml:"attr_timeout,omitempty" json:"attr_timeout,omitempty"`
	EntryTimeout *float64 `yaml:"entry_timeout,omitempty" json:"entry_timeout,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName:       DefaultFsName,
			Name:         DefaultName,
			AttrTimeout:  DefaultAttrTimeout,
			EntryTimeout: DefaultEntryTimeout,
		},
		LogLvl:      DefaultLogLvl,
		Backend:     DefaultBackend,
		DataPath:    DefaultDataPath,
		SnapshotKey: DefaultSnapshotKey,
		MetricsAddr: DefaultMetricsAddr,
	}
}

// NewConfig creates a Config from defaults with override applied.
// A nil override yields the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.LogLvl != nil {
		c.LogLvl = util.LevelFromVerbosity(*override.LogLvl)
	}
	if override.Backend != nil {
		c.Backend = kv.Backend(strings.ToLower(*override.Backend))
	}
	if override.DataPath != nil {
		c.DataPath = *override.DataPath
	}
	if override.SnapshotKey != nil {
		c.SnapshotKey = *override.SnapshotKey
	}
	if override.MetricsAddr != nil {
		c.MetricsAddr = *override.MetricsAddr
	}
	if override.Debug != nil {
		c.Debug = *override.Debug
	}
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.AttrTimeout != nil {
		c.AttrTimeout = *override.AttrTimeout
	}
	if override.EntryTimeout != nil {
		c.EntryTimeout = *override.EntryTimeout
	}
}

// Validate checks the merged configuration
func (c *Config) Validate() error {
	backends := make([]any, len(kv.Backends))
	for i, b := range kv.Backends {
		backends[i] = b
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(backends...)),
		validation.Field(&c.DataPath, validation.When(c.Backend != kv.BackendMemory, validation.Required)),
		validation.Field(&c.SnapshotKey, validation.Required),
		validation.Field(&c.MountOptions),
	)
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Merge(override)
	return cfg, nil
}
