// Package config handles configuration loading, validation, and management for imbridge.
package config

import (
	"fmt"
	"maps"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete bridge configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// IBus connection configuration.
	IBus IBusConfig `toml:"ibus" json:"ibus" yaml:"ibus"`

	// Tables configures where input method tables are read from.
	Tables TablesConfig `toml:"tables" json:"tables" yaml:"tables"`

	// Engines are per-engine defaults, matched by glob pattern on the
	// engine name. Later entries override earlier ones.
	Engines []EngineConfig `toml:"engines" json:"engines" yaml:"engines"`

	// Sections hold engine preferences keyed by section name, such as
	// "engine/Table/ja/kana".
	Sections map[string]map[string]any `toml:"sections" json:"sections" yaml:"sections"`

	// mu protects concurrent access to the config.
	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: text or json.
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is where to write logs: stdout, stderr, file, or both.
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file path when Output includes a file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is the maximum age of rotated files.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`

	// Compress gzips rotated files.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`
}

// IBusConfig holds the IBus connection settings.
type IBusConfig struct {
	// Address overrides the daemon address discovery.
	Address string `toml:"address" json:"address" yaml:"address"`

	// EnginePrefix is the first component of advertised engine names.
	EnginePrefix string `toml:"engine_prefix" json:"engine_prefix" yaml:"engine_prefix"`

	// BusName is requested when started by ibus-daemon.
	BusName string `toml:"bus_name" json:"bus_name" yaml:"bus_name"`

	// UseIBusConfig reads engine preferences from the IBus configuration
	// service instead of the sections of this file.
	UseIBusConfig bool `toml:"use_ibus_config" json:"use_ibus_config" yaml:"use_ibus_config"`
}

// TablesConfig lists the table directories.
type TablesConfig struct {
	// Dirs are searched in order before the built-in tables.
	Dirs []string `toml:"dirs" json:"dirs" yaml:"dirs"`
}

// EngineConfig is a set of defaults for engines whose name matches
// Pattern. Unset fields leave earlier matches alone.
type EngineConfig struct {
	Pattern          string `toml:"pattern" json:"pattern" yaml:"pattern"`
	PreeditHighlight *bool  `toml:"preedit_highlight,omitempty" json:"preedit_highlight,omitempty" yaml:"preedit_highlight,omitempty"`
	Rank             *int   `toml:"rank,omitempty" json:"rank,omitempty" yaml:"rank,omitempty"`
	Symbol           string `toml:"symbol,omitempty" json:"symbol,omitempty" yaml:"symbol,omitempty"`
	LongName         string `toml:"longname,omitempty" json:"longname,omitempty" yaml:"longname,omitempty"`
}

// EngineDefaults is the resolved set of defaults for one engine.
type EngineDefaults struct {
	PreeditHighlight bool
	Rank             int
	Symbol           string
	LongName         string
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "imbridge.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Compress:   true,
		},
		IBus: IBusConfig{
			EnginePrefix: "table",
			BusName:      "org.freedesktop.IBus.Imbridge",
		},
		Tables: TablesConfig{
			Dirs: []string{filepath.Join(PlatformDataDir(), "tables")},
		},
		Sections: map[string]map[string]any{},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with IMBRIDGE_.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("IMBRIDGE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("IMBRIDGE_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("IMBRIDGE_IBUS_ADDRESS"); v != "" {
		c.IBus.Address = v
	}
	if v := os.Getenv("IMBRIDGE_TABLE_DIRS"); v != "" {
		c.Tables.Dirs = filepath.SplitList(v)
	}
}

// Section returns a copy of the values stored under name, nil if there
// are none.
func (c *Config) Section(name string) map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	values, ok := c.Sections[name]
	if !ok {
		return nil
	}
	return maps.Clone(values)
}

// EngineDefaults resolves the [[engines]] entries matching name.
func (c *Config) EngineDefaults(name string) EngineDefaults {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var d EngineDefaults
	for _, e := range c.Engines {
		if ok, err := path.Match(e.Pattern, name); err != nil || !ok {
			continue
		}
		if e.PreeditHighlight != nil {
			d.PreeditHighlight = *e.PreeditHighlight
		}
		if e.Rank != nil {
			d.Rank = *e.Rank
		}
		if e.Symbol != "" {
			d.Symbol = e.Symbol
		}
		if e.LongName != "" {
			d.LongName = e.LongName
		}
	}
	return d
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Config{
		Version: c.Version,
		Logging: c.Logging,
		IBus:    c.IBus,
		Tables:  TablesConfig{Dirs: append([]string{}, c.Tables.Dirs...)},
		Engines: append([]EngineConfig{}, c.Engines...),
	}
	clone.Sections = make(map[string]map[string]any, len(c.Sections))
	for name, values := range c.Sections {
		clone.Sections[name] = maps.Clone(values)
	}
	return clone
}

// SaveConfig writes cfg to path in the format implied by its extension.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	case ".json":
		data, err = encodeJSON(cfg)
	default:
		var b strings.Builder
		err = toml.NewEncoder(&b).Encode(cfg)
		data = []byte(b.String())
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
