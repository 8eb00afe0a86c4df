// Package config loads the workspace configuration from .apm/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// DirName is the workspace directory holding config and the database.
const DirName = ".apm"

// FileName is the config file inside DirName.
const FileName = "config.yaml"

// Config is the apm workspace configuration.
type Config struct {
	Version  string         `yaml:"version"`
	Actor    string         `yaml:"actor,omitempty"` // recorded on workflow events
	Role     string         `yaml:"role,omitempty"`  // default role for context assembly
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Assembly AssemblyConfig `yaml:"assembly"`
	Events   EventsConfig   `yaml:"events"`
	Logging  LoggingConfig  `yaml:"logging"`
	Catalog  CatalogConfig  `yaml:"catalog"`
}

// DatabaseConfig selects the SQLite driver and file.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite3 (cgo) or sqlite (pure Go)
	Path   string `yaml:"path"`   // relative paths resolve against the workspace
}

// CacheConfig configures the context cache.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// AssemblyConfig configures context assembly.
type AssemblyConfig struct {
	StepBudget time.Duration `yaml:"step_budget"`
}

// EventsConfig configures the event sink.
type EventsConfig struct {
	QueueSize    int           `yaml:"queue_size"`
	DrainTimeout time.Duration `yaml:"drain_timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// CatalogConfig points at the procedure and rule catalogs.
type CatalogConfig struct {
	Procedures string `yaml:"procedures"`
	Rules      string `yaml:"rules"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version: "1",
		Database: DatabaseConfig{
			Driver: "sqlite3",
			Path:   filepath.Join(DirName, "apm.db"),
		},
		Cache: CacheConfig{
			TTL:        15 * time.Minute,
			MaxEntries: 1024,
		},
		Assembly: AssemblyConfig{
			StepBudget: 50 * time.Millisecond,
		},
		Events: EventsConfig{
			QueueSize:    1000,
			DrainTimeout: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Catalog: CatalogConfig{
			Procedures: filepath.Join(DirName, "procedures.yaml"),
			Rules:      filepath.Join(DirName, "rules.yaml"),
		},
	}
}

// Path returns the config file path for a workspace directory.
func Path(dir string) string {
	return filepath.Join(dir, DirName, FileName)
}

// Load reads .apm/config.yaml from dir. A missing file yields defaults.
// Environment overrides are applied last.
func Load(fs afero.Fs, dir string) (*Config, error) {
	cfg := Default()

	data, err := afero.ReadFile(fs, Path(dir))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.fillZeroes()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to dir/.apm/config.yaml.
func Save(fs afero.Fs, dir string, cfg *Config) error {
	if err := fs.MkdirAll(filepath.Join(dir, DirName), 0755); err != nil {
		return fmt.Errorf("failed to create %s dir: %w", DirName, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := afero.WriteFile(fs, Path(dir), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects settings the runtime cannot honour.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q (expected sqlite3 or sqlite)", c.Database.Driver)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("unsupported log format %q (expected json or console)", c.Logging.Format)
	}
	if c.Cache.TTL < 0 || c.Assembly.StepBudget < 0 || c.Events.DrainTimeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// DatabasePath resolves the database path against the workspace directory.
func (c *Config) DatabasePath(dir string) string {
	if c.Database.Path == ":memory:" || filepath.IsAbs(c.Database.Path) {
		return c.Database.Path
	}
	return filepath.Join(dir, c.Database.Path)
}

// ResolvePath resolves a workspace-relative catalog path.
func (c *Config) ResolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("APM_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("APM_DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("APM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("APM_ROLE"); v != "" {
		c.Role = v
	}
	if v := os.Getenv("APM_ACTOR"); v != "" {
		c.Actor = v
	}
}

// fillZeroes restores defaults for values a partial file left empty.
func (c *Config) fillZeroes() {
	d := Default()
	if c.Database.Driver == "" {
		c.Database.Driver = d.Database.Driver
	}
	if c.Database.Path == "" {
		c.Database.Path = d.Database.Path
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = d.Cache.TTL
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = d.Cache.MaxEntries
	}
	if c.Assembly.StepBudget == 0 {
		c.Assembly.StepBudget = d.Assembly.StepBudget
	}
	if c.Events.QueueSize == 0 {
		c.Events.QueueSize = d.Events.QueueSize
	}
	if c.Events.DrainTimeout == 0 {
		c.Events.DrainTimeout = d.Events.DrainTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
}
