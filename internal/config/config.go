// Package config loads the optional appsweep settings file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// DefaultSizeWorkers bounds concurrent directory-size walks.
const DefaultSizeWorkers = 4

// LogConfig controls the file logger.
type LogConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"` // debug, info, warn, error
}

// Config holds user-tunable settings.
// Stored in ~/.config/appsweep/config.yaml; every field is optional.
type Config struct {
	Home              string    `yaml:"home"`
	SystemRoot        string    `yaml:"system_root"`
	InstallationRoots []string  `yaml:"installation_roots"` // empty: derived from the exec mode
	TrashDir          string    `yaml:"trash_dir"` // override the platform trash
	SizeWorkers       int       `yaml:"size_workers"`
	Log               LogConfig `yaml:"log"`
}

// DefaultPath returns ~/.config/appsweep/config.yaml for home.
func DefaultPath(home string) string {
	return filepath.Join(home, ".config", "appsweep", "config.yaml")
}

// Default returns the configuration used when no file exists.
func Default(home string) *Config {
	cfg := &Config{Home: home}
	applyDefaults(cfg)
	return cfg
}

// Load reads the config file at path. A missing file yields defaults.
func Load(path, home string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	// Env var overrides file level
	if lvl := os.Getenv("APPSWEEP_LOG_LEVEL"); lvl != "" {
		cfg.Log.Level = lvl
	}

	if cfg.Home == "" {
		cfg.Home = home
	}
	cfg.Home = expandHome(cfg.Home, home)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if c.SizeWorkers < 1 {
		return fmt.Errorf("size_workers must be at least 1, got %d", c.SizeWorkers)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	for _, r := range c.InstallationRoots {
		if !filepath.IsAbs(r) {
			return fmt.Errorf("installation root %q is not absolute", r)
		}
	}
	return nil
}

// Level parses Log.Level.
func (c *Config) Level() (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("log level %q: %w", c.Log.Level, err)
	}
	return lvl, nil
}

func applyDefaults(cfg *Config) {
	if cfg.SystemRoot == "" {
		cfg.SystemRoot = "/"
	}
	for i, r := range cfg.InstallationRoots {
		cfg.InstallationRoots[i] = expandHome(r, cfg.Home)
	}
	if cfg.TrashDir != "" {
		cfg.TrashDir = expandHome(cfg.TrashDir, cfg.Home)
	}
	if cfg.SizeWorkers == 0 {
		cfg.SizeWorkers = DefaultSizeWorkers
	}
	if cfg.Log.Path == "" {
		cfg.Log.Path = filepath.Join(cfg.Home, "Library", "Logs", "appsweep", "appsweep.log")
	}
	cfg.Log.Path = expandHome(cfg.Log.Path, cfg.Home)
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func expandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
