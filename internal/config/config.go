// Package config loads the treeops YAML configuration file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tg123/treeops/internal/azblob"
	"github.com/tg123/treeops/pkg/fsops"
)

// EnvPath overrides the config file location.
const EnvPath = "TREEOPS_CONFIG"

type Config struct {
	LogLevel       string   `yaml:"log_level"`
	Exclude        []string `yaml:"exclude"`
	FollowSymlinks bool     `yaml:"follow_symlinks"`
	Azblob         struct {
		Endpoint   string `yaml:"endpoint"`
		AccountKey string `yaml:"account_key"`
	} `yaml:"azblob"`
}

func Default() *Config {
	return &Config{LogLevel: "info"}
}

// Path returns the default config location, ~/.treeops/config.yaml.
func Path() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".treeops", "config.yaml")
}

// Load reads the config at path, or at Path when path is empty. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = Path()
	}
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes c to path, creating its directory.
func (c *Config) Save(path string) error {
	path = ExpandPath(path)
	if err := fsops.MkdirAll(filepath.Dir(path)); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	for _, pattern := range c.Exclude {
		if _, err := fsops.MatchGlob(pattern); err != nil {
			return fmt.Errorf("exclude: %w", err)
		}
	}
	return nil
}

// Level parses LogLevel. Empty means info.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// ExcludeFilter accepts entries matched by none of the exclude globs, and
// whose parent directories are matched by none either. It is nil when there
// are none.
func (c *Config) ExcludeFilter() fsops.Filter {
	var globs []fsops.Filter
	for _, pattern := range c.Exclude {
		f, err := fsops.MatchGlob(pattern)
		if err != nil {
			continue
		}
		globs = append(globs, f)
	}
	if len(globs) == 0 {
		return nil
	}
	excluded := func(e fsops.Entry) bool {
		for _, f := range globs {
			if f(e) {
				return true
			}
		}
		return false
	}
	return func(e fsops.Entry) bool {
		if excluded(e) {
			return false
		}
		// walks that descend rejected directories still honour them
		for dir := path.Dir(e.Rel); dir != "." && dir != "/" && dir != ""; dir = path.Dir(dir) {
			if excluded(fsops.Entry{Name: path.Base(dir), Rel: dir, Kind: fsops.Directory}) {
				return false
			}
		}
		return true
	}
}

// AzureOptions merges the azblob section over the environment. Environment
// variables win.
func (c *Config) AzureOptions() azblob.Options {
	opts := azblob.OptionsFromEnv()
	if opts.Endpoint == "" {
		opts.Endpoint = c.Azblob.Endpoint
	}
	if opts.AccountKey == "" {
		opts.AccountKey = c.Azblob.AccountKey
	}
	return opts
}

// ExpandPath expands a leading ~ to the home directory.
func ExpandPath(path string) string {
	rest, ok := strings.CutPrefix(path, "~")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}
