// Package config handles pica.toml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/pica/vm"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "pica.toml"

// Config represents a pica.toml project configuration.
type Config struct {
	Project  Project  `toml:"project"`
	Dispatch Dispatch `toml:"dispatch"`
	Log      Log      `toml:"log"`
	Profile  Profile  `toml:"profile"`

	// Dir is the directory containing the pica.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
}

// Dispatch tunes call-site caching.
type Dispatch struct {
	MaxChain             int  `toml:"max-chain"`
	MegamorphicCacheSize int  `toml:"megamorphic-cache-size"`
	ReorderHits          bool `toml:"reorder-hits"`
}

// Log configures logging.
type Log struct {
	// Verbosity follows commonlog: 0 errors only, 1 warnings, 2 notices,
	// 3 info, 4 debug.
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Profile configures dispatch profile output.
type Profile struct {
	Database string `toml:"database"`
	Output   string `toml:"output"`
}

// Default returns the configuration used when no pica.toml exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	c.applyEnv()
	return c
}

// Load parses a pica.toml file from the given directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses the configuration file at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	c.applyDefaults()
	c.applyEnv()
	return &c, nil
}

// FindAndLoad walks up from startDir to find a pica.toml file, then loads
// and returns it. Returns the defaults if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return Default(), nil
		}
		dir = parent
	}
}

func (c *Config) applyDefaults() {
	if c.Dispatch.MaxChain <= 0 {
		c.Dispatch.MaxChain = vm.MaxPICEntries
	}
	if c.Dispatch.MegamorphicCacheSize <= 0 {
		c.Dispatch.MegamorphicCacheSize = vm.DefaultMegamorphicCacheSize
	}
	if c.Profile.Database == "" {
		c.Profile.Database = filepath.Join(".pica", "profiles.db")
	}
}

func (c *Config) applyEnv() {
	if os.Getenv("PICA_DEBUG") != "" {
		c.Log.Verbosity = 4
	}
	if db := os.Getenv("PICA_PROFILE_DB"); db != "" {
		c.Profile.Database = db
	}
}

// VM converts the dispatch section into runtime tuning.
func (c *Config) VM() *vm.Config {
	return &vm.Config{
		MaxChain:             c.Dispatch.MaxChain,
		MegamorphicCacheSize: c.Dispatch.MegamorphicCacheSize,
		ReorderHits:          c.Dispatch.ReorderHits,
	}
}

// DatabasePath returns the profile database path, resolved against the
// configuration directory when relative.
func (c *Config) DatabasePath() string {
	return c.resolve(c.Profile.Database)
}

// LogFile returns the log file path, or nil to log to stderr.
func (c *Config) LogFile() *string {
	if c.Log.File == "" {
		return nil
	}
	path := c.resolve(c.Log.File)
	return &path
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) || c.Dir == "" {
		return path
	}
	return filepath.Join(c.Dir, path)
}
