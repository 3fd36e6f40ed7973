package model

import (
	"errors"
	"fmt"
	"io/fs"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/timewinder-dev/looptrace/engine"
)

const DefaultConfigFile = "looptrace.toml"

type Config struct {
	Engine engine.Options `toml:"engine"`
	Output OutputConfig   `toml:"output"`
	Store  StoreConfig    `toml:"store"`
	Check  CheckConfig    `toml:"check"`
}

type OutputConfig struct {
	Format string `toml:"format"`
	Color  bool   `toml:"color"`
}

type StoreConfig struct {
	// Path of the SQLite store. Empty keeps traces in memory only.
	Path      string `toml:"path"`
	CacheSize int    `toml:"cache_size"`
}

type CheckConfig struct {
	Workers   int  `toml:"workers"`
	KeepGoing bool `toml:"keep_going"`
}

var OutputFormats = []string{"text", "json", "yaml"}

func DefaultConfig() Config {
	return Config{
		Engine: engine.DefaultOptions(),
		Output: OutputConfig{Format: "text", Color: true},
		Store:  StoreConfig{CacheSize: 128},
		Check:  CheckConfig{Workers: runtime.NumCPU()},
	}
}

// LoadConfig reads path over the defaults. A missing file is only an error
// when the caller named it explicitly.
func LoadConfig(path string, explicit bool) (Config, error) {
	cfg := DefaultConfig()
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return cfg, fmt.Errorf("loading config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if !ValidFormat(c.Output.Format) {
		return fmt.Errorf("invalid output format %q: must be one of %v", c.Output.Format, OutputFormats)
	}
	if c.Check.Workers < 0 {
		return fmt.Errorf("check.workers must not be negative, got %d", c.Check.Workers)
	}
	return nil
}

func ValidFormat(format string) bool {
	for _, f := range OutputFormats {
		if f == format {
			return true
		}
	}
	return false
}
