// Package config handles application configuration and setup
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/retroenv/hhklaunch/internal/display"
	"github.com/retroenv/retrogolib/log"
)

// CreateLogger creates a logger with appropriate settings
func CreateLogger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}

// File is the content of a TOML config file. Values that are not set in the
// file keep their zero value, the display geometry defaults to the
// calculator screen.
type File struct {
	Root      string `toml:"root"`
	Directory string `toml:"directory"`
	Pattern   string `toml:"pattern"`
	MaxApps   int    `toml:"max_apps"`
	Verify    bool   `toml:"verify"`

	Display display.Config `toml:"display"`
}

// LoadFile reads a config file. Unknown keys are rejected.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading config file %s: %w", path, err)
	}

	f := File{
		Display: display.DefaultConfig(),
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return f, nil
}
