// Package options contains the program options.
package options

import (
	"github.com/retroenv/hhklaunch/internal/display"
)

// Commands of the program.
const (
	CommandList    = "list"
	CommandRun     = "run"
	CommandInspect = "inspect"
	CommandMenu    = "menu"
)

// Commands lists all supported commands.
var Commands = []string{CommandList, CommandRun, CommandInspect, CommandMenu}

// Positional contains positional arguments.
type Positional struct {
	Command string   `arg:"positional" usage:"command to execute: list, run, inspect, menu"`
	Args    []string `arg:"positional" usage:"command arguments"`
}

// Parameters contains file path options.
type Parameters struct {
	Root      string `flag:"root" usage:"host directory to mount as storage volume" default:"."`
	Directory string `flag:"d" usage:"volume directory to scan for applications" default:"\\fls0\\"`
	Pattern   string `flag:"p" usage:"file name pattern of applications" default:"*.hhk"`
	Config    string `flag:"c" usage:"TOML config file"`
	Batch     string `flag:"batch" usage:"inspect host files matching pattern (e.g. *.hhk)"`
}

// Flags contains behavior options.
type Flags struct {
	MaxApps int  `flag:"max" usage:"maximum number of catalog entries" default:"64"`
	Verify  bool `flag:"verify" usage:"verify mapped sections before running an application"`
	Debug   bool `flag:"debug" usage:"enable debug logging"`
	Quiet   bool `flag:"q" usage:"quiet mode"`
}

// Program options of the launcher.
type Program struct {
	Positional
	Parameters
	Flags

	Display display.Config
}
