// Package cli handles command line interface logic
package cli

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/retroenv/hhklaunch/internal/config"
	"github.com/retroenv/hhklaunch/internal/display"
	"github.com/retroenv/hhklaunch/internal/options"
	"github.com/retroenv/hhklaunch/internal/registry"
)

// ParseFlags parses command line flags and returns the program options
func ParseFlags() (options.Program, error) {
	return parseArgs(os.Args)
}

func parseArgs(arguments []string) (options.Program, error) {
	flags := flag.NewFlagSet(arguments[0], flag.ContinueOnError)
	var opts options.Program
	readOptionFlags(flags, &opts)

	err := flags.Parse(arguments[1:])
	args := flags.Args()
	if err != nil || len(args) == 0 {
		return opts, &UsageError{flags: flags}
	}

	if err := validateArgs(flags, args); err != nil {
		return opts, err
	}
	opts.Command = strings.ToLower(args[0])
	opts.Args = args[1:]
	opts.Display = display.DefaultConfig()

	if opts.Config != "" {
		if err := applyConfigFile(flags, &opts); err != nil {
			return opts, err
		}
	}

	if err := validateCommand(flags, opts); err != nil {
		return opts, err
	}
	return opts, nil
}

// UsageError represents an error that should show usage information
type UsageError struct {
	flags *flag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	return e.msg
}

func (e *UsageError) ShowUsage() {
	fmt.Printf("usage: hhklaunch [options] <command> [arguments]\n\n")
	fmt.Printf("commands:\n")
	fmt.Printf("  list                       list the applications on the volume\n")
	fmt.Printf("  run <index|path>           run an application\n")
	fmt.Printf("  inspect <file...>          show the load plan of executable files\n")
	fmt.Printf("  menu                       select an application interactively\n\n")
	if e.flags != nil {
		e.flags.PrintDefaults()
	}
	fmt.Println()
}

// validateArgs checks if arguments are in correct order
func validateArgs(flags *flag.FlagSet, args []string) error {
	for i, arg := range args {
		if i > 0 && arg != "" && arg[0] == '-' {
			return &UsageError{
				flags: flags,
				msg:   fmt.Sprintf("Potential argument %s found after command, please pass all options before the command", arg),
			}
		}
	}
	return nil
}

// validateCommand checks the command and its number of arguments
func validateCommand(flags *flag.FlagSet, opts options.Program) error {
	if !slices.Contains(options.Commands, opts.Command) {
		return &UsageError{
			flags: flags,
			msg: fmt.Sprintf("unsupported command: %s. Valid commands: %s",
				opts.Command, strings.Join(options.Commands, ", ")),
		}
	}

	switch opts.Command {
	case options.CommandRun:
		if len(opts.Args) != 1 {
			return &UsageError{flags: flags, msg: "run expects exactly one application index or path"}
		}
	case options.CommandInspect:
		if len(opts.Args) == 0 && opts.Batch == "" {
			return &UsageError{flags: flags, msg: "inspect expects a file name or the -batch option"}
		}
	default:
		if len(opts.Args) > 0 {
			return &UsageError{flags: flags, msg: fmt.Sprintf("%s does not take arguments", opts.Command)}
		}
	}

	if opts.MaxApps <= 0 {
		return fmt.Errorf("invalid maximum number of applications %d", opts.MaxApps)
	}
	return nil
}

// applyConfigFile sets all options from the config file that were not
// explicitly passed on the command line.
func applyConfigFile(flags *flag.FlagSet, opts *options.Program) error {
	f, err := config.LoadFile(opts.Config)
	if err != nil {
		return err
	}

	set := map[string]bool{}
	flags.Visit(func(fl *flag.Flag) {
		set[fl.Name] = true
	})

	if f.Root != "" && !set["root"] {
		opts.Root = f.Root
	}
	if f.Directory != "" && !set["d"] {
		opts.Directory = f.Directory
	}
	if f.Pattern != "" && !set["p"] {
		opts.Pattern = f.Pattern
	}
	if f.MaxApps != 0 && !set["max"] {
		opts.MaxApps = f.MaxApps
	}
	if f.Verify && !set["verify"] {
		opts.Verify = true
	}
	opts.Display = f.Display
	return nil
}

func readOptionFlags(flags *flag.FlagSet, opts *options.Program) {
	flags.StringVar(&opts.Root, "root", ".", "host directory that is mounted as the storage volume")
	flags.StringVar(&opts.Directory, "d", registry.DefaultDirectory, "volume directory to scan for applications")
	flags.StringVar(&opts.Pattern, "p", registry.DefaultPattern, "file name pattern of applications")
	flags.StringVar(&opts.Config, "c", "", "name of a TOML config file to read options from")
	flags.StringVar(&opts.Batch, "batch", "", "inspect a batch of host files matching the given path and file mask, for example *.hhk")
	flags.IntVar(&opts.MaxApps, "max", registry.DefaultMaxApps, "maximum number of applications in the catalog")
	flags.BoolVar(&opts.Verify, "verify", false, "verify the mapped sections before running an application")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", false, "perform operations quietly")
}
