// Package main implements the main entry point of the application launcher
package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/retroenv/hhklaunch/internal/app"
	"github.com/retroenv/hhklaunch/internal/cli"
	"github.com/retroenv/hhklaunch/internal/config"
	"github.com/retroenv/hhklaunch/internal/fileprocessor"
	"github.com/retroenv/hhklaunch/internal/menu"
	"github.com/retroenv/hhklaunch/internal/options"
	"github.com/retroenv/hhklaunch/internal/pipeline"
	retroapp "github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	ctx := retroapp.Context()

	opts, err := cli.ParseFlags()
	if err != nil {
		logger := config.CreateLogger(opts.Debug, opts.Quiet)
		var usageErr *cli.UsageError
		if errors.As(err, &usageErr) {
			fileprocessor.PrintBanner(logger, opts, version, commit, date)
			usageErr.ShowUsage()
		} else {
			logger.Fatal(err.Error())
		}
		os.Exit(1)
	}

	logger := config.CreateLogger(opts.Debug, opts.Quiet)
	fileprocessor.PrintBanner(logger, opts, version, commit, date)

	if opts.Command == options.CommandInspect {
		if !inspectFiles(logger, opts) {
			os.Exit(1)
		}
		return
	}

	if err := runVolumeCommand(ctx, logger, opts); err != nil {
		// Handle context cancellation (Ctrl+C) gracefully
		if errors.Is(err, context.Canceled) {
			logger.Info("Operation cancelled")
			return
		}
		logger.Error("Command failed", log.String("command", opts.Command), log.Err(err))
		os.Exit(1)
	}
}

// inspectFiles inspects all host files selected by the options and returns
// whether all of them are valid executables.
func inspectFiles(logger *log.Logger, opts options.Program) bool {
	files, err := fileprocessor.GetFilesToProcess(&opts)
	if err != nil {
		logger.Fatal(err.Error())
	}
	if len(files) == 0 {
		logger.Warn("No files to inspect")
	}

	ok := true
	for _, file := range files {
		if err := fileprocessor.InspectFile(logger, os.Stdout, file); err != nil {
			logger.Error("Inspecting failed", log.String("file", file), log.Err(err))
			ok = false
		}
	}
	return ok
}

// runVolumeCommand mounts the storage volume and executes a command on it.
func runVolumeCommand(ctx context.Context, logger *log.Logger, opts options.Program) error {
	root, err := app.MountRoot(opts.Root)
	if err != nil {
		return err
	}
	app.PrintInfo(logger, opts, root)

	p, err := pipeline.New(logger, opts, os.DirFS(root), nil)
	if err != nil {
		return err
	}

	if opts.Command != options.CommandMenu {
		return p.Execute(ctx, os.Stdout)
	}

	err = menu.RunTerminal(os.Stdin, os.Stdout, func(rw io.ReadWriter) error {
		return p.Menu(ctx, rw)
	})
	if errors.Is(err, menu.ErrNoTerminal) {
		logger.Error("The menu needs an interactive terminal, use the list and run commands instead")
	}
	return err
}
