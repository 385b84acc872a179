// Package fileprocessor handles inspecting executable files of the host
package fileprocessor

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/retroenv/hhklaunch/internal/flash"
	"github.com/retroenv/hhklaunch/internal/launcher"
	"github.com/retroenv/hhklaunch/internal/memory"
	"github.com/retroenv/hhklaunch/internal/options"
	"github.com/retroenv/hhklaunch/internal/registry"
	"github.com/retroenv/hhklaunch/internal/writer"
	"github.com/retroenv/retrogolib/log"
)

// entryDumpSize is the number of bytes shown at the entry point.
const entryDumpSize = 32

// InspectFile validates a file of the host and prints its load plan and
// metadata to w. The sections are mapped into a scratch address space and
// verified, no code is run.
func InspectFile(logger *log.Logger, w io.Writer, hostPath string) error {
	dir, name := filepath.Split(hostPath)
	if dir == "" {
		dir = "."
	}
	volume := flash.New(os.DirFS(dir))
	volumePath := flash.Join(flash.Root, name)

	mem := memory.New()
	var entry uint32
	var dryRun launcher.ExecutorFunc = func(addr uint32) error {
		entry = addr
		return nil
	}
	l := launcher.New(logger, volume, mem, nil, dryRun, launcher.Options{Verify: true})

	result, err := l.Launch(volumePath)
	if err != nil {
		if _, printErr := fmt.Fprintf(w, "%s: %s\n", name, launcher.Diagnostic(err)); printErr != nil {
			return fmt.Errorf("writing line: %w", printErr)
		}
		return fmt.Errorf("inspecting %s: %w", hostPath, err)
	}

	out := writer.New(w)
	sections := make([]writer.Section, 0, len(result.Sections))
	for _, s := range result.Sections {
		sections = append(sections, writer.Section(s))
	}
	if err := out.Sections(sections); err != nil {
		return err
	}

	if err := printMetadata(logger, out, volume, name); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "Entry point 0x%08x\n", entry); err != nil {
		return fmt.Errorf("writing line: %w", err)
	}
	code, err := mem.Read(entry, entryDumpSize)
	if err != nil {
		logger.Warn("Reading code at entry point failed", log.Hex("entry", entry), log.Err(err))
		return nil
	}
	return out.HexDump(entry, code)
}

// printMetadata reads the metadata of a single file through a registry
// scan using its name as pattern. Names can contain wildcards, so the entry
// is picked by its exact file name.
func printMetadata(logger *log.Logger, out *writer.Writer, volume *flash.FS, name string) error {
	reg := registry.New(logger, volume, registry.Config{
		Directory: flash.Root,
		Pattern:   name,
		MaxApps:   math.MaxInt,
	})
	cat, err := reg.Scan("")
	if err != nil {
		return fmt.Errorf("reading metadata: %w", err)
	}

	for _, entry := range cat.Entries() {
		if entry.FileName == name {
			return out.Metadata(entry)
		}
	}
	return nil
}

// GetFilesToProcess returns list of files to process based on options
func GetFilesToProcess(opts *options.Program) ([]string, error) {
	if opts.Batch != "" {
		matches, err := filepath.Glob(opts.Batch)
		if err != nil {
			return nil, fmt.Errorf("globbing batch pattern: %w", err)
		}
		return matches, nil
	}
	return opts.Args, nil
}

// PrintBanner prints application version information
func PrintBanner(logger *log.Logger, opts options.Program, version, commit, date string) {
	if opts.Quiet {
		return
	}

	versionString := version
	if commit != "" {
		if len(commit) > 7 {
			commit = commit[:7]
		}
		versionString += fmt.Sprintf(" (%s)", commit)
	}

	logger.Info("hhklaunch", log.String("version", versionString))

	if date != "" && !strings.Contains(date, "unknown") {
		logger.Info("Build", log.String("date", date))
	}
}
