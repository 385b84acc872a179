// Package launcher loads executables into memory and transfers control to
// them.
//
// The launcher and the programs it runs share one address space without any
// protection. A program can overwrite every part of memory including the
// video memory and the state of the launcher itself.
package launcher

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/retroenv/hhklaunch/internal/display"
	"github.com/retroenv/hhklaunch/internal/elfimage"
	"github.com/retroenv/hhklaunch/internal/flash"
	"github.com/retroenv/hhklaunch/internal/loader"
	"github.com/retroenv/hhklaunch/internal/registry"
	"github.com/retroenv/hhklaunch/internal/verification"
	"github.com/retroenv/retrogolib/log"
)

var (
	// ErrBusy is returned when a launch is requested while another
	// executable is being loaded.
	ErrBusy = errors.New("another executable is being loaded")
	// ErrVerification is returned when the mapped sections do not match
	// the executable.
	ErrVerification = errors.New("mapped sections do not match the executable")
)

// Memory is the address space executables are loaded into.
type Memory interface {
	elfimage.Memory
	verification.Memory

	Read(addr uint32, size uint32) ([]byte, error)
}

// Options controls optional launch steps.
type Options struct {
	// Verify compares memory with the executable after mapping and
	// refuses to run it on a mismatch.
	Verify bool
}

// MappedSection describes how one section was handled.
type MappedSection struct {
	Name    string
	Section elfimage.Section
	Action  elfimage.Action
	Err     error // set for sections that could not be mapped
}

// Result describes a finished launch.
type Result struct {
	Path     string
	Entry    uint32
	Sections []MappedSection
}

// Problems returns the combined errors of all sections that could not be
// mapped, or nil.
func (r Result) Problems() error {
	var result *multierror.Error
	for _, sec := range r.Sections {
		if sec.Err != nil {
			result = multierror.Append(result, sec.Err)
		}
	}
	return result.ErrorOrNil()
}

// Launcher runs executables from a storage volume.
type Launcher struct {
	logger *log.Logger
	loader *loader.Loader
	mem    Memory
	vram   *display.VRAM
	exec   Executor
	opts   Options

	loading bool
}

// New returns a launcher. The video memory is optional, if set it is
// preserved across every program run.
func New(logger *log.Logger, volume *flash.FS, mem Memory, vram *display.VRAM,
	exec Executor, opts Options) *Launcher {

	return &Launcher{
		logger: logger,
		loader: loader.New(volume),
		mem:    mem,
		vram:   vram,
		exec:   exec,
		opts:   opts,
	}
}

// RunApp launches the catalog entry at index.
func (l *Launcher) RunApp(cat *registry.Catalog, index int) (Result, error) {
	path, err := cat.Path(index)
	if err != nil {
		return Result{}, err
	}
	return l.Launch(path)
}

// Launch loads the executable at path, maps its sections and calls its
// entry point. It returns after the program returned.
//
// Nothing is written to memory unless the file passes validation. Sections
// whose data lies outside of the file are skipped and reported in the
// result, the program is still run.
func (l *Launcher) Launch(path string) (Result, error) {
	result := Result{Path: path}

	entry, sections, err := l.load(path)
	result.Sections = sections
	if err != nil {
		return result, err
	}
	result.Entry = entry

	if err := l.run(path, entry); err != nil {
		return result, err
	}
	return result, nil
}

// load maps the executable and releases it again before returning, only one
// executable is held at any time.
func (l *Launcher) load(path string) (uint32, []MappedSection, error) {
	if l.loading {
		return 0, nil, ErrBusy
	}
	l.loading = true
	defer func() { l.loading = false }()

	h, hdr, err := l.loader.Load(path)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = h.Close() }()

	var sections []MappedSection
	for sec := range elfimage.Sections(h.Image, hdr) {
		name, err := elfimage.SectionName(h.Image, hdr, sec)
		if err != nil {
			name = ""
		}

		action, err := elfimage.MapSection(h.Image, sec, l.mem)
		mapped := MappedSection{
			Name:    name,
			Section: sec,
			Action:  action,
			Err:     err,
		}
		sections = append(sections, mapped)

		if err != nil {
			l.logger.Warn("Skipping section", log.String("section", name), log.Err(err))
			continue
		}
		if action != elfimage.Skipped {
			l.logger.Debug("Mapped section",
				log.String("section", name),
				log.String("action", action.String()),
				log.Hex("address", sec.Addr),
				log.Hex("size", sec.Size))
		}
	}

	if l.opts.Verify {
		if err := verification.VerifyMapping(l.logger, h.Image, hdr, l.mem); err != nil {
			return 0, sections, fmt.Errorf("%w: %w", ErrVerification, err)
		}
	}

	return hdr.Entry, sections, nil
}

// run calls the entry point with the video memory preserved.
func (l *Launcher) run(path string, entry uint32) (err error) {
	if l.vram != nil {
		restore, saveErr := l.vram.Preserve()
		if saveErr != nil {
			return fmt.Errorf("saving video memory: %w", saveErr)
		}
		defer func() {
			if restoreErr := restore(); restoreErr != nil && err == nil {
				err = fmt.Errorf("restoring video memory: %w", restoreErr)
			}
		}()
	}

	l.logger.Info("Starting application", log.String("path", path), log.Hex("entry", entry))
	if err := l.exec.Call(entry); err != nil {
		return fmt.Errorf("running %s: %w", path, err)
	}
	l.logger.Debug("Application returned", log.String("path", path))
	return nil
}
