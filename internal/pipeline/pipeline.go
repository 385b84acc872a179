// Package pipeline wires the storage volume, the address space, the
// registry and the launcher together and executes the volume commands.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"

	"github.com/retroenv/hhklaunch/internal/display"
	"github.com/retroenv/hhklaunch/internal/flash"
	"github.com/retroenv/hhklaunch/internal/launcher"
	"github.com/retroenv/hhklaunch/internal/memory"
	"github.com/retroenv/hhklaunch/internal/menu"
	"github.com/retroenv/hhklaunch/internal/options"
	"github.com/retroenv/hhklaunch/internal/registry"
	"github.com/retroenv/hhklaunch/internal/writer"
	"github.com/retroenv/retrogolib/log"
)

// Pipeline holds the state of one launcher session.
type Pipeline struct {
	logger   *log.Logger
	opts     options.Program
	volume   *flash.FS
	mem      *memory.Space
	vram     *display.VRAM
	registry *registry.Registry
	launcher *launcher.Launcher
}

// New creates a session for the volume served by fsys. A nil executor
// traces calls instead of running programs.
func New(logger *log.Logger, opts options.Program, fsys fs.FS, exec launcher.Executor) (*Pipeline, error) {
	mem := memory.New()
	vram, err := display.New(mem, opts.Display)
	if err != nil {
		return nil, fmt.Errorf("creating video memory: %w", err)
	}
	// the launcher starts with a blank screen
	if err := vram.Clear(); err != nil {
		return nil, fmt.Errorf("clearing video memory: %w", err)
	}

	if exec == nil {
		exec = launcher.NewTraceExecutor(logger, mem)
	}

	volume := flash.New(fsys)
	regCfg := registry.Config{
		Directory: opts.Directory,
		Pattern:   opts.Pattern,
		MaxApps:   opts.MaxApps,
	}

	return &Pipeline{
		logger:   logger,
		opts:     opts,
		volume:   volume,
		mem:      mem,
		vram:     vram,
		registry: registry.New(logger, volume, regCfg),
		launcher: launcher.New(logger, volume, mem, vram, exec, launcher.Options{Verify: opts.Verify}),
	}, nil
}

// Execute runs a list or run command and writes its report to out.
func (p *Pipeline) Execute(ctx context.Context, out io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch p.opts.Command {
	case options.CommandList:
		cat, err := p.scan()
		if err != nil {
			return err
		}
		return writer.New(out).Catalog(cat)

	case options.CommandRun:
		if len(p.opts.Args) != 1 {
			return errors.New("missing application to run")
		}
		result, err := p.run(p.opts.Args[0])
		if err != nil {
			return err
		}
		return writer.New(out).LaunchResult(result)

	default:
		return fmt.Errorf("unsupported command '%s'", p.opts.Command)
	}
}

// Menu lets the user pick applications from the catalog until the menu is
// left. The catalog is rebuilt before every selection.
func (p *Pipeline) Menu(ctx context.Context, rw io.ReadWriter) error {
	m := menu.New(rw)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		cat, err := p.scan()
		if err != nil {
			return err
		}

		index, err := m.Select(cat)
		if errors.Is(err, menu.ErrQuit) {
			return nil
		}
		if err != nil {
			return err
		}

		result, err := p.launcher.RunApp(cat, index)
		if err != nil {
			p.logger.Warn("Launching failed", log.String("path", result.Path), log.Err(err))
			m.Printf("%s\n", launcher.Diagnostic(err))
			continue
		}
		if err := writer.New(m.Writer()).LaunchResult(result); err != nil {
			return err
		}
	}
}

// scan rebuilds the catalog. Problems of single files are logged, only a
// failure to read the directory is returned.
func (p *Pipeline) scan() (*registry.Catalog, error) {
	cat, err := p.registry.Scan("")
	if err != nil {
		return nil, fmt.Errorf("scanning for applications: %w", err)
	}

	for _, e := range cat.Entries() {
		if !e.Valid() {
			p.logger.Debug("Invalid application", log.String("path", e.Path),
				log.String("reason", launcher.Diagnostic(e.Problem)))
		}
	}
	if cat.Dropped() > 0 {
		p.logger.Warn("Catalog is full, some applications are not listed",
			log.Int("max", p.opts.MaxApps), log.Int("ignored", cat.Dropped()))
	}
	return cat, nil
}

// run launches an application given by catalog index or by path. Paths
// without volume are relative to the scan directory.
func (p *Pipeline) run(target string) (launcher.Result, error) {
	var (
		result launcher.Result
		err    error
	)

	if index, convErr := strconv.Atoi(target); convErr == nil {
		cat, scanErr := p.scan()
		if scanErr != nil {
			return result, scanErr
		}
		result, err = p.launcher.RunApp(cat, index)
	} else {
		path := target
		if !strings.HasPrefix(path, flash.Separator) {
			path = flash.Join(p.opts.Directory, path)
		}
		result, err = p.launcher.Launch(path)
	}

	if err != nil {
		p.logger.Warn(launcher.Diagnostic(err))
		return result, fmt.Errorf("launching %s: %w", target, err)
	}
	if problems := result.Problems(); problems != nil {
		p.logger.Warn("Some sections could not be loaded", log.Err(problems))
	}
	return result, nil
}
