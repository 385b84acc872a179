// Package menu implements the interactive application selection.
package menu

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/retroenv/hhklaunch/internal/registry"
	"github.com/retroenv/hhklaunch/internal/writer"
	"golang.org/x/term"
)

const prompt = "app> "

var (
	// ErrQuit is returned when the user leaves the menu.
	ErrQuit = errors.New("menu closed")
	// ErrNoTerminal is returned when the input is not an interactive terminal.
	ErrNoTerminal = errors.New("menu needs an interactive terminal")
)

// Menu presents a catalog and reads the selection of the user.
type Menu struct {
	term *term.Terminal
}

// New returns a menu that uses rw for input and output. rw is expected to be
// a terminal in raw mode.
func New(rw io.ReadWriter) *Menu {
	return &Menu{
		term: term.NewTerminal(rw, prompt),
	}
}

// Printf writes a message to the terminal.
func (m *Menu) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(m.term, format, args...)
}

// Writer returns a writer that outputs to the terminal.
func (m *Menu) Writer() io.Writer {
	return m.term
}

// Select shows the catalog and returns the index of the chosen entry.
// Entering q or closing the input returns ErrQuit.
func (m *Menu) Select(cat *registry.Catalog) (int, error) {
	if err := writer.New(m.term).Catalog(cat); err != nil {
		return 0, err
	}
	if cat.Len() == 0 {
		return 0, ErrQuit
	}
	m.Printf("Select an application (0-%d) or q to quit\n", cat.Len()-1)

	for {
		line, err := m.term.ReadLine()
		if errors.Is(err, io.EOF) {
			return 0, ErrQuit
		}
		if err != nil {
			return 0, fmt.Errorf("reading selection: %w", err)
		}

		line = strings.TrimSpace(line)
		switch strings.ToLower(line) {
		case "":
			continue
		case "q", "quit":
			return 0, ErrQuit
		}

		index, err := strconv.Atoi(line)
		if err != nil || index < 0 || index >= cat.Len() {
			m.Printf("Invalid selection %q\n", line)
			continue
		}
		return index, nil
	}
}

// RunTerminal puts the terminal of in into raw mode, calls fn with a reader
// for in and a writer for out and restores the terminal afterwards.
func RunTerminal(in *os.File, out io.Writer, fn func(rw io.ReadWriter) error) error {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return ErrNoTerminal
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("setting raw terminal mode: %w", err)
	}
	defer func() { _ = term.Restore(fd, state) }()

	rw := struct {
		io.Reader
		io.Writer
	}{in, out}
	return fn(rw)
}
