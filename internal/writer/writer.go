// Package writer implements the text output of catalogs, load plans and
// launch results.
package writer

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/retroenv/hhklaunch/internal/elfimage"
	"github.com/retroenv/hhklaunch/internal/launcher"
	"github.com/retroenv/hhklaunch/internal/registry"
	"github.com/ryanuber/columnize"
)

const dataBytesPerLine = 16

// Writer writes human readable reports.
type Writer struct {
	writer io.Writer
}

// New creates a new writer.
func New(writer io.Writer) *Writer {
	return &Writer{
		writer: writer,
	}
}

// cell removes characters from s that would break the table layout.
func cell(s string) string {
	if s == "" {
		return "-"
	}
	return strings.Map(func(r rune) rune {
		if r == '|' || r < 32 || r > 126 {
			return ' '
		}
		return r
	}, s)
}

func (w Writer) table(lines []string) error {
	if _, err := fmt.Fprintln(w.writer, columnize.SimpleFormat(lines)); err != nil {
		return fmt.Errorf("writing table: %w", err)
	}
	return nil
}

// Catalog writes one line per catalog entry.
func (w Writer) Catalog(cat *registry.Catalog) error {
	if cat.Len() == 0 {
		if _, err := fmt.Fprintln(w.writer, "No applications found"); err != nil {
			return fmt.Errorf("writing line: %w", err)
		}
		return nil
	}

	lines := []string{"# | NAME | VERSION | AUTHOR | SIZE | FILE"}
	for i, e := range cat.Entries() {
		name := e.DisplayName()
		if !e.Valid() {
			name = "(" + launcher.Diagnostic(e.Problem) + ")"
		}
		lines = append(lines, fmt.Sprintf("%d | %s | %s | %s | %s | %s",
			i, cell(name), cell(e.Version), cell(e.Author), humanize.Bytes(uint64(e.Size)), cell(e.FileName)))
	}
	return w.table(lines)
}

// Section is one line of a load plan.
type Section struct {
	Name    string
	Section elfimage.Section
	Action  elfimage.Action
	Err     error
}

// Sections writes the section table of a load plan.
func (w Writer) Sections(sections []Section) error {
	lines := []string{"# | SECTION | TYPE | ADDRESS | SIZE | ACTION"}
	for _, s := range sections {
		action := s.Action.String()
		if s.Err != nil {
			action = "skipped: " + s.Err.Error()
		}
		lines = append(lines, fmt.Sprintf("%d | %s | %s | 0x%08x | 0x%08x | %s",
			s.Section.Index, cell(s.Name), s.Section.Type, s.Section.Addr, s.Section.Size, action))
	}
	return w.table(lines)
}

// LaunchResult writes the sections that were mapped by a launch.
func (w Writer) LaunchResult(result launcher.Result) error {
	sections := make([]Section, 0, len(result.Sections))
	for _, s := range result.Sections {
		sections = append(sections, Section(s))
	}
	if err := w.Sections(sections); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w.writer, "Entry point 0x%08x - application returned\n", result.Entry); err != nil {
		return fmt.Errorf("writing line: %w", err)
	}
	return nil
}

// Metadata writes the metadata strings of an application that are set.
func (w Writer) Metadata(e registry.Entry) error {
	fields := []struct {
		label string
		value string
	}{
		{"App name", e.Name},
		{"App description", e.Description},
		{"App author", e.Author},
		{"App version", e.Version},
	}

	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if _, err := fmt.Fprintf(w.writer, "%s: %s\n", f.label, f.value); err != nil {
			return fmt.Errorf("writing line: %w", err)
		}
	}
	return nil
}

// HexDump writes data as hex bytes, dataBytesPerLine bytes per line, each
// line prefixed with its address.
func (w Writer) HexDump(addr uint32, data []byte) error {
	remaining := len(data)
	for i := 0; remaining > 0; {
		toWrite := min(remaining, dataBytesPerLine)

		buf := &strings.Builder{}
		fmt.Fprintf(buf, "%08x: ", addr+uint32(i))
		for j := range toWrite {
			fmt.Fprintf(buf, "%02x ", data[i+j])
		}

		if _, err := fmt.Fprintln(w.writer, strings.TrimRight(buf.String(), " ")); err != nil {
			return fmt.Errorf("writing data line: %w", err)
		}

		i += toWrite
		remaining -= toWrite
	}
	return nil
}
