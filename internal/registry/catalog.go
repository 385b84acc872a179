package registry

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ErrNoSuchApp is returned for catalog indexes that do not exist.
var ErrNoSuchApp = errors.New("no such application")

// Entry is a discovered application file.
type Entry struct {
	FileName string
	Path     string
	Size     int64

	Name        string
	Description string
	Author      string
	Version     string

	// Problem is the reason the file could not be read as an executable,
	// nil for valid executables.
	Problem error
}

// DisplayName returns the name to present to the user, the application
// name or the file path if the file does not carry a name.
func (e Entry) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Path
}

// Valid returns whether the file is a valid executable.
func (e Entry) Valid() bool {
	return e.Problem == nil
}

// Catalog is the immutable result of a directory scan.
type Catalog struct {
	entries []Entry
	dropped int
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Entry returns the entry at index i.
func (c *Catalog) Entry(i int) (Entry, error) {
	if i < 0 || i >= c.Len() {
		return Entry{}, fmt.Errorf("%w: index %d", ErrNoSuchApp, i)
	}
	return c.entries[i], nil
}

// Path returns the file path of the entry at index i.
func (c *Catalog) Path(i int) (string, error) {
	e, err := c.Entry(i)
	if err != nil {
		return "", err
	}
	return e.Path, nil
}

// Entries returns a copy of all entries in directory order.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	entries := make([]Entry, len(c.entries))
	copy(entries, c.entries)
	return entries
}

// Dropped returns the number of files that did not fit into the catalog.
func (c *Catalog) Dropped() int {
	if c == nil {
		return 0
	}
	return c.dropped
}

// Problems returns the combined problems of all invalid entries or nil.
func (c *Catalog) Problems() error {
	var result *multierror.Error
	for _, e := range c.Entries() {
		if e.Problem != nil {
			result = multierror.Append(result, e.Problem)
		}
	}
	return result.ErrorOrNil()
}
