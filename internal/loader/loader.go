// Package loader handles opening and validating executable files.
package loader

import (
	"fmt"

	"github.com/retroenv/hhklaunch/internal/elfimage"
	"github.com/retroenv/hhklaunch/internal/flash"
)

// Loader opens executable files from a storage volume.
type Loader struct {
	volume *flash.FS
}

// New creates a new loader for the given volume.
func New(volume *flash.FS) *Loader {
	return &Loader{
		volume: volume,
	}
}

// Handle is an open executable file together with a view of its contents.
// The image must not be used after the handle is closed.
type Handle struct {
	file  *flash.File
	Image *elfimage.Image
}

// Path returns the volume path of the file.
func (h *Handle) Path() string {
	return h.file.Path()
}

// Close closes the file and releases the image.
func (h *Handle) Close() error {
	return h.file.Close()
}

// Open opens a file and obtains a view of its contents.
func (l *Loader) Open(path string) (*Handle, error) {
	file, err := l.volume.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file %s: %w", path, err)
	}

	img, err := file.Addr(0)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("mapping file %s: %w", path, err)
	}

	return &Handle{
		file:  file,
		Image: img,
	}, nil
}

// Load opens a file and validates its header. If validation fails the file
// is closed again and the rejection is returned.
func (l *Loader) Load(path string) (*Handle, elfimage.Header, error) {
	h, err := l.Open(path)
	if err != nil {
		return nil, elfimage.Header{}, err
	}

	hdr, err := elfimage.Validate(h.Image)
	if err != nil {
		_ = h.Close()
		return nil, elfimage.Header{}, fmt.Errorf("validating file %s: %w", path, err)
	}
	return h, hdr, nil
}
