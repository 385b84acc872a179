// Package elfimage validates and maps 32-bit big-endian executable images.
//
// All structures are read through bounds-checked offsets into an Image, a
// malformed file can never cause a read outside of the bytes it consists of.
package elfimage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrOutOfBounds is returned for reads that would leave the image.
	ErrOutOfBounds = errors.New("read outside of image")
	// ErrReleased is returned for reads from an image whose file handle was closed.
	ErrReleased = errors.New("image has been released")
	// ErrUnterminated is returned when a string has no terminating NUL within its bounds.
	ErrUnterminated = errors.New("string is not terminated")
)

// Image is a read-only byte addressable view over the contents of a file.
type Image struct {
	data     []byte
	base     uint32
	released bool
}

// NewImage returns an image over data. The base is the storage address the
// data was obtained from and is only used for reporting.
func NewImage(data []byte, base uint32) *Image {
	return &Image{
		data: data,
		base: base,
	}
}

// Base returns the storage address of the first image byte.
func (img *Image) Base() uint32 {
	return img.base
}

// Len returns the total length of the image in bytes.
func (img *Image) Len() int {
	if img.released {
		return 0
	}
	return len(img.data)
}

// Release invalidates the image, all following reads fail with ErrReleased.
func (img *Image) Release() {
	img.released = true
	img.data = nil
}

// Released returns whether the image has been released.
func (img *Image) Released() bool {
	return img.released
}

// Bytes returns size bytes starting at offset. The returned slice aliases the
// image and must not be modified.
func (img *Image) Bytes(offset, size uint32) ([]byte, error) {
	if img.released {
		return nil, ErrReleased
	}
	end := uint64(offset) + uint64(size)
	if end > uint64(len(img.data)) {
		return nil, fmt.Errorf("%w: offset 0x%x size 0x%x length 0x%x",
			ErrOutOfBounds, offset, size, len(img.data))
	}
	return img.data[offset:end:end], nil
}

// Uint8 reads a byte at offset.
func (img *Image) Uint8(offset uint32) (uint8, error) {
	b, err := img.Bytes(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint16 reads a big-endian 16 bit value at offset.
func (img *Image) Uint16(offset uint32) (uint16, error) {
	b, err := img.Bytes(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// Uint32 reads a big-endian 32 bit value at offset.
func (img *Image) Uint32(offset uint32) (uint32, error) {
	b, err := img.Bytes(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// CString reads a NUL terminated string starting at offset. The string and
// its terminator must lie before limit, which is clipped to the image length.
func (img *Image) CString(offset, limit uint32) (string, error) {
	if img.released {
		return "", ErrReleased
	}
	if uint64(limit) > uint64(len(img.data)) {
		limit = uint32(len(img.data))
	}
	if offset >= limit {
		return "", fmt.Errorf("%w: string offset 0x%x limit 0x%x", ErrOutOfBounds, offset, limit)
	}

	b := img.data[offset:limit]
	end := bytes.IndexByte(b, 0)
	if end < 0 {
		return "", fmt.Errorf("%w: at offset 0x%x", ErrUnterminated, offset)
	}
	return string(b[:end]), nil
}
