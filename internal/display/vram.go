// Package display implements the video memory shared between the launcher
// and the programs it runs.
package display

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Default video memory geometry.
const (
	DefaultAddress = 0x8c000000
	DefaultWidth   = 320
	DefaultHeight  = 528

	bytesPerPixel = 2
)

// White is the RGB565 color the screen is cleared to.
const White = 0xffff

// ErrNoBackup is returned when restoring without a previous backup.
var ErrNoBackup = errors.New("no video memory backup")

// Memory is the address space the video memory lives in.
type Memory interface {
	Read(addr uint32, size uint32) ([]byte, error)
	Write(addr uint32, data []byte) error
	Fill(addr uint32, value byte, size uint32) error
}

// Config describes the location and geometry of the video memory.
type Config struct {
	Address uint32 `toml:"address"`
	Width   int    `toml:"width"`
	Height  int    `toml:"height"`
}

// DefaultConfig returns the geometry of the calculator screen.
func DefaultConfig() Config {
	return Config{
		Address: DefaultAddress,
		Width:   DefaultWidth,
		Height:  DefaultHeight,
	}
}

// RGB565 converts 8 bit color components to a RGB565 color.
func RGB565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

// VRAM is a frame buffer of RGB565 pixels stored big-endian in memory.
// Nothing protects it from other writers to the same addresses.
type VRAM struct {
	mem    Memory
	cfg    Config
	backup []byte
}

// New returns the video memory window described by cfg.
func New(mem Memory, cfg Config) (*VRAM, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid screen size %dx%d", cfg.Width, cfg.Height)
	}
	size := uint64(cfg.Width) * uint64(cfg.Height) * bytesPerPixel
	if uint64(cfg.Address)+size > 1<<32 {
		return nil, fmt.Errorf("video memory at 0x%08x does not fit into the address space", cfg.Address)
	}

	return &VRAM{
		mem: mem,
		cfg: cfg,
	}, nil
}

// Width returns the screen width in pixels.
func (v *VRAM) Width() int { return v.cfg.Width }

// Height returns the screen height in pixels.
func (v *VRAM) Height() int { return v.cfg.Height }

// Address returns the address of the first pixel.
func (v *VRAM) Address() uint32 { return v.cfg.Address }

// Size returns the size of the video memory in bytes.
func (v *VRAM) Size() uint32 {
	return uint32(v.cfg.Width * v.cfg.Height * bytesPerPixel)
}

func (v *VRAM) pixelAddress(x, y int) (uint32, error) {
	if x < 0 || y < 0 || x >= v.cfg.Width || y >= v.cfg.Height {
		return 0, fmt.Errorf("pixel %d,%d outside of %dx%d screen", x, y, v.cfg.Width, v.cfg.Height)
	}
	return v.cfg.Address + uint32((y*v.cfg.Width+x)*bytesPerPixel), nil
}

// SetPixel sets the color of one pixel.
func (v *VRAM) SetPixel(x, y int, color uint16) error {
	addr, err := v.pixelAddress(x, y)
	if err != nil {
		return err
	}
	var b [bytesPerPixel]byte
	binary.BigEndian.PutUint16(b[:], color)
	return v.mem.Write(addr, b[:])
}

// Pixel returns the color of one pixel.
func (v *VRAM) Pixel(x, y int) (uint16, error) {
	addr, err := v.pixelAddress(x, y)
	if err != nil {
		return 0, err
	}
	b, err := v.mem.Read(addr, bytesPerPixel)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// Clear fills the screen with white.
func (v *VRAM) Clear() error {
	return v.mem.Fill(v.cfg.Address, 0xff, v.Size())
}

// Backup saves the current video memory contents. A previous backup is
// replaced.
func (v *VRAM) Backup() error {
	data, err := v.mem.Read(v.cfg.Address, v.Size())
	if err != nil {
		return fmt.Errorf("reading video memory: %w", err)
	}
	v.backup = data
	return nil
}

// Restore writes the saved contents back to video memory.
func (v *VRAM) Restore() error {
	if v.backup == nil {
		return ErrNoBackup
	}
	if err := v.mem.Write(v.cfg.Address, v.backup); err != nil {
		return fmt.Errorf("writing video memory: %w", err)
	}
	return nil
}

// Preserve saves the video memory and returns a function that writes the
// saved contents back. Every call keeps its own copy, so nested calls restore
// the screens they saved. Callers should defer the returned function.
func (v *VRAM) Preserve() (func() error, error) {
	data, err := v.mem.Read(v.cfg.Address, v.Size())
	if err != nil {
		return nil, fmt.Errorf("reading video memory: %w", err)
	}

	restore := func() error {
		if err := v.mem.Write(v.cfg.Address, data); err != nil {
			return fmt.Errorf("writing video memory: %w", err)
		}
		return nil
	}
	return restore, nil
}
