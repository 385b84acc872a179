// Package memory implements the flat 32 bit address space that executables
// are loaded into and run from.
//
// There is no ownership or protection of any address range. The launcher,
// the display memory and every loaded program share the space, and whoever
// writes last wins.
package memory

import (
	"errors"
	"fmt"
	"sort"
)

const (
	pageBits = 12
	pageSize = 1 << pageBits
	pageMask = pageSize - 1
)

// ErrWrapAround is returned for accesses that run past the top of the address space.
var ErrWrapAround = errors.New("access wraps around the address space")

type page [pageSize]byte

// Space is a sparse 32 bit address space. Memory that was never written
// reads as zero.
type Space struct {
	pages  map[uint32]*page
	writes int
}

// New returns an empty address space.
func New() *Space {
	return &Space{
		pages: make(map[uint32]*page),
	}
}

func checkRange(addr, size uint32) error {
	if uint64(addr)+uint64(size) > 1<<32 {
		return fmt.Errorf("%w: address 0x%08x size 0x%x", ErrWrapAround, addr, size)
	}
	return nil
}

// Write copies data to addr.
func (s *Space) Write(addr uint32, data []byte) error {
	if err := checkRange(addr, uint32(len(data))); err != nil {
		return err
	}
	s.writes++

	for len(data) > 0 {
		p := s.page(addr, true)
		n := copy(p[addr&pageMask:], data)
		data = data[n:]
		addr += uint32(n)
	}
	return nil
}

// Fill sets size bytes starting at addr to value.
func (s *Space) Fill(addr uint32, value byte, size uint32) error {
	if err := checkRange(addr, size); err != nil {
		return err
	}
	s.writes++

	for size > 0 {
		offset := addr & pageMask
		n := min(uint32(pageSize)-offset, size)

		// untouched pages already read as zero
		if value != 0 || s.page(addr, false) != nil {
			p := s.page(addr, true)
			for i := range n {
				p[offset+i] = value
			}
		}
		size -= n
		addr += n
	}
	return nil
}

// Read returns a copy of size bytes starting at addr.
func (s *Space) Read(addr uint32, size uint32) ([]byte, error) {
	if err := checkRange(addr, size); err != nil {
		return nil, err
	}

	out := make([]byte, size)
	if err := s.ReadInto(addr, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadInto fills buf with the bytes starting at addr.
func (s *Space) ReadInto(addr uint32, buf []byte) error {
	if uint64(len(buf)) > 1<<32 {
		return fmt.Errorf("%w: address 0x%08x size 0x%x", ErrWrapAround, addr, len(buf))
	}
	if err := checkRange(addr, uint32(len(buf))); err != nil {
		return err
	}

	for len(buf) > 0 {
		offset := addr & pageMask
		n := min(uint32(pageSize)-offset, uint32(len(buf)))
		if p := s.page(addr, false); p != nil {
			copy(buf[:n], p[offset:offset+n])
		} else {
			clear(buf[:n])
		}
		buf = buf[n:]
		addr += n
	}
	return nil
}

// Writes returns the number of write and fill operations performed.
func (s *Space) Writes() int {
	return s.writes
}

// Pages returns the base addresses of all pages that were written to, in
// ascending order.
func (s *Space) Pages() []uint32 {
	bases := make([]uint32, 0, len(s.pages))
	for number := range s.pages {
		bases = append(bases, number<<pageBits)
	}
	sort.Slice(bases, func(i, j int) bool { return bases[i] < bases[j] })
	return bases
}

func (s *Space) page(addr uint32, create bool) *page {
	number := addr >> pageBits
	p, ok := s.pages[number]
	if !ok && create {
		p = &page{}
		s.pages[number] = p
	}
	return p
}
