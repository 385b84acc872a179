package elfimage

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
)

// SectionHeaderSize is the size of one ELF32 section header table entry.
const SectionHeaderSize = 40

// ErrNameOutOfBounds is returned when a section name offset lies outside of
// the section name string table.
var ErrNameOutOfBounds = errors.New("section name outside of string table")

// ErrNoStringTable is returned when the header does not designate a usable
// section name string table.
var ErrNoStringTable = errors.New("no section name string table")

// Section is one entry of the section header table.
type Section struct {
	Index      int
	NameOffset uint32
	Type       elf.SectionType
	Flags      elf.SectionFlag
	Addr       uint32 // target virtual address
	Offset     uint32 // file offset of the section data
	Size       uint32
}

// Allocated returns whether the section occupies memory at run time.
func (s Section) Allocated() bool {
	return s.Flags&elf.SHF_ALLOC == elf.SHF_ALLOC
}

func (s Section) String() string {
	return fmt.Sprintf("section %d (%s) addr 0x%08x size 0x%08x", s.Index, s.Type, s.Addr, s.Size)
}

// entrySize returns the stride of the section header table.
func entrySize(hdr Header) uint32 {
	if uint32(hdr.Shentsize) >= SectionHeaderSize {
		return uint32(hdr.Shentsize)
	}
	return SectionHeaderSize
}

// readSection reads the section header table entry at index. It fails if the
// entry is not completely inside the image.
func readSection(img *Image, hdr Header, index int) (Section, error) {
	pos := uint64(hdr.Shoff) + uint64(index)*uint64(entrySize(hdr))
	if pos+SectionHeaderSize > uint64(img.Len()) {
		return Section{}, fmt.Errorf("%w: section header %d at 0x%x", ErrOutOfBounds, index, pos)
	}

	b, err := img.Bytes(uint32(pos), SectionHeaderSize)
	if err != nil {
		return Section{}, err
	}
	return Section{
		Index:      index,
		NameOffset: binary.BigEndian.Uint32(b[0:]),
		Type:       elf.SectionType(binary.BigEndian.Uint32(b[4:])),
		Flags:      elf.SectionFlag(binary.BigEndian.Uint32(b[8:])),
		Addr:       binary.BigEndian.Uint32(b[12:]),
		Offset:     binary.BigEndian.Uint32(b[16:]),
		Size:       binary.BigEndian.Uint32(b[20:]),
	}, nil
}

// Sections returns the section header table entries of a validated image.
// The reserved entry at index 0 and any other empty placeholder entries are
// never produced. The sequence ends early at the first entry that does not
// fit into the image. It can be iterated any number of times.
func Sections(img *Image, hdr Header) iter.Seq[Section] {
	return func(yield func(Section) bool) {
		for i := 1; i < int(hdr.Shnum); i++ {
			sec, err := readSection(img, hdr, i)
			if err != nil {
				return
			}
			if sec.Type == elf.SHT_NULL {
				continue
			}
			if !yield(sec) {
				return
			}
		}
	}
}

// SectionName resolves the name of sec through the string table section
// designated by the header.
func SectionName(img *Image, hdr Header, sec Section) (string, error) {
	if hdr.Shstrndx == uint16(elf.SHN_UNDEF) || hdr.Shstrndx >= hdr.Shnum {
		return "", fmt.Errorf("%w: index %d", ErrNoStringTable, hdr.Shstrndx)
	}
	strtab, err := readSection(img, hdr, int(hdr.Shstrndx))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoStringTable, err)
	}
	if strtab.Type != elf.SHT_STRTAB {
		return "", fmt.Errorf("%w: section %d has type %s", ErrNoStringTable, strtab.Index, strtab.Type)
	}

	if sec.NameOffset >= strtab.Size {
		return "", fmt.Errorf("%w: offset 0x%x table size 0x%x", ErrNameOutOfBounds, sec.NameOffset, strtab.Size)
	}
	end := uint64(strtab.Offset) + uint64(strtab.Size)
	if end > uint64(img.Len()) {
		return "", fmt.Errorf("%w: string table ends at 0x%x", ErrOutOfBounds, end)
	}

	name, err := img.CString(strtab.Offset+sec.NameOffset, uint32(end))
	if err != nil {
		return "", fmt.Errorf("reading name of section %d: %w", sec.Index, err)
	}
	return name, nil
}

// SectionData returns the file contents of a section. Sections without file
// contents return no data.
func SectionData(img *Image, sec Section) ([]byte, error) {
	if sec.Type == elf.SHT_NOBITS {
		return nil, nil
	}
	return img.Bytes(sec.Offset, sec.Size)
}

// Memory is the target address space sections are mapped into.
type Memory interface {
	Write(addr uint32, data []byte) error
	Fill(addr uint32, value byte, size uint32) error
}

// Action describes what MapSection did with a section.
type Action int

// Mapping actions.
const (
	Skipped Action = iota
	Copied
	Zeroed
)

func (a Action) String() string {
	switch a {
	case Copied:
		return "copying"
	case Zeroed:
		return "zeroing"
	default:
		return "skipped"
	}
}

// MapSection writes an allocated section to its target address. Program data
// is copied from the image, uninitialized data is zero filled and all other
// section types are skipped.
//
// The target addresses are not checked against anything: the loaded program
// and the loader share one address space and a section may overwrite any
// memory, including the loader's own.
func MapSection(img *Image, sec Section, mem Memory) (Action, error) {
	if !sec.Allocated() {
		return Skipped, nil
	}

	switch sec.Type {
	case elf.SHT_PROGBITS:
		data, err := img.Bytes(sec.Offset, sec.Size)
		if err != nil {
			return Skipped, fmt.Errorf("reading %s: %w", sec, err)
		}
		if err := mem.Write(sec.Addr, data); err != nil {
			return Skipped, fmt.Errorf("writing %s: %w", sec, err)
		}
		return Copied, nil

	case elf.SHT_NOBITS:
		if err := mem.Fill(sec.Addr, 0, sec.Size); err != nil {
			return Skipped, fmt.Errorf("zeroing %s: %w", sec, err)
		}
		return Zeroed, nil

	default:
		return Skipped, nil
	}
}
