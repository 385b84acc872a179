// Package elftest builds synthetic executable images for tests.
package elftest

import (
	"debug/elf"
	"encoding/binary"

	"github.com/retroenv/hhklaunch/internal/elfimage"
)

type section struct {
	name  string
	typ   elf.SectionType
	flags elf.SectionFlag
	addr  uint32
	data  []byte
	size  uint32 // used for sections without file contents
}

// Builder assembles a big-endian ELF32 image. All header fields default to
// values that pass validation and can be changed before calling Bytes.
type Builder struct {
	Magic        [4]byte
	Class        elf.Class
	Data         elf.Data
	IdentVersion elf.Version
	OSABI        elf.OSABI
	ABIVersion   uint8
	Type         elf.Type
	Machine      elf.Machine
	Version      uint32
	Entry        uint32

	sections []section
}

// New returns a builder for a valid executable image without sections.
func New() *Builder {
	b := &Builder{
		Class:        elfimage.ExpectedClass,
		Data:         elfimage.ExpectedData,
		IdentVersion: elfimage.ExpectedVersion,
		OSABI:        elfimage.ExpectedABI,
		Type:         elfimage.ExpectedType,
		Machine:      elfimage.ExpectedMachine,
		Version:      uint32(elfimage.ExpectedVersion),
		Entry:        0x8cff0000,
	}
	copy(b.Magic[:], elf.ELFMAG)
	return b
}

// ProgBits adds a program data section.
func (b *Builder) ProgBits(name string, flags elf.SectionFlag, addr uint32, data []byte) *Builder {
	b.sections = append(b.sections, section{
		name:  name,
		typ:   elf.SHT_PROGBITS,
		flags: flags,
		addr:  addr,
		data:  data,
		size:  uint32(len(data)),
	})
	return b
}

// NoBits adds an uninitialized data section.
func (b *Builder) NoBits(name string, addr, size uint32) *Builder {
	b.sections = append(b.sections, section{
		name:  name,
		typ:   elf.SHT_NOBITS,
		flags: elf.SHF_ALLOC | elf.SHF_WRITE,
		addr:  addr,
		size:  size,
	})
	return b
}

// Metadata adds a NUL terminated metadata string section named .hollyhock_<key>.
func (b *Builder) Metadata(key, value string) *Builder {
	data := append([]byte(value), 0)
	return b.ProgBits(".hollyhock_"+key, 0, 0, data)
}

// Section adds a section of arbitrary type.
func (b *Builder) Section(name string, typ elf.SectionType, flags elf.SectionFlag, addr uint32, data []byte) *Builder {
	b.sections = append(b.sections, section{
		name:  name,
		typ:   typ,
		flags: flags,
		addr:  addr,
		data:  data,
		size:  uint32(len(data)),
	})
	return b
}

// Layout describes where Bytes placed the parts of the image.
type Layout struct {
	Shoff        uint32
	Shstrndx     uint16
	StrtabOffset uint32
	StrtabSize   uint32
}

// Bytes returns the encoded image.
func (b *Builder) Bytes() []byte {
	data, _ := b.Build()
	return data
}

// Build returns the encoded image and its layout. The image consists of the
// header, the section contents, the section name string table and the
// section header table with the reserved entry at index 0 and the string
// table as last entry.
func (b *Builder) Build() ([]byte, Layout) {
	be := binary.BigEndian
	out := make([]byte, elfimage.HeaderSize)

	strtab := []byte{0}
	nameOffsets := make([]uint32, len(b.sections)+1)
	for i, sec := range b.sections {
		nameOffsets[i] = uint32(len(strtab))
		strtab = append(strtab, sec.name...)
		strtab = append(strtab, 0)
	}
	nameOffsets[len(b.sections)] = uint32(len(strtab))
	strtab = append(strtab, ".shstrtab"...)
	strtab = append(strtab, 0)

	offsets := make([]uint32, len(b.sections))
	for i, sec := range b.sections {
		offsets[i] = uint32(len(out))
		out = append(out, sec.data...)
	}

	layout := Layout{
		StrtabOffset: uint32(len(out)),
		StrtabSize:   uint32(len(strtab)),
		Shstrndx:     uint16(len(b.sections) + 1),
	}
	out = append(out, strtab...)
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	layout.Shoff = uint32(len(out))

	// reserved entry
	out = append(out, make([]byte, elfimage.SectionHeaderSize)...)

	for i, sec := range b.sections {
		out = appendSectionHeader(out, nameOffsets[i], sec.typ, sec.flags, sec.addr, offsets[i], sec.size)
	}
	out = appendSectionHeader(out, nameOffsets[len(b.sections)], elf.SHT_STRTAB, 0, 0,
		layout.StrtabOffset, layout.StrtabSize)

	copy(out[0:4], b.Magic[:])
	out[elf.EI_CLASS] = byte(b.Class)
	out[elf.EI_DATA] = byte(b.Data)
	out[elf.EI_VERSION] = byte(b.IdentVersion)
	out[elf.EI_OSABI] = byte(b.OSABI)
	out[elf.EI_ABIVERSION] = b.ABIVersion
	be.PutUint16(out[16:], uint16(b.Type))
	be.PutUint16(out[18:], uint16(b.Machine))
	be.PutUint32(out[20:], b.Version)
	be.PutUint32(out[24:], b.Entry)
	be.PutUint32(out[32:], layout.Shoff)
	be.PutUint16(out[40:], elfimage.HeaderSize)
	be.PutUint16(out[46:], elfimage.SectionHeaderSize)
	be.PutUint16(out[48:], uint16(len(b.sections)+2))
	be.PutUint16(out[50:], layout.Shstrndx)

	return out, layout
}

func appendSectionHeader(out []byte, name uint32, typ elf.SectionType, flags elf.SectionFlag,
	addr, offset, size uint32) []byte {

	var sh [elfimage.SectionHeaderSize]byte
	be := binary.BigEndian
	be.PutUint32(sh[0:], name)
	be.PutUint32(sh[4:], uint32(typ))
	be.PutUint32(sh[8:], uint32(flags))
	be.PutUint32(sh[12:], addr)
	be.PutUint32(sh[16:], offset)
	be.PutUint32(sh[20:], size)
	be.PutUint32(sh[32:], 1) // alignment
	return append(out, sh[:]...)
}
