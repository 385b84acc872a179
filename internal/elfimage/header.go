package elfimage

import (
	"debug/elf"
	"errors"
	"fmt"
)

// Expected header values of a loadable executable.
const (
	ExpectedClass   = elf.ELFCLASS32
	ExpectedData    = elf.ELFDATA2MSB
	ExpectedVersion = elf.EV_CURRENT
	ExpectedABI     = elf.ELFOSABI_NONE // System V
	ExpectedType    = elf.ET_EXEC
	ExpectedMachine = elf.EM_SH
)

// HeaderSize is the size of the ELF32 file header.
const HeaderSize = 52

// header field offsets
const (
	offMagic        = 0
	offClass        = elf.EI_CLASS
	offData         = elf.EI_DATA
	offIdentVersion = elf.EI_VERSION
	offOSABI        = elf.EI_OSABI
	offABIVersion   = elf.EI_ABIVERSION
	offType         = 16
	offMachine      = 18
	offVersion      = 20
	offEntry        = 24
	offPhoff        = 28
	offShoff        = 32
	offFlags        = 36
	offShentsize    = 46
	offShnum        = 48
	offShstrndx     = 50
)

// Header is the parsed file header of a validated image.
type Header struct {
	Class        elf.Class
	Data         elf.Data
	IdentVersion elf.Version
	OSABI        elf.OSABI
	ABIVersion   uint8
	Type         elf.Type
	Machine      elf.Machine
	Version      uint32
	Entry        uint32
	Phoff        uint32
	Shoff        uint32
	Flags        uint32
	Shentsize    uint16
	Shnum        uint16
	Shstrndx     uint16
}

// Reason identifies the first header check an image failed.
type Reason int

// Validation failure reasons, in the order the checks are performed.
const (
	ReasonNone Reason = iota
	ReasonBadMagic
	ReasonWrongClass
	ReasonWrongEndianness
	ReasonWrongIdentVersion
	ReasonWrongABI
	ReasonNotExecutable
	ReasonWrongMachine
	ReasonWrongVersion
	ReasonTruncated
)

var reasonText = map[Reason]string{
	ReasonNone:              "valid executable",
	ReasonBadMagic:          "Not an ELF - invalid magic",
	ReasonWrongClass:        "Invalid ELF - not 32-bit objects",
	ReasonWrongEndianness:   "Invalid ELF - not 2's complement big endian",
	ReasonWrongIdentVersion: "Invalid ELF - not current version (e_ident[EI_VERSION])",
	ReasonWrongABI:          "Invalid ELF - incorrect ABI",
	ReasonNotExecutable:     "Invalid ELF - not an executable file",
	ReasonWrongMachine:      "Invalid ELF - wrong machine type",
	ReasonWrongVersion:      "Invalid ELF - not current version (e_version)",
	ReasonTruncated:         "Invalid ELF - header is truncated",
}

func (r Reason) String() string {
	if s, ok := reasonText[r]; ok {
		return s
	}
	return fmt.Sprintf("unknown reason %d", int(r))
}

// Rejection is returned by Validate for images that are not loadable.
type Rejection struct {
	Reason Reason
	Value  uint32 // value of the offending field
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s (0x%x)", r.Reason, r.Value)
}

// Is matches rejections by reason, ignoring the offending value.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Reason == r.Reason
}

// Sentinel rejections for use with errors.Is.
var (
	ErrBadMagic          = &Rejection{Reason: ReasonBadMagic}
	ErrWrongClass        = &Rejection{Reason: ReasonWrongClass}
	ErrWrongEndianness   = &Rejection{Reason: ReasonWrongEndianness}
	ErrWrongIdentVersion = &Rejection{Reason: ReasonWrongIdentVersion}
	ErrWrongABI          = &Rejection{Reason: ReasonWrongABI}
	ErrNotExecutable     = &Rejection{Reason: ReasonNotExecutable}
	ErrWrongMachine      = &Rejection{Reason: ReasonWrongMachine}
	ErrWrongVersion      = &Rejection{Reason: ReasonWrongVersion}
	ErrTruncated         = &Rejection{Reason: ReasonTruncated}
)

// ReasonOf returns the rejection reason carried by err, or ReasonNone.
func ReasonOf(err error) Reason {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return ReasonNone
}

// Validate checks that img is a loadable executable and returns its header.
// The checks run in a fixed order and stop at the first failure, fields
// behind a failed check are never read.
func Validate(img *Image) (Header, error) {
	var hdr Header

	magic, err := img.Bytes(offMagic, uint32(len(elf.ELFMAG)))
	if errors.Is(err, ErrReleased) {
		return hdr, err
	}
	if err != nil || string(magic) != elf.ELFMAG {
		var value uint32
		for _, b := range magic {
			value = value<<8 | uint32(b)
		}
		return hdr, &Rejection{Reason: ReasonBadMagic, Value: value}
	}

	r := headerReader{img: img}

	hdr.Class = elf.Class(r.u8(offClass))
	if r.err == nil && hdr.Class != ExpectedClass {
		return hdr, &Rejection{Reason: ReasonWrongClass, Value: uint32(hdr.Class)}
	}
	hdr.Data = elf.Data(r.u8(offData))
	if r.err == nil && hdr.Data != ExpectedData {
		return hdr, &Rejection{Reason: ReasonWrongEndianness, Value: uint32(hdr.Data)}
	}
	hdr.IdentVersion = elf.Version(r.u8(offIdentVersion))
	if r.err == nil && hdr.IdentVersion != ExpectedVersion {
		return hdr, &Rejection{Reason: ReasonWrongIdentVersion, Value: uint32(hdr.IdentVersion)}
	}
	// the ABI version byte is not checked
	hdr.OSABI = elf.OSABI(r.u8(offOSABI))
	if r.err == nil && hdr.OSABI != ExpectedABI {
		return hdr, &Rejection{Reason: ReasonWrongABI, Value: uint32(hdr.OSABI)}
	}
	hdr.Type = elf.Type(r.u16(offType))
	if r.err == nil && hdr.Type != ExpectedType {
		return hdr, &Rejection{Reason: ReasonNotExecutable, Value: uint32(hdr.Type)}
	}
	hdr.Machine = elf.Machine(r.u16(offMachine))
	if r.err == nil && hdr.Machine != ExpectedMachine {
		return hdr, &Rejection{Reason: ReasonWrongMachine, Value: uint32(hdr.Machine)}
	}
	hdr.Version = r.u32(offVersion)
	if r.err == nil && hdr.Version != uint32(ExpectedVersion) {
		return hdr, &Rejection{Reason: ReasonWrongVersion, Value: hdr.Version}
	}

	hdr.ABIVersion = r.u8(offABIVersion)
	hdr.Entry = r.u32(offEntry)
	hdr.Phoff = r.u32(offPhoff)
	hdr.Shoff = r.u32(offShoff)
	hdr.Flags = r.u32(offFlags)
	hdr.Shentsize = r.u16(offShentsize)
	hdr.Shnum = r.u16(offShnum)
	hdr.Shstrndx = r.u16(offShstrndx)

	if r.err != nil {
		return Header{}, &Rejection{Reason: ReasonTruncated, Value: uint32(img.Len())}
	}
	return hdr, nil
}

// headerReader reads header fields and remembers the first read error,
// later reads after an error return zero.
type headerReader struct {
	img *Image
	err error
}

func (r *headerReader) u8(offset uint32) uint8 {
	if r.err != nil {
		return 0
	}
	var v uint8
	v, r.err = r.img.Uint8(offset)
	return v
}

func (r *headerReader) u16(offset uint32) uint16 {
	if r.err != nil {
		return 0
	}
	var v uint16
	v, r.err = r.img.Uint16(offset)
	return v
}

func (r *headerReader) u32(offset uint32) uint32 {
	if r.err != nil {
		return 0
	}
	var v uint32
	v, r.err = r.img.Uint32(offset)
	return v
}
