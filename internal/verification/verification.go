// Package verification verifies that mapped sections recreate the executable
// contents in memory.
package verification

import (
	"bytes"
	"debug/elf"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/retroenv/hhklaunch/internal/elfimage"
	"github.com/retroenv/retrogolib/log"
)

const (
	maxLoggedMismatches = 10
	chunkSize           = 4096
)

var zeros = make([]byte, chunkSize)

// Memory is the address space that is verified.
type Memory interface {
	ReadInto(addr uint32, buf []byte) error
}

// VerifyMapping checks that every allocated section of the image is present
// at its target address: program data must equal the file contents and
// uninitialized data must be zero. All mismatching sections are reported.
// Memory is compared in chunks, section sizes taken from the image do not
// cause allocations of the same size.
func VerifyMapping(logger *log.Logger, img *elfimage.Image, hdr elfimage.Header, mem Memory) error {
	var result *multierror.Error
	buf := make([]byte, chunkSize)

	for sec := range elfimage.Sections(img, hdr) {
		if !sec.Allocated() {
			continue
		}

		var expected []byte
		switch sec.Type {
		case elf.SHT_PROGBITS:
			data, err := elfimage.SectionData(img, sec)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("%s: %w", sec, err))
				continue
			}
			expected = data
		case elf.SHT_NOBITS:
			// nil expects zero bytes
		default:
			continue
		}

		if err := verifySection(logger, sec, expected, mem, buf); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

// verifySection compares the memory of a section chunk by chunk with
// expected, or with zero bytes if expected is nil.
func verifySection(logger *log.Logger, sec elfimage.Section, expected []byte, mem Memory, buf []byte) error {
	if uint64(sec.Addr)+uint64(sec.Size) > 1<<32 {
		return fmt.Errorf("%s: section wraps around the address space", sec)
	}
	if expected != nil && uint64(len(expected)) != uint64(sec.Size) {
		return fmt.Errorf("%s: mismatched lengths, %d != %d", sec, len(expected), sec.Size)
	}

	var diffs uint64
	for pos := uint32(0); pos < sec.Size; {
		n := min(uint32(len(buf)), sec.Size-pos)
		actual := buf[:n]
		addr := sec.Addr + pos
		if err := mem.ReadInto(addr, actual); err != nil {
			return fmt.Errorf("%s: %w", sec, err)
		}

		want := zeros[:n]
		if expected != nil {
			want = expected[pos : pos+n]
		}
		diffs += countMismatches(logger, addr, want, actual, diffs)
		pos += n
	}

	if diffs == 0 {
		return nil
	}
	return fmt.Errorf("%s mismatch: %d address mismatches", sec, diffs)
}

// countMismatches returns the number of bytes of actual that differ from
// expected. Only the first mismatches of a section are logged, logged is the
// count found before this chunk.
func countMismatches(logger *log.Logger, addr uint32, expected, actual []byte, logged uint64) uint64 {
	if bytes.Equal(expected, actual) {
		return 0
	}

	var diffs uint64
	for i, got := range actual {
		if expected[i] == got {
			continue
		}

		diffs++
		if logged+diffs <= maxLoggedMismatches {
			logger.Warn("Address mismatch",
				log.Hex("address", addr+uint32(i)),
				log.Hex("expected", expected[i]),
				log.Hex("got", got))
		}
	}
	return diffs
}
