package writer

import (
	"bytes"
	"debug/elf"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/retroenv/hhklaunch/internal/elfimage"
	"github.com/retroenv/hhklaunch/internal/elfimage/elftest"
	"github.com/retroenv/hhklaunch/internal/flash"
	"github.com/retroenv/hhklaunch/internal/launcher"
	"github.com/retroenv/hhklaunch/internal/registry"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func TestCatalog(t *testing.T) {
	files := fstest.MapFS{
		"good.hhk": {Data: elftest.New().Metadata("name", "Snake|Deluxe").Metadata("version", "1.2").Bytes()},
		"bad.hhk":  {Data: make([]byte, 2048)},
	}
	reg := registry.New(log.NewTestLogger(t), flash.New(files), registry.DefaultConfig())
	cat, err := reg.Scan("")
	assert.NoError(t, err)

	buf := &bytes.Buffer{}
	assert.NoError(t, New(buf).Catalog(cat))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "#"))
	assert.True(t, strings.Contains(lines[0], "NAME"))
	assert.True(t, strings.Contains(lines[1], "(Not an ELF - invalid magic)"))
	assert.True(t, strings.Contains(lines[1], "2.0 kB"))
	assert.True(t, strings.Contains(lines[1], "bad.hhk"))
	assert.True(t, strings.Contains(lines[2], "Snake Deluxe"))
	assert.True(t, strings.Contains(lines[2], "1.2"))
	assert.True(t, strings.HasSuffix(lines[2], "good.hhk"))
}

func TestCatalogEmpty(t *testing.T) {
	buf := &bytes.Buffer{}
	assert.NoError(t, New(buf).Catalog(&registry.Catalog{}))
	assert.Equal(t, "No applications found\n", buf.String())
}

func TestLaunchResult(t *testing.T) {
	result := launcher.Result{
		Path:  `\fls0\app.hhk`,
		Entry: 0x8cff0000,
		Sections: []launcher.MappedSection{
			{
				Name:    ".text",
				Section: elfimage.Section{Index: 1, Type: elf.SHT_PROGBITS, Addr: 0x8cff0000, Size: 0x20},
				Action:  elfimage.Copied,
			},
			{
				Name:    ".data",
				Section: elfimage.Section{Index: 2, Type: elf.SHT_PROGBITS, Addr: 0x8cff1000, Size: 0x10},
				Err:     errors.New("read outside of image"),
			},
		},
	}

	buf := &bytes.Buffer{}
	assert.NoError(t, New(buf).LaunchResult(result))
	out := buf.String()
	assert.True(t, strings.Contains(out, ".text"))
	assert.True(t, strings.Contains(out, "0x8cff0000"))
	assert.True(t, strings.Contains(out, "0x00000020"))
	assert.False(t, strings.Contains(out, "0x008cff0000"))
	assert.True(t, strings.Contains(out, "copying"))
	assert.True(t, strings.Contains(out, "skipped: read outside of image"))
	assert.True(t, strings.Contains(out, "Entry point 0x8cff0000 - application returned"))
}

func TestMetadata(t *testing.T) {
	buf := &bytes.Buffer{}
	assert.NoError(t, New(buf).Metadata(registry.Entry{Name: "Tetris", Version: "0.9"}))
	assert.Equal(t, "App name: Tetris\nApp version: 0.9\n", buf.String())
}

func TestHexDump(t *testing.T) {
	data := make([]byte, 18)
	for i := range data {
		data[i] = byte(i)
	}

	buf := &bytes.Buffer{}
	assert.NoError(t, New(buf).HexDump(0x8cff0000, data))
	assert.Equal(t,
		"8cff0000: 00 01 02 03 04 05 06 07 08 09 0a 0b 0c 0d 0e 0f\n"+
			"8cff0010: 10 11\n",
		buf.String())
}
