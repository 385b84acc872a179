package pipeline

import (
	"bytes"
	"context"
	"debug/elf"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/retroenv/hhklaunch/internal/display"
	"github.com/retroenv/hhklaunch/internal/elfimage"
	"github.com/retroenv/hhklaunch/internal/elfimage/elftest"
	"github.com/retroenv/hhklaunch/internal/flash"
	"github.com/retroenv/hhklaunch/internal/launcher"
	"github.com/retroenv/hhklaunch/internal/options"
	"github.com/retroenv/hhklaunch/internal/registry"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

const textAddr = 0x8cff0000

func app(name string) []byte {
	b := elftest.New().
		ProgBits(".text", elf.SHF_ALLOC|elf.SHF_EXECINSTR, textAddr, []byte{0x00, 0x0b, 0x00, 0x09}).
		Metadata("name", name)
	b.Entry = textAddr
	return b.Bytes()
}

func testVolume() fstest.MapFS {
	return fstest.MapFS{
		"alpha.hhk":       {Data: app("Alpha")},
		"beta.hhk":        {Data: app("Beta")},
		"broken.hhk":      {Data: []byte("not an application")},
		"readme.txt":      {Data: []byte("hello")},
		"games/snake.hhk": {Data: app("Snake")},
	}
}

func testOptions(command string, args ...string) options.Program {
	return options.Program{
		Positional: options.Positional{Command: command, Args: args},
		Parameters: options.Parameters{
			Directory: registry.DefaultDirectory,
			Pattern:   registry.DefaultPattern,
		},
		Flags:   options.Flags{MaxApps: registry.DefaultMaxApps},
		Display: display.Config{Address: display.DefaultAddress, Width: 8, Height: 4},
	}
}

type recorder struct {
	calls []uint32
}

func (r *recorder) Call(entry uint32) error {
	r.calls = append(r.calls, entry)
	return nil
}

func TestNew(t *testing.T) {
	p, err := New(log.NewTestLogger(t), testOptions(options.CommandList), testVolume(), nil)
	assert.NoError(t, err)
	assert.NotNil(t, p.registry)
	assert.NotNil(t, p.launcher)

	// video memory starts out white
	pixel, err := p.vram.Pixel(7, 3)
	assert.NoError(t, err)
	assert.Equal(t, uint16(display.White), pixel)
}

func TestNewInvalidDisplay(t *testing.T) {
	opts := testOptions(options.CommandList)
	opts.Display.Width = 0
	_, err := New(log.NewTestLogger(t), opts, testVolume(), nil)
	assert.Error(t, err)
}

func TestExecuteList(t *testing.T) {
	p, err := New(log.NewTestLogger(t), testOptions(options.CommandList), testVolume(), nil)
	assert.NoError(t, err)

	buf := &bytes.Buffer{}
	assert.NoError(t, p.Execute(context.Background(), buf))

	out := buf.String()
	assert.True(t, strings.Contains(out, "Alpha"))
	assert.True(t, strings.Contains(out, "Beta"))
	assert.True(t, strings.Contains(out, "broken.hhk"))
	assert.False(t, strings.Contains(out, "readme.txt"))
	assert.False(t, strings.Contains(out, "Snake"))
}

func TestExecuteListMissingDirectory(t *testing.T) {
	opts := testOptions(options.CommandList)
	opts.Directory = `\fls0\missing\`
	p, err := New(log.NewTestLogger(t), opts, testVolume(), nil)
	assert.NoError(t, err)

	err = p.Execute(context.Background(), &bytes.Buffer{})
	assert.True(t, errors.Is(err, flash.ENOPATH))
}

func TestExecuteRun(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{name: "catalog index", target: "1"},
		{name: "relative path", target: "beta.hhk"},
		{name: "volume path", target: `\fls0\beta.hhk`},
		{name: "subdirectory", target: `games\snake.hhk`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			p, err := New(log.NewTestLogger(t), testOptions(options.CommandRun, tt.target), testVolume(), rec)
			assert.NoError(t, err)

			buf := &bytes.Buffer{}
			assert.NoError(t, p.Execute(context.Background(), buf))
			assert.Equal(t, []uint32{textAddr}, rec.calls)
			assert.True(t, strings.Contains(buf.String(), "application returned"))
			assert.Equal(t, 0, p.volume.Stats().OpenFiles)
		})
	}
}

func TestExecuteRunFailures(t *testing.T) {
	tests := []struct {
		name   string
		target string
		check  func(error) bool
	}{
		{
			name:   "invalid file",
			target: "broken.hhk",
			check:  func(err error) bool { return elfimage.ReasonOf(err) == elfimage.ReasonBadMagic },
		},
		{
			name:   "missing file",
			target: "gone.hhk",
			check:  func(err error) bool { return errors.Is(err, flash.ENOENT) },
		},
		{
			name:   "index out of range",
			target: "17",
			check:  func(err error) bool { return errors.Is(err, registry.ErrNoSuchApp) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			p, err := New(log.NewTestLogger(t), testOptions(options.CommandRun, tt.target), testVolume(), rec)
			assert.NoError(t, err)

			err = p.Execute(context.Background(), &bytes.Buffer{})
			assert.Error(t, err)
			assert.True(t, tt.check(err))
			assert.Len(t, rec.calls, 0)
		})
	}
}

func TestExecuteCancelled(t *testing.T) {
	p, err := New(log.NewTestLogger(t), testOptions(options.CommandList), testVolume(), nil)
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = p.Execute(ctx, &bytes.Buffer{})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestExecuteUnsupported(t *testing.T) {
	p, err := New(log.NewTestLogger(t), testOptions("format"), testVolume(), nil)
	assert.NoError(t, err)
	assert.ErrorContains(t, p.Execute(context.Background(), &bytes.Buffer{}), "unsupported command")
}

type fakeTerminal struct {
	*strings.Reader
	out *bytes.Buffer
}

func (f fakeTerminal) Write(p []byte) (int, error) {
	return f.out.Write(p)
}

func TestMenu(t *testing.T) {
	rec := &recorder{}
	p, err := New(log.NewTestLogger(t), testOptions(options.CommandMenu), testVolume(), rec)
	assert.NoError(t, err)

	// alpha.hhk, beta.hhk, broken.hhk sorted by name
	ft := fakeTerminal{Reader: strings.NewReader("0\r2\rq\r"), out: &bytes.Buffer{}}
	assert.NoError(t, p.Menu(context.Background(), ft))

	assert.Equal(t, []uint32{textAddr}, rec.calls)
	out := ft.out.String()
	assert.True(t, strings.Contains(out, "application returned"))
	assert.True(t, strings.Contains(out, "Not an ELF - invalid magic"))
}

func TestMenuChainLoad(t *testing.T) {
	var p *Pipeline
	var chained []launcher.Result
	depth := 0
	exec := launcher.ExecutorFunc(func(entry uint32) error {
		depth++
		if depth > 1 {
			return nil
		}
		result, err := p.launcher.Launch(`\fls0\games\snake.hhk`)
		chained = append(chained, result)
		return err
	})

	var err error
	p, err = New(log.NewTestLogger(t), testOptions(options.CommandMenu), testVolume(), exec)
	assert.NoError(t, err)

	ft := fakeTerminal{Reader: strings.NewReader("1\r"), out: &bytes.Buffer{}}
	assert.NoError(t, p.Menu(context.Background(), ft))
	assert.Len(t, chained, 1)
	assert.Equal(t, `\fls0\games\snake.hhk`, chained[0].Path)
}
