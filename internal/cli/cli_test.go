package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/retroenv/hhklaunch/internal/display"
	"github.com/retroenv/hhklaunch/internal/options"
	"github.com/retroenv/retrogolib/assert"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want options.Program
	}{
		{
			name: "defaults",
			args: []string{"prog", "list"},
			want: options.Program{
				Positional: options.Positional{Command: "list", Args: []string{}},
				Parameters: options.Parameters{Root: ".", Directory: `\fls0\`, Pattern: "*.hhk"},
				Flags:      options.Flags{MaxApps: 64},
				Display:    display.DefaultConfig(),
			},
		},
		{
			name: "run with options",
			args: []string{"prog", "-root", "/mnt/calc", "-d", `\fls0\games`, "-max", "8", "-verify", "RUN", "3"},
			want: options.Program{
				Positional: options.Positional{Command: "run", Args: []string{"3"}},
				Parameters: options.Parameters{Root: "/mnt/calc", Directory: `\fls0\games`, Pattern: "*.hhk"},
				Flags:      options.Flags{MaxApps: 8, Verify: true},
				Display:    display.DefaultConfig(),
			},
		},
		{
			name: "inspect batch",
			args: []string{"prog", "-batch", "build/*.hhk", "-q", "inspect"},
			want: options.Program{
				Positional: options.Positional{Command: "inspect", Args: []string{}},
				Parameters: options.Parameters{Root: ".", Directory: `\fls0\`, Pattern: "*.hhk", Batch: "build/*.hhk"},
				Flags:      options.Flags{MaxApps: 64, Quiet: true},
				Display:    display.DefaultConfig(),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.args)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseArgsUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{name: "no command", args: []string{"prog"}},
		{name: "unknown flag", args: []string{"prog", "-x", "list"}},
		{name: "unknown command", args: []string{"prog", "launch"}, msg: "unsupported command: launch. Valid commands: list, run, inspect, menu"},
		{name: "run without target", args: []string{"prog", "run"}, msg: "run expects exactly one application index or path"},
		{name: "inspect without files", args: []string{"prog", "inspect"}, msg: "inspect expects a file name or the -batch option"},
		{name: "list with argument", args: []string{"prog", "list", "extra"}, msg: "list does not take arguments"},
		{name: "flag after command", args: []string{"prog", "run", "1", "-q"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseArgs(tt.args)
			var usageErr *UsageError
			assert.True(t, errors.As(err, &usageErr))
			if tt.msg != "" {
				assert.Equal(t, tt.msg, usageErr.Error())
			}
		})
	}
}

func TestParseArgsInvalidMax(t *testing.T) {
	_, err := parseArgs([]string{"prog", "-max", "0", "list"})
	assert.ErrorContains(t, err, "invalid maximum number of applications 0")
}

func TestParseArgsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launch.toml")
	content := `
root = "/from/config"
pattern = "*.bin"
max_apps = 12
verify = true

[display]
width = 384
height = 216
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}

	opts, err := parseArgs([]string{"prog", "-c", path, "-p", "*.hhk", "list"})
	assert.NoError(t, err)
	assert.Equal(t, "/from/config", opts.Root)
	// flags win over the config file
	assert.Equal(t, "*.hhk", opts.Pattern)
	assert.Equal(t, 12, opts.MaxApps)
	assert.True(t, opts.Verify)
	assert.Equal(t, display.Config{Address: display.DefaultAddress, Width: 384, Height: 216}, opts.Display)

	_, err = parseArgs([]string{"prog", "-c", filepath.Join(t.TempDir(), "none.toml"), "list"})
	assert.ErrorContains(t, err, "reading config file")
}
