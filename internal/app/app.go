// Package app provides the main application helpers of the launcher.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/retroenv/hhklaunch/internal/options"
	"github.com/retroenv/retrogolib/log"
)

// MountRoot checks that the host directory of the storage volume exists and
// returns its absolute path.
func MountRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving volume root %s: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("mounting volume root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("volume root %s is not a directory", abs)
	}
	return abs, nil
}

// PrintInfo prints the information about the mounted volume and the scan
// settings.
func PrintInfo(logger *log.Logger, opts options.Program, root string) {
	if opts.Quiet {
		return
	}

	logger.Info("Mounted storage volume",
		log.String("root", root),
		log.String("directory", opts.Directory),
		log.String("pattern", opts.Pattern),
	)
	if opts.Verify {
		logger.Info("Mapped sections are verified before running")
	}
	logger.Debug("Video memory",
		log.Hex("address", opts.Display.Address),
		log.Int("width", opts.Display.Width),
		log.Int("height", opts.Display.Height),
	)
}
