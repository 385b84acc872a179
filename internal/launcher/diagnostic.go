package launcher

import (
	"errors"
	"fmt"

	"github.com/retroenv/hhklaunch/internal/elfimage"
	"github.com/retroenv/hhklaunch/internal/flash"
	"github.com/retroenv/hhklaunch/internal/registry"
)

// Diagnostic returns a one line message describing why a launch failed, for
// presentation to the user.
func Diagnostic(err error) string {
	if err == nil {
		return "Application finished"
	}

	if reason := elfimage.ReasonOf(err); reason != elfimage.ReasonNone {
		return reason.String()
	}

	var pathErr *flash.PathError
	switch {
	case errors.Is(err, ErrBusy):
		return "Cannot launch - another application is being loaded"
	case errors.Is(err, ErrVerification):
		return "Load failed - memory does not match the file"
	case errors.Is(err, registry.ErrNoSuchApp):
		return "No such application"
	case errors.Is(err, elfimage.ErrReleased):
		return "Load failed - file was closed while loading"
	case errors.As(err, &pathErr):
		return fmt.Sprintf("Could not open %s - %s (%s)", pathErr.Path, pathErr.Errno, pathErr.Errno.Name())
	default:
		return err.Error()
	}
}
