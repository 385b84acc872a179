package flash

import (
	"errors"
	"fmt"
	"io/fs"
)

// Errno is a file system status code. All codes are negative.
type Errno int

// File system status codes.
const (
	ENOMEM               Errno = -1
	EINVAL               Errno = -2
	EDEVFAIL             Errno = -3
	EMOUNTED             Errno = -4
	EACCES               Errno = -5
	EBADFSID             Errno = -6
	ENOVOLUME            Errno = -7
	ENOPATH              Errno = -8
	EEXIST               Errno = -9
	ENAMETOOLONG         Errno = -10
	EOUTOFBOUND          Errno = -11
	EUNFORMAT            Errno = -12
	ENOSPC               Errno = -13
	ENOENT               Errno = -14
	EISDIRECTORY         Errno = -15
	ESHARE               Errno = -16
	EMFILE               Errno = -17
	EBADF                Errno = -18
	EEOF                 Errno = -19
	ENOTEMPTY            Errno = -20
	ECLUSTERSIZEMISMATCH Errno = -40
	ESYSTEM              Errno = -99
)

var errnoNames = map[Errno]struct{ name, text string }{
	ENOMEM:               {"ENOMEM", "out of memory"},
	EINVAL:               {"EINVAL", "invalid argument"},
	EDEVFAIL:             {"EDEVFAIL", "device failure"},
	EMOUNTED:             {"EMOUNTED", "volume is mounted"},
	EACCES:               {"EACCES", "access denied"},
	EBADFSID:             {"EBADFSID", "bad file system id"},
	ENOVOLUME:            {"ENOVOLUME", "no such volume"},
	ENOPATH:              {"ENOPATH", "no such path"},
	EEXIST:               {"EEXIST", "entry already exists"},
	ENAMETOOLONG:         {"ENAMETOOLONG", "name too long"},
	EOUTOFBOUND:          {"EOUTOFBOUND", "offset out of bounds"},
	EUNFORMAT:            {"EUNFORMAT", "volume is not formatted"},
	ENOSPC:               {"ENOSPC", "no space left"},
	ENOENT:               {"ENOENT", "no such entry"},
	EISDIRECTORY:         {"EISDIRECTORY", "entry is a directory"},
	ESHARE:               {"ESHARE", "sharing violation"},
	EMFILE:               {"EMFILE", "too many open handles"},
	EBADF:                {"EBADF", "bad handle"},
	EEOF:                 {"EEOF", "end of file"},
	ENOTEMPTY:            {"ENOTEMPTY", "directory not empty"},
	ECLUSTERSIZEMISMATCH: {"ECLUSTERSIZEMISMATCH", "cluster size mismatch"},
	ESYSTEM:              {"ESYSTEM", "system error"},
}

// Name returns the symbolic name of the code, for example ENOENT.
func (e Errno) Name() string {
	if n, ok := errnoNames[e]; ok {
		return n.name
	}
	return fmt.Sprintf("E%d", int(e))
}

func (e Errno) Error() string {
	if n, ok := errnoNames[e]; ok {
		return n.text
	}
	return fmt.Sprintf("unknown file system error %d", int(e))
}

// PathError records a failed file system operation.
type PathError struct {
	Op    string
	Path  string
	Errno Errno
	Err   error // underlying host error, can be nil
}

func (e *PathError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s (%s)", e.Op, e.Path, e.Errno, e.Errno.Name())
	}
	return fmt.Sprintf("%s %s: %s (%s): %v", e.Op, e.Path, e.Errno, e.Errno.Name(), e.Err)
}

func (e *PathError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Errno}
	}
	return []error{e.Errno, e.Err}
}

func newPathError(op, path string, err error) error {
	if errno, ok := err.(Errno); ok {
		return &PathError{Op: op, Path: path, Errno: errno}
	}
	return &PathError{
		Op:    op,
		Path:  path,
		Errno: ErrnoOf(err),
		Err:   err,
	}
}

// ErrnoOf translates an error to a status code. Errors of the host file
// system are mapped to the closest code, nil maps to 0.
func ErrnoOf(err error) Errno {
	if err == nil {
		return 0
	}

	var errno Errno
	switch {
	case errors.As(err, &errno):
		return errno
	case errors.Is(err, fs.ErrNotExist):
		return ENOENT
	case errors.Is(err, fs.ErrPermission):
		return EACCES
	case errors.Is(err, fs.ErrExist):
		return EEXIST
	case errors.Is(err, fs.ErrInvalid):
		return EINVAL
	case errors.Is(err, fs.ErrClosed):
		return EBADF
	default:
		return EDEVFAIL
	}
}
