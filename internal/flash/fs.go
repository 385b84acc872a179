// Package flash provides the storage volume applications are discovered and
// loaded from.
//
// Paths use the calculator notation with backslash separators and a leading
// volume name, for example \fls0\snake.hhk. The volume contents are served by
// any io/fs.FS, usually a host directory.
package flash

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"path"
	"strings"

	"github.com/retroenv/hhklaunch/internal/elfimage"
	"github.com/ryanuber/go-glob"
)

const (
	// Volume is the name of the user storage volume.
	Volume = "fls0"
	// Separator separates the elements of a path.
	Separator = `\`
	// Root is the root directory of the user storage volume.
	Root = Separator + Volume + Separator

	// storage address of the first file, only used for reporting
	flashBase = 0xa0400000
	fileAlign = 0x1000
)

// EntryType is the type of a directory entry returned by Find.
type EntryType int

// Directory entry types.
const (
	EntryTypeFile EntryType = iota + 1
	EntryTypeDirectory
)

func (t EntryType) String() string {
	switch t {
	case EntryTypeFile:
		return "file"
	case EntryTypeDirectory:
		return "directory"
	default:
		return fmt.Sprintf("EntryType(%d)", int(t))
	}
}

// FindInfo describes a directory entry returned by Find.
type FindInfo struct {
	Name string
	Type EntryType
	Size int64
}

// Stats contains handle usage counters of a volume.
type Stats struct {
	OpenFinds int
	OpenFiles int
	PeakFinds int
	PeakFiles int
}

// FS is a mounted storage volume.
type FS struct {
	fsys     fs.FS
	nextBase uint32
	stats    Stats
}

// New mounts fsys as the user storage volume.
func New(fsys fs.FS) *FS {
	return &FS{
		fsys:     fsys,
		nextBase: flashBase,
	}
}

// Stats returns the handle usage counters.
func (f *FS) Stats() Stats {
	return f.stats
}

// Join builds a volume path from a directory and a file name.
func Join(dir, name string) string {
	if !strings.HasSuffix(dir, Separator) {
		dir += Separator
	}
	return dir + name
}

// resolve translates a volume path to a path of the underlying file system.
func resolve(volumePath string) (string, error) {
	p := strings.TrimPrefix(volumePath, Separator)
	volume, rest, _ := strings.Cut(p, Separator)
	if !strings.EqualFold(volume, Volume) {
		return "", ENOVOLUME
	}

	rest = strings.Trim(rest, Separator)
	if rest == "" {
		return ".", nil
	}
	name := strings.ReplaceAll(rest, Separator, "/")
	if !fs.ValidPath(name) {
		return "", EINVAL
	}
	return name, nil
}

// Find returns the entries of a directory whose names match the wildcard
// pattern of the last path element, for example \fls0\*.hhk. Matching is
// case insensitive. The directory handle is held while the sequence is
// iterated and released when it ends or the consumer stops early. An error
// is produced as last element of the sequence.
func (f *FS) Find(pattern string) iter.Seq2[FindInfo, error] {
	return func(yield func(FindInfo, error) bool) {
		idx := strings.LastIndex(pattern, Separator)
		dirPath, filePattern := pattern[:idx+1], strings.ToLower(pattern[idx+1:])

		dir, err := f.openDir(dirPath)
		if err != nil {
			yield(FindInfo{}, newPathError("find", pattern, err))
			return
		}
		f.acquireFind()
		defer func() {
			f.stats.OpenFinds--
			_ = dir.Close()
		}()

		for {
			entries, err := dir.ReadDir(1)
			if errors.Is(err, io.EOF) || (err == nil && len(entries) == 0) {
				return
			}
			if err != nil {
				yield(FindInfo{}, newPathError("find", pattern, err))
				return
			}

			entry := entries[0]
			if !glob.Glob(filePattern, strings.ToLower(entry.Name())) {
				continue
			}
			info, err := findInfo(entry)
			if err != nil {
				yield(FindInfo{}, newPathError("find", Join(dirPath, entry.Name()), err))
				return
			}
			if !yield(info, nil) {
				return
			}
		}
	}
}

func findInfo(entry fs.DirEntry) (FindInfo, error) {
	info := FindInfo{
		Name: entry.Name(),
		Type: EntryTypeFile,
	}
	if entry.IsDir() {
		info.Type = EntryTypeDirectory
		return info, nil
	}

	fi, err := entry.Info()
	if err != nil {
		return FindInfo{}, err
	}
	info.Size = fi.Size()
	return info, nil
}

func (f *FS) openDir(volumePath string) (fs.ReadDirFile, error) {
	name, err := resolve(volumePath)
	if err != nil {
		return nil, err
	}

	file, err := f.fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ENOPATH
		}
		return nil, err
	}
	dir, ok := file.(fs.ReadDirFile)
	if !ok {
		_ = file.Close()
		return nil, ENOPATH
	}
	return dir, nil
}

func (f *FS) acquireFind() {
	f.stats.OpenFinds++
	f.stats.PeakFinds = max(f.stats.PeakFinds, f.stats.OpenFinds)
}

// Open opens a file for reading.
func (f *FS) Open(volumePath string) (*File, error) {
	name, err := resolve(volumePath)
	if err != nil {
		return nil, newPathError("open", volumePath, err)
	}

	info, err := fs.Stat(f.fsys, name)
	if err != nil {
		return nil, newPathError("open", volumePath, err)
	}
	if info.IsDir() {
		return nil, newPathError("open", volumePath, EISDIRECTORY)
	}

	data, err := fs.ReadFile(f.fsys, name)
	if err != nil {
		return nil, newPathError("open", volumePath, err)
	}

	file := &File{
		volume: f,
		path:   volumePath,
		name:   path.Base(name),
		data:   data,
		base:   f.nextBase,
	}
	f.nextBase += (uint32(len(data)) + fileAlign - 1) &^ (fileAlign - 1)
	if f.nextBase == file.base {
		f.nextBase += fileAlign
	}

	f.stats.OpenFiles++
	f.stats.PeakFiles = max(f.stats.PeakFiles, f.stats.OpenFiles)
	return file, nil
}

// File is an open file handle.
type File struct {
	volume *FS
	path   string
	name   string
	data   []byte
	base   uint32
	images []*elfimage.Image
	closed bool
}

// Path returns the volume path the file was opened with.
func (f *File) Path() string {
	return f.path
}

// Name returns the file name without directory.
func (f *File) Name() string {
	return f.name
}

// Size returns the file size in bytes.
func (f *File) Size() int {
	return len(f.data)
}

// Addr returns a view of the file contents starting at offset. The view is
// valid until the file is closed.
func (f *File) Addr(offset uint32) (*elfimage.Image, error) {
	if f.closed {
		return nil, newPathError("getaddr", f.path, EBADF)
	}
	if uint64(offset) > uint64(len(f.data)) {
		return nil, newPathError("getaddr", f.path, EOUTOFBOUND)
	}

	img := elfimage.NewImage(f.data[offset:], f.base+offset)
	f.images = append(f.images, img)
	return img, nil
}

// Close closes the file and releases all views obtained from it.
func (f *File) Close() error {
	if f.closed {
		return newPathError("close", f.path, EBADF)
	}
	f.closed = true
	f.volume.stats.OpenFiles--

	for _, img := range f.images {
		img.Release()
	}
	f.images = nil
	f.data = nil
	return nil
}
