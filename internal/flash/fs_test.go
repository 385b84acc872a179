package flash

import (
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/retroenv/retrogolib/assert"
)

func testVolume() *FS {
	return New(fstest.MapFS{
		"a.hhk":         {Data: []byte("first")},
		"B.HHK":         {Data: []byte("second!")},
		"c.txt":         {Data: []byte("text")},
		"sub.hhk/x.bin": {Data: []byte{1}},
	})
}

func TestFind(t *testing.T) {
	v := testVolume()

	var found []FindInfo
	for info, err := range v.Find(`\fls0\*.hhk`) {
		assert.NoError(t, err)
		found = append(found, info)
	}

	assert.Equal(t, []FindInfo{
		{Name: "B.HHK", Type: EntryTypeFile, Size: 7},
		{Name: "a.hhk", Type: EntryTypeFile, Size: 5},
		{Name: "sub.hhk", Type: EntryTypeDirectory},
	}, found)

	stats := v.Stats()
	assert.Equal(t, 0, stats.OpenFinds)
	assert.Equal(t, 1, stats.PeakFinds)
}

func TestFindStopEarly(t *testing.T) {
	v := testVolume()

	for range v.Find(`\fls0\*`) {
		assert.Equal(t, 1, v.Stats().OpenFinds)
		break
	}
	assert.Equal(t, 0, v.Stats().OpenFinds)
}

func TestFindErrors(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    Errno
	}{
		{name: "missing directory", pattern: `\fls0\missing\*.hhk`, want: ENOPATH},
		{name: "unknown volume", pattern: `\crd0\*.hhk`, want: ENOVOLUME},
		{name: "no volume", pattern: `*.hhk`, want: ENOVOLUME},
		{name: "file as directory", pattern: `\fls0\c.txt\*`, want: ENOPATH},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := testVolume()
			var errs []error
			for info, err := range v.Find(tt.pattern) {
				assert.Equal(t, FindInfo{}, info)
				errs = append(errs, err)
			}
			assert.Len(t, errs, 1)
			assert.Equal(t, tt.want, ErrnoOf(errs[0]))
			assert.Equal(t, 0, v.Stats().OpenFinds)
		})
	}
}

func TestOpenAddrClose(t *testing.T) {
	v := testVolume()

	f, err := v.Open(`\fls0\a.hhk`)
	assert.NoError(t, err)
	assert.Equal(t, "a.hhk", f.Name())
	assert.Equal(t, 5, f.Size())
	assert.Equal(t, 1, v.Stats().OpenFiles)

	img, err := f.Addr(0)
	assert.NoError(t, err)
	assert.Equal(t, 5, img.Len())

	tail, err := f.Addr(2)
	assert.NoError(t, err)
	assert.Equal(t, img.Base()+2, tail.Base())
	b, err := tail.Bytes(0, 3)
	assert.NoError(t, err)
	assert.Equal(t, []byte("rst"), b)

	_, err = f.Addr(6)
	assert.Equal(t, EOUTOFBOUND, ErrnoOf(err))

	assert.NoError(t, f.Close())
	assert.True(t, img.Released())
	assert.True(t, tail.Released())
	assert.Equal(t, 0, v.Stats().OpenFiles)

	_, err = f.Addr(0)
	assert.Equal(t, EBADF, ErrnoOf(err))
	assert.Equal(t, EBADF, ErrnoOf(f.Close()))
}

func TestOpenErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
		want Errno
	}{
		{name: "missing file", path: `\fls0\none.hhk`, want: ENOENT},
		{name: "directory", path: `\fls0\sub.hhk`, want: EISDIRECTORY},
		{name: "unknown volume", path: `\crd0\a.hhk`, want: ENOVOLUME},
		{name: "invalid path", path: `\fls0\..\a.hhk`, want: EINVAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := testVolume()
			f, err := v.Open(tt.path)
			assert.Nil(t, f)
			assert.True(t, errors.Is(err, tt.want))

			var pathErr *PathError
			assert.True(t, errors.As(err, &pathErr))
			assert.Equal(t, "open", pathErr.Op)
			assert.Equal(t, tt.path, pathErr.Path)
			assert.Equal(t, 0, v.Stats().OpenFiles)
		})
	}
}

func TestOpenAssignsDistinctBases(t *testing.T) {
	v := testVolume()

	f1, err := v.Open(`\fls0\a.hhk`)
	assert.NoError(t, err)
	f2, err := v.Open(`\FLS0\B.HHK`)
	assert.NoError(t, err)

	img1, err := f1.Addr(0)
	assert.NoError(t, err)
	img2, err := f2.Addr(0)
	assert.NoError(t, err)
	assert.True(t, img1.Base() != img2.Base())
	assert.Equal(t, 2, v.Stats().PeakFiles)
}

func TestErrnoOf(t *testing.T) {
	tests := []struct {
		err  error
		want Errno
	}{
		{err: nil, want: 0},
		{err: fs.ErrNotExist, want: ENOENT},
		{err: fs.ErrPermission, want: EACCES},
		{err: fs.ErrExist, want: EEXIST},
		{err: fs.ErrInvalid, want: EINVAL},
		{err: fs.ErrClosed, want: EBADF},
		{err: errors.New("disk on fire"), want: EDEVFAIL},
		{err: &PathError{Op: "open", Path: `\fls0\x`, Errno: EMFILE}, want: EMFILE},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrnoOf(tt.err))
	}
}

func TestErrnoNames(t *testing.T) {
	assert.Equal(t, "ENOENT", ENOENT.Name())
	assert.Equal(t, "no such entry", ENOENT.Error())
	assert.Equal(t, "E-77", Errno(-77).Name())

	err := &PathError{Op: "open", Path: `\fls0\x.hhk`, Errno: ENOENT}
	assert.Equal(t, `open \fls0\x.hhk: no such entry (ENOENT)`, err.Error())
}

func TestJoin(t *testing.T) {
	assert.Equal(t, `\fls0\a.hhk`, Join(`\fls0\`, "a.hhk"))
	assert.Equal(t, `\fls0\apps\a.hhk`, Join(`\fls0\apps`, "a.hhk"))
}
