// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package wio

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Info is the file metadata tuple the cache uses
// to decide whether on-disk content has changed.
type Info struct {
	Dev        uint64
	Ino        uint64
	Size       int64
	ModTime    time.Time
	ChangeTime time.Time
}

// Same reports whether two stat results describe
// the same, unmodified file: device, inode, size,
// mtime and ctime all have to match exactly.
func (i Info) Same(other Info) bool {
	return i.Dev == other.Dev &&
		i.Ino == other.Ino &&
		i.Size == other.Size &&
		i.ModTime.Equal(other.ModTime) &&
		i.ChangeTime.Equal(other.ChangeTime)
}

// DirFS is a filesystem rooted at a directory whose
// operations are executed on a Pool.
type DirFS struct {
	pool *Pool
	root string
}

// NewDirFS returns a DirFS serving files under root,
// performing its I/O on the provided pool.
func NewDirFS(pool *Pool, root string) *DirFS {
	return &DirFS{pool: pool, root: root}
}

// Open opens name (slash-separated, relative to the root)
// for reading. The returned File must be closed by the caller
// unless ownership is handed off elsewhere.
func (fs *DirFS) Open(ctx context.Context, name string) (*File, error) {
	full := filepath.Join(fs.root, filepath.FromSlash(name))
	var sf sysfile
	var err error
	runerr := fs.pool.run(ctx, func() {
		sf, err = sysOpen(full)
	}, func() {
		if err == nil {
			sf.close()
		}
	})
	if runerr != nil {
		return nil, runerr
	}
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: name, Err: err}
	}
	return &File{pool: fs.pool, name: name, sys: sf}, nil
}

// File is an open file whose operations run on a Pool.
type File struct {
	pool *Pool
	name string
	sys  sysfile
}

// Name returns the name the file was opened with.
func (f *File) Name() string { return f.name }

// Stat fetches the file metadata.
func (f *File) Stat(ctx context.Context) (Info, error) {
	var info Info
	var err error
	runerr := f.pool.run(ctx, func() {
		info, err = f.sys.stat()
	}, nil)
	if runerr != nil {
		return Info{}, runerr
	}
	if err != nil {
		return Info{}, &os.PathError{Op: "stat", Path: f.name, Err: err}
	}
	return info, nil
}

// Pread reads len(p) bytes at offset off.
// Like the underlying syscall it may return
// fewer bytes than requested without an error.
func (f *File) Pread(ctx context.Context, p []byte, off int64) (int, error) {
	var n int
	var err error
	runerr := f.pool.run(ctx, func() {
		n, err = f.sys.pread(p, off)
	}, nil)
	if runerr != nil {
		return 0, runerr
	}
	if err != nil {
		return n, &os.PathError{Op: "pread", Path: f.name, Err: err}
	}
	return n, nil
}

// Close releases the file descriptor. The close itself is
// offloaded like every other syscall, but it cannot be
// abandoned: descriptor lifetimes are the caller's problem,
// not the context's.
func (f *File) Close() error {
	var err error
	f.pool.run(context.Background(), func() {
		err = f.sys.close()
	}, nil)
	return err
}

// Preader is the positional-read capability Reader needs;
// *File implements it, as does any cache-level file handle.
type Preader interface {
	Pread(ctx context.Context, p []byte, off int64) (int, error)
}

// Reader adapts a Preader into an io.Reader over
// the first size bytes of the file.
func Reader(ctx context.Context, f Preader, size int64) io.Reader {
	return &fileReader{ctx: ctx, f: f, size: size}
}

type fileReader struct {
	ctx  context.Context
	f    Preader
	off  int64
	size int64
}

func (r *fileReader) Read(p []byte) (int, error) {
	if r.off >= r.size {
		return 0, io.EOF
	}
	if max := r.size - r.off; int64(len(p)) > max {
		p = p[:max]
	}
	n, err := r.f.Pread(r.ctx, p, r.off)
	r.off += int64(n)
	if n == 0 && err == nil {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}
