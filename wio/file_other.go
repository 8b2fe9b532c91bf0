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

//go:build !linux
// +build !linux

package wio

import (
	"io"
	"os"
)

// on platforms without direct access to the stat
// timestamps we fall back to os.File; the change-time
// half of the comparison tuple degrades to the mtime,
// and device/inode to zero, so a change that shows only
// in those fields (a file replaced by another with the
// same size and mtime) is not detected by Info.Same

type sysfile struct {
	f *os.File
}

func sysOpen(path string) (sysfile, error) {
	f, err := os.Open(path)
	if err != nil {
		// unwrap so fs.go can apply its own *os.PathError
		if pe, ok := err.(*os.PathError); ok {
			return sysfile{}, pe.Err
		}
		return sysfile{}, err
	}
	return sysfile{f: f}, nil
}

func (f sysfile) stat() (Info, error) {
	fi, err := f.f.Stat()
	if err != nil {
		return Info{}, err
	}
	return Info{
		Size:       fi.Size(),
		ModTime:    fi.ModTime(),
		ChangeTime: fi.ModTime(),
	}, nil
}

func (f sysfile) pread(p []byte, off int64) (int, error) {
	n, err := f.f.ReadAt(p, off)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

func (f sysfile) close() error {
	return f.f.Close()
}
