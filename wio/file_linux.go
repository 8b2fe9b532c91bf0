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

//go:build linux
// +build linux

package wio

import (
	"time"

	"golang.org/x/sys/unix"
)

type sysfile struct {
	fd int
}

func sysOpen(path string) (sysfile, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return sysfile{fd: -1}, err
	}
	return sysfile{fd: fd}, nil
}

func (f sysfile) stat() (Info, error) {
	var st unix.Stat_t
	if err := unix.Fstat(f.fd, &st); err != nil {
		return Info{}, err
	}
	return Info{
		Dev:        uint64(st.Dev),
		Ino:        uint64(st.Ino),
		Size:       st.Size,
		ModTime:    time.Unix(st.Mtim.Unix()),
		ChangeTime: time.Unix(st.Ctim.Unix()),
	}, nil
}

func (f sysfile) pread(p []byte, off int64) (int, error) {
	return unix.Pread(f.fd, p, off)
}

func (f sysfile) close() error {
	return unix.Close(f.fd)
}
