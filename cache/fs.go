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

package cache

import (
	"context"

	"github.com/wirehttpd/wirehttpd/wio"
)

// NewDirFS adapts a *wio.DirFS to the FS interface.
// The indirection exists because Go interfaces do not
// cover concrete return types, not because anything
// interesting happens here.
func NewDirFS(fs *wio.DirFS) FS {
	return dirFS{fs}
}

type dirFS struct {
	fs *wio.DirFS
}

func (d dirFS) Open(ctx context.Context, name string) (File, error) {
	f, err := d.fs.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return f, nil
}
