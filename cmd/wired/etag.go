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

package main

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dchest/siphash"
)

// fixed siphash key so every replica derives the same
// weak validator for the same stat tuple
const (
	etagK0 = 0x77697265642d6874
	etagK1 = 0x7470642065746167
)

// strongETag formats a content digest as a strong validator.
func strongETag(digest []byte) string {
	if len(digest) > 16 {
		digest = digest[:16]
	}
	return `"` + hex.EncodeToString(digest) + `"`
}

// weakETag derives a validator for files we never read in
// full: a keyed hash of the name, size and mtime. Device,
// inode and ctime are not part of it.
func weakETag(name string, size int64, mtime time.Time) string {
	buf := make([]byte, 0, len(name)+16)
	buf = append(buf, name...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(size))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(mtime.UnixNano()))
	return fmt.Sprintf(`W/"%016x"`, siphash.Hash(etagK0, etagK1, buf))
}
