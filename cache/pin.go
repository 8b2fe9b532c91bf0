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

// Pin is an owned reference on a cached buffer. The byte
// view returned by Bytes is valid until Release; a reload
// may swap a new buffer into the entry meanwhile, but the
// pinned bytes stay untouched until the last pin drops.
type Pin struct {
	c   *Cache
	buf *buffer
	mem []byte
}

// Bytes returns the cached file content.
func (p *Pin) Bytes() []byte { return p.mem }

// Release drops the reference. Releasing twice is a
// programming error and panics.
func (p *Pin) Release() {
	if p.buf == nil {
		panic("cache: pin released twice")
	}
	p.c.lock.Lock()
	p.c.releaseLocked(p.buf)
	p.c.lock.Unlock()
	p.buf = nil
	p.mem = nil
}
