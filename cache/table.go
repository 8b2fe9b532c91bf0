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

import "github.com/wirehttpd/wirehttpd/wio"

// item is one slot of the entry table.
// A slot is occupied iff name is non-empty.
// buf == nil on an occupied slot means a load
// is in flight and its owner is the loader.
type item struct {
	name      string
	info      wio.Info
	digest    [32]byte
	hasDigest bool
	buf       *buffer
	epoch     uint64
	waiters   []chan struct{}
}

// findLocked locates the entry for name, if any.
// The table is small and fixed, so a linear scan
// is used rather than a hash index.
func (c *Cache) findLocked(name string) *item {
	for i := 0; i < c.nitems; i++ {
		if c.items[i].name == name {
			return &c.items[i]
		}
	}
	return nil
}

// allocLocked claims a slot for name, reusing the first
// vacated slot before growing the high-water mark.
// The entry epoch is set one behind the current epoch so
// the very next validation step triggers a load.
func (c *Cache) allocLocked(name string, epoch uint64) *item {
	var it *item
	for i := 0; i < c.nitems; i++ {
		if c.items[i].name == "" {
			it = &c.items[i]
			break
		}
	}
	if it == nil {
		if c.nitems >= len(c.items) {
			return nil
		}
		it = &c.items[c.nitems]
		c.nitems++
	}
	*it = item{name: name, epoch: epoch - 1}
	return it
}

// reclaimLocked vacates the slot after waking anything
// still queued on it. The entry must have given up its
// buffer first; reclaiming a slot that still owns one
// would strand a reference forever.
func (c *Cache) reclaimLocked(it *item) {
	if it.buf != nil {
		panic("cache: reclaim of entry with live buffer")
	}
	c.wakeLocked(it)
	*it = item{}
}

// wakeLocked drains the wait list in arrival order.
// Woken consumers re-inspect the entry under the lock.
func (c *Cache) wakeLocked(it *item) {
	for _, ch := range it.waiters {
		close(ch)
	}
	it.waiters = nil
}
