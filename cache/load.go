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
	"io"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/wirehttpd/wirehttpd/wio"
)

// Result is the outcome of a Get that found something to serve.
type Result struct {
	// Pin is non-nil for a cached hit. Bytes() is the file
	// content; the caller must Release exactly once.
	Pin *Pin
	// File is non-nil for a direct-stream fall-through.
	// The caller streams from it positionally and closes it.
	File File

	Size    int64
	ModTime time.Time

	// Digest is the BLAKE2b-256 of the cached content,
	// when one is known; nil for direct streams.
	Digest []byte
}

// Cached reports whether the result carries pinned bytes.
func (r *Result) Cached() bool { return r.Pin != nil }

// direct opens name without touching the table: the
// caller streams from the descriptor itself. Errors here
// carry the kind the HTTP layer maps onto a status.
func (c *Cache) direct(ctx context.Context, name string) (*Result, error) {
	f, err := c.fs.Open(ctx, name)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &FileError{Kind: KindNotFound, Name: name, Err: err}
	}
	info, err := f.Stat(ctx)
	if err != nil {
		f.Close()
		return nil, &FileError{Kind: KindMetaFailure, Name: name, Err: err}
	}
	return &Result{File: f, Size: info.Size, ModTime: info.ModTime}, nil
}

// ownsLocked reports whether the loader that claimed the
// entry at epoch still owns it. If the global epoch advances
// mid-load, a newer arrival claims loader status for the
// fresher epoch; the superseded loader must then neither
// publish nor reclaim, only serve its own caller. (The
// original implementation overwrote the entry in this window
// and stranded a buffer reference.)
func (it *item) ownsLocked(name string, epoch uint64) bool {
	return it.name == name && it.epoch == epoch && it.buf == nil
}

// load executes the load protocol as the entry's sole loader
// for the given epoch. old is the buffer detached from the
// entry when the caller won loader status; the entry's
// reference on it travels with the loader until it is handed
// back (stat-equal fast path, in-place reuse), transferred to
// the caller's pin, or released. Exactly one of those happens
// on every path.
//
// Publication or failure wakes the wait list: either the
// entry holds a buffer again, or the slot was reclaimed and
// woken waiters fall through to a direct open.
func (c *Cache) load(ctx context.Context, it *item, old *buffer, name string, epoch uint64) (*Result, error) {
	f, err := c.fs.Open(ctx, name)
	if err != nil {
		c.loadFailed(it, old, name, epoch)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logf("cache: open %s: %s", name, err)
		return nil, &FileError{Kind: KindNotFound, Name: name, Err: err}
	}
	info, err := f.Stat(ctx)
	if err != nil {
		f.Close()
		c.loadFailed(it, old, name, epoch)
		c.logf("cache: stat %s: %s", name, err)
		return nil, &FileError{Kind: KindMetaFailure, Name: name, Err: err}
	}
	if info.Size > int64(c.cfg.BufferSize) {
		// never cached; hand the descriptor to the caller
		c.lock.Lock()
		c.releaseLocked(old)
		if it.ownsLocked(name, epoch) {
			c.reclaimLocked(it)
		}
		c.lock.Unlock()
		c.misses.Add(1)
		return &Result{File: f, Size: info.Size, ModTime: info.ModTime}, nil
	}
	if old != nil && info.Same(it.info) {
		// nothing changed on disk: keep the old bytes and
		// skip the read entirely
		if err := f.Close(); err != nil {
			c.logf("cache: close %s: %s", name, err)
		}
		c.lock.Lock()
		var res *Result
		if it.ownsLocked(name, epoch) {
			it.buf = old
			res = c.hitLocked(it)
			c.wakeLocked(it)
		} else {
			res = c.transferLocked(old, info)
		}
		c.lock.Unlock()
		c.hits.Add(1)
		return res, nil
	}
	c.lock.Lock()
	var buf *buffer
	if old != nil && old.refs == 1 {
		// our reference is the only one, so nobody can
		// observe the overwrite; reuse the region in place
		buf = old
	} else {
		c.releaseLocked(old)
		buf = c.acquireLocked()
	}
	c.lock.Unlock()
	if buf == nil {
		// pool exhausted; give up on caching this round
		c.lock.Lock()
		if it.ownsLocked(name, epoch) {
			c.reclaimLocked(it)
		}
		c.lock.Unlock()
		c.failures.Add(1)
		c.logf("cache: no free buffer for %s; streaming directly", name)
		return &Result{File: f, Size: info.Size, ModTime: info.ModTime}, nil
	}
	if buf.refs != 1 {
		panic("cache: loading into a shared buffer")
	}
	n, err := f.Pread(ctx, buf.mem[:info.Size], 0)
	if err == nil && int64(n) < info.Size {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		f.Close()
		c.lock.Lock()
		c.releaseLocked(buf)
		if it.ownsLocked(name, epoch) {
			c.reclaimLocked(it)
		}
		c.lock.Unlock()
		c.failures.Add(1)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logf("cache: read %s: expected %d bytes, got %d: %v", name, info.Size, n, err)
		return nil, &FileError{Kind: KindIoFailure, Name: name, Err: err}
	}
	if err := f.Close(); err != nil {
		c.logf("cache: close %s: %s", name, err)
	}
	digest := blake2b.Sum256(buf.mem[:info.Size])
	c.lock.Lock()
	var res *Result
	if it.ownsLocked(name, epoch) {
		it.info = info
		it.digest = digest
		it.hasDigest = true
		it.buf = buf
		res = c.hitLocked(it)
		c.wakeLocked(it)
	} else {
		res = c.transferLocked(buf, info)
		res.Digest = append([]byte(nil), digest[:]...)
	}
	c.lock.Unlock()
	c.misses.Add(1)
	return res, nil
}

// transferLocked turns the entry reference a superseded
// loader carries into the caller's own pin, so the bytes
// stay valid until released and the buffer is returned to
// the pool afterwards.
func (c *Cache) transferLocked(buf *buffer, info wio.Info) *Result {
	return &Result{
		Pin:     &Pin{c: c, buf: buf, mem: buf.mem[:info.Size]},
		Size:    info.Size,
		ModTime: info.ModTime,
	}
}

// loadFailed reclaims the entry after a failed open or stat,
// releasing the reference the loader took over from the entry.
func (c *Cache) loadFailed(it *item, old *buffer, name string, epoch uint64) {
	c.lock.Lock()
	c.releaseLocked(old)
	if it.ownsLocked(name, epoch) {
		c.reclaimLocked(it)
	}
	c.lock.Unlock()
	c.failures.Add(1)
}
