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

// Package cache keeps the contents of small files pinned
// in a fixed pool of equally sized buffers so that the
// serving path never allocates and rarely touches the disk.
//
// Entries are keyed by filename and revalidated in lockstep:
// a refresh controller advances a global epoch on a periodic
// tick (and on demand via Refresh), and the next Get on each
// entry after an epoch advance re-stats the file at most once.
// Concurrent Gets for a file that is being (re)loaded coalesce
// onto the loader: one goroutine performs the I/O, everyone
// else suspends on the entry's wait list.
//
// When caching is not applicable — the file exceeds one buffer,
// the table is full, or a load failed for the waiters — Get
// falls through to handing back an open file for direct
// streaming instead of an error.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wirehttpd/wirehttpd/wio"
)

// Default cache geometry. These are deployment defaults;
// tests shrink them through Config.
const (
	DefaultBufferSize      = 1 << 20
	DefaultCacheSize       = 256
	DefaultSpareBuffers    = 64
	DefaultRefreshInterval = 30 * time.Second

	// FilenameMax bounds the length of a cacheable filename,
	// including the terminator byte of the original wire format.
	FilenameMax = 255
)

// FS is the filesystem the cache loads from.
// *wio.DirFS satisfies it through a thin adapter
// (see NewDirFS); tests substitute counting and
// fault-injecting implementations.
type FS interface {
	Open(ctx context.Context, name string) (File, error)
}

// File is an open file handle the cache (or a
// direct-streaming caller) reads from.
type File interface {
	Stat(ctx context.Context) (wio.Info, error)
	Pread(ctx context.Context, p []byte, off int64) (int, error)
	Close() error
}

// Logger is the interface used to log
// cache activity and errors.
type Logger interface {
	Printf(f string, args ...interface{})
}

// Config holds the cache geometry and refresh cadence.
// Zero fields take the package defaults.
type Config struct {
	// BufferSize is the capacity of each pool buffer;
	// files larger than this are never cached.
	BufferSize int
	// CacheSize is the number of entry slots.
	CacheSize int
	// SpareBuffers is how many buffers the pool holds
	// beyond CacheSize so a reload can swap in a fresh
	// buffer even when every cached entry is pinned.
	SpareBuffers int
	// RefreshInterval is the period of the epoch tick.
	RefreshInterval time.Duration
}

func (c *Config) fill() {
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}
	if c.SpareBuffers <= 0 {
		c.SpareBuffers = DefaultSpareBuffers
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
}

// Cache is a bounded filename-keyed content cache.
// See the package documentation for the lifecycle.
type Cache struct {
	// Logger, if non-nil, is used to log
	// reload activity and load failures.
	Logger Logger

	fs  FS
	cfg Config

	epoch atomic.Uint64

	// lock guards the buffer pool, the entry table
	// and every refcount; it is never held across I/O
	lock  sync.Mutex
	bufs  []buffer
	items []item
	// high-water mark of the entry table
	nitems int

	refresh chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup

	hits, misses, failures atomic.Int64
}

// New builds a cache reading through fs and starts
// its refresh controller. The buffer storage is
// allocated once, up front, as a single region.
func New(fs FS, cfg Config) *Cache {
	cfg.fill()
	c := &Cache{
		fs:      fs,
		cfg:     cfg,
		refresh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	nbufs := cfg.CacheSize + cfg.SpareBuffers
	mem := make([]byte, nbufs*cfg.BufferSize)
	c.bufs = make([]buffer, nbufs)
	for i := range c.bufs {
		c.bufs[i].mem = mem[i*cfg.BufferSize : (i+1)*cfg.BufferSize : (i+1)*cfg.BufferSize]
	}
	c.items = make([]item, cfg.CacheSize)
	c.wg.Add(1)
	go c.refreshLoop()
	return c
}

// Close stops the refresh controller. It does not
// invalidate outstanding pins or open files.
func (c *Cache) Close() {
	close(c.done)
	c.wg.Wait()
}

func (c *Cache) logf(f string, args ...interface{}) {
	if c.Logger != nil {
		c.Logger.Printf(f, args...)
	}
}

// Hits returns the number of Gets served from a
// resident buffer, including stat-equal revalidations
// and accesses coalesced onto an in-flight load.
func (c *Cache) Hits() int64 { return c.hits.Load() }

// Misses returns the number of Gets that had to read
// file content or fall through to direct streaming.
// A reload that falls through because the pool is
// exhausted is counted under Failures instead.
func (c *Cache) Misses() int64 { return c.misses.Load() }

// Failures returns the number of loads that failed
// and reclaimed their entry.
func (c *Cache) Failures() int64 { return c.failures.Load() }

// Get resolves name against the cache.
//
// The result is either a cached hit (Result.Pin non-nil; the
// caller must Release it), a direct-stream fall-through
// (Result.File non-nil; the caller must Close it), or a
// *FileError describing why the file cannot be served.
func (c *Cache) Get(ctx context.Context, name string) (*Result, error) {
	epoch := c.epoch.Load()
	c.lock.Lock()
	it := c.findLocked(name)
	if it == nil {
		it = c.allocLocked(name, epoch)
	}
	if it == nil {
		// no slot for this file; serve it without caching
		c.lock.Unlock()
		c.misses.Add(1)
		return c.direct(ctx, name)
	}
	if it.epoch != epoch {
		// first to observe the stale epoch: detach the buffer
		// and become the sole loader for this epoch
		old := it.buf
		it.buf = nil
		it.epoch = epoch
		c.lock.Unlock()
		return c.load(ctx, it, old, name, epoch)
	}
	if it.buf == nil {
		// a load is in flight; join the wait list
		ch := make(chan struct{})
		it.waiters = append(it.waiters, ch)
		c.lock.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			c.dropWaiter(it, name, ch)
			return nil, ctx.Err()
		}
		c.lock.Lock()
		if it.name == name && it.buf != nil {
			res := c.hitLocked(it)
			c.lock.Unlock()
			c.hits.Add(1)
			return res, nil
		}
		c.lock.Unlock()
		// the load failed or declined to cache;
		// open the file ourselves and report what we see
		c.misses.Add(1)
		return c.direct(ctx, name)
	}
	res := c.hitLocked(it)
	c.lock.Unlock()
	c.hits.Add(1)
	return res, nil
}

// dropWaiter removes ch from the entry's wait list if the
// entry still describes name and the load has not completed.
// Without this a cancelled waiter would leave a dangling
// channel on the list (harmless) but, worse, the caller
// could later be woken against a recycled slot.
func (c *Cache) dropWaiter(it *item, name string, ch chan struct{}) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if it.name != name {
		return
	}
	for i := range it.waiters {
		if it.waiters[i] == ch {
			it.waiters = append(it.waiters[:i], it.waiters[i+1:]...)
			return
		}
	}
}

// hitLocked pins the entry's buffer for the caller
// and assembles a cached-hit result.
func (c *Cache) hitLocked(it *item) *Result {
	c.pinLocked(it.buf)
	res := &Result{
		Pin:     &Pin{c: c, buf: it.buf, mem: it.buf.mem[:it.info.Size]},
		Size:    it.info.Size,
		ModTime: it.info.ModTime,
	}
	if it.hasDigest {
		res.Digest = append([]byte(nil), it.digest[:]...)
	}
	return res
}

// EntryInfo is a point-in-time snapshot of one occupied entry.
type EntryInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Epoch   uint64    `json:"epoch"`
	Refs    int       `json:"refs"`
	Loading bool      `json:"loading,omitempty"`
}

// Snapshot returns a copy of the occupied entries for
// telemetry. Like every snapshot it is stale by the
// time anyone looks at it.
func (c *Cache) Snapshot() []EntryInfo {
	c.lock.Lock()
	defer c.lock.Unlock()
	var out []EntryInfo
	for i := 0; i < c.nitems; i++ {
		it := &c.items[i]
		if it.name == "" {
			continue
		}
		e := EntryInfo{
			Name:    it.name,
			Size:    it.info.Size,
			ModTime: it.info.ModTime,
			Epoch:   it.epoch,
			Loading: it.buf == nil,
		}
		if it.buf != nil {
			e.Refs = it.buf.refs
		}
		out = append(out, e)
	}
	return out
}
