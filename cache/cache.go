// Copyright 2026 The Blockfs Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache implements the buffer cache of spec.md §4.1: a
// bounded, write-back cache over a device.Device with clock-style
// eviction, a background write-back task and best-effort read-ahead.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blockfs/blockfs/device"
	"github.com/blockfs/blockfs/internal/clock"
	"github.com/blockfs/blockfs/internal/logger"
	"github.com/blockfs/blockfs/internal/metrics"
)

// Capacity is the hard cap on resident entries (spec.md §4.1,
// MAX_FILESYS_CACHE_SIZE in the original C source).
const Capacity = 64

// WriteBackInterval is how often the background writer flushes dirty
// entries (spec.md: "5 × timer-tick frequency"). A timer-tick
// frequency doesn't exist in a hosted Go process; 5 × TIMER_FREQ
// ticks is five seconds at any tick rate (500 ticks at the original
// Pintos default of TIMER_FREQ=100Hz), so that is the interval used.
const WriteBackInterval = 5 * time.Second

var log = logger.Named("cache")

type entry struct {
	sector   device.Sector
	buf      [device.SectorSize]byte
	valid    bool
	dirty    bool
	accessed bool
	pinCount int
}

// Handle is a pinned reference to a cache entry's buffer, returned by
// Get. The caller must not retain Bytes() past the matching Release.
type Handle struct {
	e *entry
}

// Sector returns the sector backing this handle.
func (h *Handle) Sector() device.Sector { return h.e.sector }

// Bytes returns the entry's buffer. The buffer is exactly
// device.SectorSize bytes and may be read or written directly;
// writes are only durable once Release is called with dirty=true.
func (h *Handle) Bytes() []byte { return h.e.buf[:] }

// Cache is the bounded write-back buffer cache. The zero value is not
// usable; construct with New.
type Cache struct {
	mu       sync.Mutex
	dev      device.Device
	clk      clock.Clock
	capacity int
	entries  []*entry
	hand     int

	eg     *errgroup.Group
	cancel context.CancelFunc
}

// New constructs a Cache of the given capacity (spec.md fixes this at
// 64; tests may use a smaller capacity to exercise eviction cheaply).
func New(dev device.Device, clk clock.Clock, capacity int) *Cache {
	if capacity <= 0 {
		capacity = Capacity
	}
	return &Cache{
		dev:      dev,
		clk:      clk,
		capacity: capacity,
		entries:  make([]*entry, 0, capacity),
	}
}

// Get returns a pinned handle on sector's contents, reading it from
// the device on a miss. If dirtyHint is set the entry is marked dirty
// immediately (used by callers that are about to overwrite the whole
// sector and don't need the prior contents, mirroring the C API's
// dirty_hint parameter).
//
// Get panics (via logger.Fatalf) if the cache cannot produce a free
// slot: per spec.md §4.1 this is fatal and cannot happen so long as
// invariant 3 (pin_count never saturates capacity) holds.
func (c *Cache) Get(sector device.Sector, dirtyHint bool) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e := c.find(sector); e != nil {
		e.pinCount++
		e.dirty = e.dirty || dirtyHint
		e.accessed = true
		metrics.RecordCacheHit()
		return &Handle{e: e}, nil
	}

	metrics.RecordCacheMiss()
	e, err := c.admitOrEvictLocked()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, device.SectorSize)
	if err := c.dev.ReadSector(sector, buf); err != nil {
		return nil, err
	}
	copy(e.buf[:], buf)
	e.sector = sector
	e.valid = true
	e.dirty = dirtyHint
	e.accessed = true
	e.pinCount = 1

	metrics.SetCacheEntries(len(c.entries))
	return &Handle{e: e}, nil
}

func (c *Cache) find(sector device.Sector) *entry {
	for _, e := range c.entries {
		if e.valid && e.sector == sector {
			return e
		}
	}
	return nil
}

// admitOrEvictLocked returns a reusable entry, creating a fresh one if
// capacity allows, otherwise running the clock sweep. Caller holds
// c.mu.
func (c *Cache) admitOrEvictLocked() (*entry, error) {
	if len(c.entries) < c.capacity {
		e := &entry{}
		c.entries = append(c.entries, e)
		return e, nil
	}

	n := len(c.entries)
	for scanned := 0; scanned < 2*n; scanned++ {
		idx := c.hand % n
		c.hand = (c.hand + 1) % n
		e := c.entries[idx]

		if e.pinCount > 0 {
			continue
		}
		if e.accessed {
			e.accessed = false
			continue
		}

		if e.dirty {
			if err := c.dev.WriteSector(e.sector, e.buf[:]); err != nil {
				return nil, err
			}
			e.dirty = false
		}
		metrics.RecordCacheEviction()
		e.valid = false
		return e, nil
	}

	// Invariant 3 guarantees this is unreachable: not every entry can
	// be pinned simultaneously.
	log.Fatalf("no evictable entry among %d pinned/accessed slots", n)
	return nil, nil
}

// Release unpins h. If dirty is set the entry is marked dirty even if
// the caller did not pass dirtyHint to Get (the usual case for a
// partial-sector write).
func (c *Cache) Release(h *Handle, dirty bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h.e.dirty = h.e.dirty || dirty
	h.e.pinCount--
}

// FlushAll writes back every dirty entry. If drain is set, every
// entry is also freed and the cache emptied — used at shutdown.
func (c *Cache) FlushAll(drain bool) error {
	start := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	flushed := 0
	for _, e := range c.entries {
		if e.valid && e.dirty {
			if err := c.dev.WriteSector(e.sector, e.buf[:]); err != nil {
				return err
			}
			e.dirty = false
			flushed++
		}
	}
	metrics.RecordSectorsFlushed(flushed)
	metrics.ObserveFlushAllSeconds(time.Since(start).Seconds())

	if drain {
		c.entries = c.entries[:0]
		c.hand = 0
		metrics.SetCacheEntries(0)
	} else {
		metrics.SetCacheEntries(len(c.entries))
	}

	log.Debugf("flush_all drain=%v flushed=%d", drain, flushed)
	return nil
}

// ReadAhead hints that sector+1 may soon be needed. Execution happens
// on a best-effort background goroutine; errors are logged, not
// returned, matching spec.md's "asynchronous and best-effort".
func (c *Cache) ReadAhead(sector device.Sector) {
	if c.eg == nil {
		return
	}
	next := sector + 1
	if next >= c.dev.SectorCount() {
		return
	}
	c.eg.Go(func() error {
		h, err := c.Get(next, false)
		if err != nil {
			log.Debugf("read_ahead(%d) failed: %v", next, err)
			return nil
		}
		c.Release(h, false)
		return nil
	})
}

// StartWriteBack launches the background write-back task: it wakes
// every WriteBackInterval (as measured by the Cache's clock.Clock) and
// calls FlushAll(false), until Shutdown cancels it.
func (c *Cache) StartWriteBack(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	eg, egCtx := errgroup.WithContext(ctx)
	c.cancel = cancel
	c.eg = eg

	eg.Go(func() error {
		for {
			select {
			case <-egCtx.Done():
				return nil
			case <-c.clk.After(WriteBackInterval):
				if err := c.FlushAll(false); err != nil {
					log.Warnf("write-back flush failed: %v", err)
				}
			}
		}
	})
}

// Shutdown cancels the write-back task, waits for it and any
// in-flight read-ahead goroutines to return, then drains the cache.
func (c *Cache) Shutdown() error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.eg != nil {
		_ = c.eg.Wait()
	}
	return c.FlushAll(true)
}

// Len reports the number of resident entries, for tests asserting
// eviction behavior under churn (spec.md §8 property 2).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
