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

package inode

import (
	"sync"

	"github.com/blockfs/blockfs/cache"
	"github.com/blockfs/blockfs/device"
	"github.com/blockfs/blockfs/freemap"
	"github.com/blockfs/blockfs/internal/logger"
)

var log = logger.Named("inode")

// Table is the unique-per-sector open-inode table of spec.md §4.2: it
// ensures every sector has at most one in-memory Inode, ref-counted
// across every Open/Close pair, with teardown of removed inodes
// deferred to the last Close.
type Table struct {
	mu      sync.Mutex
	open    map[device.Sector]*Inode
	cache   *cache.Cache
	freeMap freemap.FreeMap
}

// NewTable constructs an empty open-inode table over the given cache
// and free map.
func NewTable(c *cache.Cache, fm freemap.FreeMap) *Table {
	return &Table{
		open:    make(map[device.Sector]*Inode),
		cache:   c,
		freeMap: fm,
	}
}

// Create allocates a new inode sector, initializes it as an empty
// file or directory, pre-allocates and zero-fills enough data sectors
// to back length bytes (spec.md §4.2's inode_create/inode_alloc), and
// returns its sector. The caller is responsible for linking it into a
// directory and calling Open to obtain an in-memory handle.
//
// Pre-allocation is all-or-nothing: if length can't be fully backed
// (the free map runs out), the partially allocated inode is torn
// down and Create fails, rather than returning a shorter file than
// asked for.
func (t *Table) Create(isDir bool, parent device.Sector, length int64) (device.Sector, error) {
	sector, err := t.freeMap.Allocate(1)
	if err != nil {
		return 0, err
	}

	var d onDisk
	d.Magic = Magic
	d.Parent = uint32(parent)
	if isDir {
		d.IsDir = 1
	}

	h, err := t.cache.Get(sector, true)
	if err != nil {
		t.freeMap.Release(sector, 1)
		return 0, err
	}
	copy(h.Bytes(), d.encode())
	t.cache.Release(h, true)

	if length <= 0 {
		return sector, nil
	}

	in, err := t.Open(sector)
	if err != nil {
		t.freeMap.Release(sector, 1)
		return 0, err
	}

	in.mu.Lock()
	newLength, expandErr := in.expand(length)
	in.length.Store(newLength)
	in.readLength.Store(newLength)
	in.mu.Unlock()

	if expandErr != nil {
		t.MarkRemoved(in)
		if closeErr := t.Close(in); closeErr != nil {
			log.Warnf("Create: tearing down sector %d after failed pre-allocation: %v", sector, closeErr)
		}
		return 0, expandErr
	}
	if err := t.Close(in); err != nil {
		return 0, err
	}

	return sector, nil
}

// Open returns the shared in-memory Inode for sector, reading it from
// disk on first open and incrementing its ref count on every
// subsequent call. Every Open must be matched by a Close.
func (t *Table) Open(sector device.Sector) (*Inode, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if in, ok := t.open[sector]; ok {
		in.openCnt++
		return in, nil
	}

	h, err := t.cache.Get(sector, false)
	if err != nil {
		return nil, err
	}
	d, err := decodeOnDisk(h.Bytes())
	t.cache.Release(h, false)
	if err != nil {
		return nil, err
	}
	if d.Magic != Magic {
		return nil, ErrCorrupt
	}

	in := &Inode{
		sector:              sector,
		table:               t,
		isDir:               d.IsDir != 0,
		parent:              device.Sector(d.Parent),
		directIndex:         d.DirectIndex,
		indirectIndex:       d.IndirectIndex,
		doubleIndirectIndex: d.DoubleIndirectIndex,
		openCnt:             1,
	}
	in.length.Store(int64(d.Length))
	in.readLength.Store(int64(d.Length))
	for i, p := range d.Ptr {
		in.ptr[i] = device.Sector(p)
	}

	t.open[sector] = in
	return in, nil
}

// Close drops one reference to in. On the last close of an inode
// marked removed, its data and its own sector are freed; otherwise
// its in-memory state is flushed back to disk.
func (t *Table) Close(in *Inode) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	in.openCnt--
	if in.openCnt > 0 {
		return nil
	}
	delete(t.open, in.sector)

	if in.removed {
		if err := in.dealloc(); err != nil {
			log.Warnf("dealloc sector %d: %v", in.sector, err)
		}
		t.freeMap.Release(in.sector, 1)
		return nil
	}
	return in.flush()
}

// MarkRemoved flags in for teardown at its last Close. The directory
// layer calls this once it has unlinked the corresponding directory
// entry; the inode (and any open file descriptors against it) remain
// valid until every holder closes it (spec.md's deferred-teardown
// rule).
func (t *Table) MarkRemoved(in *Inode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	in.removed = true
}

// Removed reports whether in has been marked for teardown.
func (t *Table) Removed(in *Inode) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return in.removed
}

// DenyWrite increments in's deny-write count; while positive, WriteAt
// fails with ErrWriteDenied.
func (t *Table) DenyWrite(in *Inode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	in.denyWriteCnt++
}

// AllowWrite reverses one DenyWrite call.
func (t *Table) AllowWrite(in *Inode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if in.denyWriteCnt > 0 {
		in.denyWriteCnt--
	}
}

// Writable reports whether in currently accepts writes.
func (t *Table) Writable(in *Inode) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return in.denyWriteCnt == 0
}

// OpenCount reports the number of live Open references against in,
// used by the directory layer to refuse removing a directory that is
// some session's current working directory (spec.md §4.3 edge case).
func (t *Table) OpenCount(in *Inode) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return in.openCnt
}

// readIndirectBlock fetches and decodes a 128-pointer indirect block
// through the buffer cache.
func (t *Table) readIndirectBlock(sector device.Sector) (*indirectBlock, error) {
	h, err := t.cache.Get(sector, false)
	if err != nil {
		return nil, err
	}
	blk, err := decodeIndirectBlock(h.Bytes())
	t.cache.Release(h, false)
	return blk, err
}
