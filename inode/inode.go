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
	"sync/atomic"

	"github.com/blockfs/blockfs/device"
)

// Inode is the in-memory, ref-counted representation of an open
// on-disk inode (spec.md §4.2). A single Inode is shared by every
// caller that has it open concurrently; the Table is what hands out
// and retires these references.
//
// Locking: mu serializes the grow path (direct/indirect/
// double-indirect pointer arrays and their cursors, and the rewrite
// of the on-disk record that follows a grow) and the parent field,
// matching
// spec.md's Open Question 2 resolution. length and readLength are
// read and written with atomics so that ReadAt can consult them
// without taking mu at all, mirroring the original design's
// deliberately lock-free read path. openCnt, denyWriteCnt and removed
// are ref-count bookkeeping owned by the Table's own mutex, not by
// mu.
//
// length vs. readLength (spec.md §3 invariant 4): length is the
// backing length — how far the pointer tree has been grown and
// zero-filled, advanced by expand before the newly grown sectors'
// payload is copied in. readLength is the externally visible length
// that Length and ReadAt consult, advanced only after WriteAt's copy
// loop has actually placed the caller's bytes, so a concurrent reader
// never observes a just-zero-filled tail sector that a grow-in-
// progress writer hasn't gotten to yet.
type Inode struct {
	sector device.Sector
	table  *Table

	mu sync.Mutex

	isDir  bool
	parent device.Sector

	directIndex         uint32
	indirectIndex       uint32
	doubleIndirectIndex uint32
	ptr                 [NumPointers]device.Sector

	length     atomic.Int64
	readLength atomic.Int64

	openCnt      int
	denyWriteCnt int
	removed      bool
}

// Sector returns the sector number this inode is stored at, which
// doubles as its inumber.
func (in *Inode) Sector() device.Sector { return in.sector }

// Inumber is an alias for Sector, named for the operation in spec.md
// §4.3/§4.4 that surfaces an inumber to callers.
func (in *Inode) Inumber() device.Sector { return in.sector }

// Length returns the file's current externally-visible length in
// bytes — spec.md's read_length, not the (possibly further ahead)
// backing length a concurrent grow may already have zero-filled.
func (in *Inode) Length() int64 { return in.readLength.Load() }

// advanceReadLength raises readLength to n if it isn't already there,
// racing safely against concurrent WriteAt calls via CAS so that the
// highest watermark always wins regardless of completion order.
func (in *Inode) advanceReadLength(n int64) {
	for {
		cur := in.readLength.Load()
		if n <= cur {
			return
		}
		if in.readLength.CompareAndSwap(cur, n) {
			return
		}
	}
}

// IsDir reports whether this inode represents a directory.
func (in *Inode) IsDir() bool { return in.isDir }

// Parent returns the sector of this inode's parent directory's
// inode, used to resolve ".." without a directory entry (spec.md
// §3, DATA MODEL).
func (in *Inode) Parent() device.Sector {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.parent
}

// AddParent sets the parent pointer. mount.Format calls it to make
// the root directory its own parent; every other inode gets its
// parent from Table.Create. Directories' own "." / ".." entries never
// appear as directory entries, so this field is the only record of
// it.
func (in *Inode) AddParent(p device.Sector) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.parent = p
}

// byteToSector resolves the sector holding the byte at offset, given
// the inode's current length. Returns NoSector if offset is at or
// past length. Every sector this touches — including indirect and
// double-indirect metadata blocks — passes through the buffer cache,
// never the device directly.
func (in *Inode) byteToSector(offset int64, length int64) (device.Sector, error) {
	if offset < 0 || offset >= length {
		return NoSector, nil
	}

	idx := offset / device.SectorSize
	if idx < DirectBlocks {
		return in.ptr[DirectIndex+idx], nil
	}
	idx -= DirectBlocks

	if idx < IndirectBlocks*PointersPerIndirect {
		slot := idx / PointersPerIndirect
		within := idx % PointersPerIndirect
		slotSector := in.ptr[IndirectIndex+slot]
		if slotSector == 0 {
			return NoSector, nil
		}
		blk, err := in.table.readIndirectBlock(slotSector)
		if err != nil {
			return NoSector, err
		}
		return device.Sector(blk.Ptr[within]), nil
	}
	idx -= IndirectBlocks * PointersPerIndirect

	outerSector := in.ptr[DoubleIndirectIndex]
	if outerSector == 0 {
		return NoSector, nil
	}
	outer, err := in.table.readIndirectBlock(outerSector)
	if err != nil {
		return NoSector, err
	}
	midIdx := idx / PointersPerIndirect
	within := idx % PointersPerIndirect
	midSector := device.Sector(outer.Ptr[midIdx])
	if midSector == 0 {
		return NoSector, nil
	}
	mid, err := in.table.readIndirectBlock(midSector)
	if err != nil {
		return NoSector, err
	}
	return device.Sector(mid.Ptr[within]), nil
}

// ReadAt reads into buf starting at offset, returning the number of
// bytes read. Reads past the end of the file return fewer bytes than
// requested without error, and reads entirely past the end return
// (0, nil) — there is no distinct EOF error (spec.md §5).
//
// ReadAt takes no lock: it is a deliberately racy read against a
// concurrent grower, accepted as a tradeoff in spec.md's concurrency
// model (Open Question 2).
func (in *Inode) ReadAt(buf []byte, offset int64) (int, error) {
	length := in.readLength.Load()
	if offset >= length {
		return 0, nil
	}
	end := offset + int64(len(buf))
	if end > length {
		end = length
	}

	total := 0
	for offset < end {
		sectorOfs := offset % device.SectorSize
		chunk := device.SectorSize - sectorOfs
		if remaining := end - offset; remaining < chunk {
			chunk = remaining
		}

		sector, err := in.byteToSector(offset, length)
		if err != nil {
			return total, err
		}
		if sector == NoSector {
			for i := int64(0); i < chunk; i++ {
				buf[int64(total)+i] = 0
			}
		} else {
			h, err := in.table.cache.Get(sector, false)
			if err != nil {
				return total, err
			}
			copy(buf[total:int64(total)+chunk], h.Bytes()[sectorOfs:sectorOfs+chunk])
			in.table.cache.Release(h, false)
		}

		offset += chunk
		total += int(chunk)
	}
	return total, nil
}

// WriteAt writes buf at offset, growing the file if offset+len(buf)
// exceeds the current length. A write that would extend past
// MaxFileSize is clamped: only the bytes below MaxFileSize are
// written and their count is returned with a nil error. If the free
// map runs out partway through a grow, the bytes that fit in the
// sectors actually allocated are written and their count is returned
// together with the allocation error (spec.md's "grow on write" with
// partial-grow truncation on allocation failure). A grow also
// rewrites the on-disk inode, so the new length and pointers reach
// disk even while other holders keep the inode open.
func (in *Inode) WriteAt(buf []byte, offset int64) (int, error) {
	if !in.table.Writable(in) {
		return 0, ErrWriteDenied
	}
	if offset >= MaxFileSize {
		return 0, ErrFileTooLarge
	}

	target := offset + int64(len(buf))
	if target > MaxFileSize {
		target = MaxFileSize
		buf = buf[:target-offset]
	}

	// readLength only ever advances to cover bytes this call has
	// actually copied into their sectors, never to cover a grow that
	// merely zero-filled ahead of the copy loop (spec.md §3 invariant
	// 4). offset is mutated as the loop below makes progress, so by
	// the time any return executes it equals writeStart+total.
	writeStart := offset
	grew := false
	defer func() {
		if offset > writeStart {
			in.advanceReadLength(offset)
			if grew {
				in.mu.Lock()
				if err := in.flush(); err != nil {
					log.Warnf("WriteAt: rewriting inode %d after grow: %v", in.sector, err)
				}
				in.mu.Unlock()
			}
		}
	}()

	in.mu.Lock()
	curLength := in.length.Load()
	var growErr error
	if target > curLength {
		grew = true
		newLength, err := in.expand(target)
		in.length.Store(newLength)
		growErr = err
		if newLength < target {
			if newLength <= offset {
				in.mu.Unlock()
				return 0, growErr
			}
			buf = buf[:newLength-offset]
			target = newLength
		}
	}
	length := in.length.Load()
	in.mu.Unlock()

	total := 0
	end := offset + int64(len(buf))
	for offset < end {
		sectorOfs := offset % device.SectorSize
		chunk := device.SectorSize - sectorOfs
		if remaining := end - offset; remaining < chunk {
			chunk = remaining
		}

		sector, err := in.byteToSector(offset, length)
		if err != nil || sector == NoSector {
			if err == nil {
				err = errWriteHole
			}
			return total, err
		}

		h, err := in.table.cache.Get(sector, chunk == device.SectorSize)
		if err != nil {
			return total, err
		}
		copy(h.Bytes()[sectorOfs:sectorOfs+chunk], buf[total:int64(total)+chunk])
		in.table.cache.Release(h, true)

		offset += chunk
		total += int(chunk)
	}
	return total, growErr
}
