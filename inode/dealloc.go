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

import "github.com/blockfs/blockfs/device"

// dealloc walks the pointer tree in reverse (double-indirect, then
// indirect, then direct) releasing every data and metadata sector
// back to the free map. Called once, from Table.Close, on the final
// close of an inode previously marked removed. Best-effort: a failed
// read of a metadata block is logged and skipped rather than
// aborting the rest of the teardown, since a removed inode has no
// further use to anyone once Close returns.
func (in *Inode) dealloc() error {
	length := in.length.Load()
	indirectSectors := bytesToIndirectSectors(length)
	doubleIndirectSectors := bytesToDoubleIndirectSector(length)

	if doubleIndirectSectors > 0 {
		outerSector := in.ptr[DoubleIndirectIndex]
		if outerSector != 0 {
			if outer, err := in.table.readIndirectBlock(outerSector); err != nil {
				log.Warnf("dealloc: reading double-indirect block %d: %v", outerSector, err)
			} else {
				for _, p := range outer.Ptr {
					if p == 0 {
						continue
					}
					if mid, err := in.table.readIndirectBlock(device.Sector(p)); err != nil {
						log.Warnf("dealloc: reading mid block %d: %v", p, err)
					} else {
						for _, dp := range mid.Ptr {
							if dp != 0 {
								in.table.freeMap.Release(device.Sector(dp), 1)
							}
						}
					}
					in.table.freeMap.Release(device.Sector(p), 1)
				}
			}
			in.table.freeMap.Release(outerSector, 1)
		}
	}

	for slot := 0; slot < indirectSectors; slot++ {
		s := in.ptr[IndirectIndex+slot]
		if s == 0 {
			continue
		}
		if blk, err := in.table.readIndirectBlock(s); err != nil {
			log.Warnf("dealloc: reading indirect block %d: %v", s, err)
		} else {
			for _, dp := range blk.Ptr {
				if dp != 0 {
					in.table.freeMap.Release(device.Sector(dp), 1)
				}
			}
		}
		in.table.freeMap.Release(s, 1)
	}

	for i := 0; i < DirectBlocks; i++ {
		if s := in.ptr[DirectIndex+i]; s != 0 {
			in.table.freeMap.Release(s, 1)
		}
	}

	return nil
}

// flush writes in's in-memory state back to its on-disk sector.
// Called from Table.Close on the last close of an inode that was not
// removed.
func (in *Inode) flush() error {
	var d onDisk
	d.Length = uint32(in.readLength.Load())
	d.Magic = Magic
	d.DirectIndex = in.directIndex
	d.IndirectIndex = in.indirectIndex
	d.DoubleIndirectIndex = in.doubleIndirectIndex
	if in.isDir {
		d.IsDir = 1
	}
	d.Parent = uint32(in.parent)
	for i, p := range in.ptr {
		d.Ptr[i] = uint32(p)
	}

	h, err := in.table.cache.Get(in.sector, true)
	if err != nil {
		return err
	}
	copy(h.Bytes(), d.encode())
	in.table.cache.Release(h, true)
	return nil
}
