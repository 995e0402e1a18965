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

// expand grows in to target bytes, allocating and zero-filling
// whatever data and metadata sectors are newly needed. The caller
// must hold in.mu. On an allocation failure partway through, expand
// returns the largest length it could actually back with allocated
// sectors (which may be less than target) alongside the error —
// spec.md's partial-grow truncation.
func (in *Inode) expand(target int64) (int64, error) {
	directTarget := bytesToDataSectors(target)
	if directTarget > DirectBlocks {
		directTarget = DirectBlocks
	}
	for int(in.directIndex) < directTarget {
		s, err := in.table.freeMap.Allocate(1)
		if err != nil {
			return in.measureAllocated(), err
		}
		if err := in.zeroSector(s); err != nil {
			return in.measureAllocated(), err
		}
		in.ptr[DirectIndex+in.directIndex] = s
		in.directIndex++
	}
	if bytesToDataSectors(target) <= DirectBlocks {
		return target, nil
	}

	totalIndirectData := bytesToDataSectors(target) - DirectBlocks
	indirectSlotsNeeded := (totalIndirectData + PointersPerIndirect - 1) / PointersPerIndirect
	if indirectSlotsNeeded > IndirectBlocks {
		indirectSlotsNeeded = IndirectBlocks
	}
	for slot := 0; slot < indirectSlotsNeeded; slot++ {
		needed := totalIndirectData - slot*PointersPerIndirect
		if needed > PointersPerIndirect {
			needed = PointersPerIndirect
		}
		slotSector := in.ptr[IndirectIndex+slot]
		err := in.fillDataBlock(&slotSector, needed)
		in.ptr[IndirectIndex+slot] = slotSector
		if uint32(slot+1) > in.indirectIndex {
			in.indirectIndex = uint32(slot + 1)
		}
		if err != nil {
			return in.measureAllocated(), err
		}
	}
	if bytesToDataSectors(target) <= DirectBlocks+IndirectBlocks*PointersPerIndirect {
		return target, nil
	}

	if err := in.growDoubleIndirect(target); err != nil {
		return in.measureAllocated(), err
	}
	in.doubleIndirectIndex = 1
	return target, nil
}

// fillDataBlock ensures the indirect block at *slotSector (allocating
// one if *slotSector is zero) holds at least needed leading data
// sector pointers, allocating and zero-filling any that are missing.
// Existing non-zero entries are left untouched; only the gap between
// the block's current fill count and needed is grown, so repeated
// calls as needed increases are cheap top-ups rather than rewrites.
func (in *Inode) fillDataBlock(slotSector *device.Sector, needed int) error {
	sector := *slotSector
	var blk *indirectBlock
	if sector == 0 {
		s, err := in.table.freeMap.Allocate(1)
		if err != nil {
			return err
		}
		sector = s
		blk = &indirectBlock{}
	} else {
		b, err := in.table.readIndirectBlock(sector)
		if err != nil {
			return err
		}
		blk = b
	}

	have := 0
	for have < PointersPerIndirect && blk.Ptr[have] != 0 {
		have++
	}
	if have >= needed {
		*slotSector = sector
		return nil
	}

	var allocErr error
	for have < needed {
		s, err := in.table.freeMap.Allocate(1)
		if err != nil {
			allocErr = err
			break
		}
		if err := in.zeroSector(s); err != nil {
			allocErr = err
			break
		}
		blk.Ptr[have] = uint32(s)
		have++
	}

	h, err := in.table.cache.Get(sector, true)
	if err != nil {
		*slotSector = sector
		if allocErr != nil {
			return allocErr
		}
		return err
	}
	copy(h.Bytes(), blk.encode())
	in.table.cache.Release(h, true)

	*slotSector = sector
	return allocErr
}

// growDoubleIndirect ensures the double-indirect block tree backs
// total data sectors beyond the direct and single-indirect span,
// allocating the outer block, any needed mid blocks, and their data
// sectors.
func (in *Inode) growDoubleIndirect(target int64) error {
	total := bytesToDataSectors(target) - DirectBlocks - IndirectBlocks*PointersPerIndirect
	if total <= 0 {
		return nil
	}
	if total > PointersPerIndirect*PointersPerIndirect {
		total = PointersPerIndirect * PointersPerIndirect
	}

	outerSector := in.ptr[DoubleIndirectIndex]
	var outer *indirectBlock
	if outerSector == 0 {
		s, err := in.table.freeMap.Allocate(1)
		if err != nil {
			return err
		}
		outerSector = s
		outer = &indirectBlock{}
	} else {
		b, err := in.table.readIndirectBlock(outerSector)
		if err != nil {
			return err
		}
		outer = b
	}

	midSlots := (total + PointersPerIndirect - 1) / PointersPerIndirect
	var grownErr error
	for mid := 0; mid < midSlots; mid++ {
		needed := total - mid*PointersPerIndirect
		if needed > PointersPerIndirect {
			needed = PointersPerIndirect
		}
		midSector := device.Sector(outer.Ptr[mid])
		err := in.fillDataBlock(&midSector, needed)
		outer.Ptr[mid] = uint32(midSector)
		if err != nil {
			grownErr = err
			break
		}
	}

	h, err := in.table.cache.Get(outerSector, true)
	if err != nil {
		in.ptr[DoubleIndirectIndex] = outerSector
		if grownErr != nil {
			return grownErr
		}
		return err
	}
	copy(h.Bytes(), outer.encode())
	in.table.cache.Release(h, true)

	in.ptr[DoubleIndirectIndex] = outerSector
	return grownErr
}

func (in *Inode) zeroSector(sector device.Sector) error {
	h, err := in.table.cache.Get(sector, true)
	if err != nil {
		return err
	}
	b := h.Bytes()
	for i := range b {
		b[i] = 0
	}
	in.table.cache.Release(h, true)
	return nil
}

// measureAllocated recomputes, from the pointer tree itself, the
// longest prefix of the file that is actually backed by allocated
// sectors. Used only on expand's error path to report a safe
// truncated length after a partial grow.
func (in *Inode) measureAllocated() int64 {
	var sectors int64

	for i := uint32(0); i < in.directIndex && i < DirectBlocks; i++ {
		if in.ptr[DirectIndex+i] == 0 {
			return sectors * device.SectorSize
		}
		sectors++
	}
	if in.directIndex < DirectBlocks {
		return sectors * device.SectorSize
	}

	for slot := 0; slot < IndirectBlocks; slot++ {
		s := in.ptr[IndirectIndex+slot]
		if s == 0 {
			return sectors * device.SectorSize
		}
		blk, err := in.table.readIndirectBlock(s)
		if err != nil {
			return sectors * device.SectorSize
		}
		have := 0
		for have < PointersPerIndirect && blk.Ptr[have] != 0 {
			have++
		}
		sectors += int64(have)
		if have < PointersPerIndirect {
			return sectors * device.SectorSize
		}
	}

	outerSector := in.ptr[DoubleIndirectIndex]
	if outerSector == 0 {
		return sectors * device.SectorSize
	}
	outer, err := in.table.readIndirectBlock(outerSector)
	if err != nil {
		return sectors * device.SectorSize
	}
	for _, p := range outer.Ptr {
		if p == 0 {
			return sectors * device.SectorSize
		}
		mid, err := in.table.readIndirectBlock(device.Sector(p))
		if err != nil {
			return sectors * device.SectorSize
		}
		have := 0
		for have < PointersPerIndirect && mid.Ptr[have] != 0 {
			have++
		}
		sectors += int64(have)
		if have < PointersPerIndirect {
			return sectors * device.SectorSize
		}
	}

	return sectors * device.SectorSize
}
