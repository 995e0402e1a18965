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

// Package inode implements the extensible inode layer of spec.md
// §4.2: direct/indirect/double-indirect block pointers backing files
// that grow on write, bounded by MaxFileSize.
package inode

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/blockfs/blockfs/device"
)

// Layout constants from spec.md §3/§4.2.
const (
	DirectBlocks         = 4   // D
	IndirectBlocks       = 9
	DoubleIndirectBlocks = 1
	PointersPerIndirect  = 128 // P

	DirectIndex         = 0
	IndirectIndex       = DirectBlocks
	DoubleIndirectIndex = IndirectIndex + IndirectBlocks

	NumPointers = DirectBlocks + IndirectBlocks + DoubleIndirectBlocks // 14

	// MaxFileSize is the 8 MiB (and a bit) cap: 4 direct + 9*128
	// indirect + 1*128*128 double-indirect sectors, times S.
	MaxFileSize = (DirectBlocks + IndirectBlocks*PointersPerIndirect +
		DoubleIndirectBlocks*PointersPerIndirect*PointersPerIndirect) * device.SectorSize

	// Magic identifies a sector as holding an on-disk inode.
	Magic = 0x424C4B46 // "BLKF"
)

// NoSector is the sentinel returned by byteToSector for an offset at
// or beyond the file's length.
const NoSector = device.Sector(0xFFFFFFFF)

// onDisk is the exact-512-byte on-disk inode record of spec.md §3.
// Every field is a fixed-width unsigned integer so that
// encoding/binary can (de)serialize it without host struct padding
// influencing the wire layout.
type onDisk struct {
	Length              uint32
	Magic               uint32
	DirectIndex         uint32
	IndirectIndex       uint32
	DoubleIndirectIndex uint32
	IsDir               uint32
	Parent              uint32
	Unused              [107]uint32
	Ptr                 [NumPointers]uint32
}

func init() {
	var d onDisk
	size := binary.Size(d)
	if size != device.SectorSize {
		panic(errors.Errorf("inode.onDisk is %d bytes, want %d", size, device.SectorSize))
	}
}

func (d *onDisk) encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(device.SectorSize)
	_ = binary.Write(buf, binary.LittleEndian, d)
	return buf.Bytes()
}

func decodeOnDisk(b []byte) (*onDisk, error) {
	var d onDisk
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &d); err != nil {
		return nil, errors.Wrap(err, "decoding on-disk inode")
	}
	return &d, nil
}

// indirectBlock is a sector full of sector pointers: exactly
// PointersPerIndirect entries, device.SectorSize bytes total.
type indirectBlock struct {
	Ptr [PointersPerIndirect]uint32
}

func (b *indirectBlock) encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(device.SectorSize)
	_ = binary.Write(buf, binary.LittleEndian, b)
	return buf.Bytes()
}

func decodeIndirectBlock(raw []byte) (*indirectBlock, error) {
	var b indirectBlock
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &b); err != nil {
		return nil, errors.Wrap(err, "decoding indirect block")
	}
	return &b, nil
}

func bytesToDataSectors(size int64) int {
	return int((size + device.SectorSize - 1) / device.SectorSize)
}

// DataSectorCount reports how many data sectors a file of the given
// length occupies, for callers outside the package (e.g. an fsck
// walk) that need the same arithmetic byteToSector uses internally.
func DataSectorCount(length int64) int {
	return bytesToDataSectors(length)
}

func bytesToIndirectSectors(size int64) int {
	const directSpan = DirectBlocks * device.SectorSize
	if size <= directSpan {
		return 0
	}
	size -= directSpan
	const indirectSpan = PointersPerIndirect * device.SectorSize
	return int((size + indirectSpan - 1) / indirectSpan)
}

func bytesToDoubleIndirectSector(size int64) int {
	const span = (DirectBlocks + IndirectBlocks*PointersPerIndirect) * device.SectorSize
	if size <= span {
		return 0
	}
	return DoubleIndirectBlocks
}
