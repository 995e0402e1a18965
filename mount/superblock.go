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

package mount

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/blockfs/blockfs/device"
)

// superblockSector is the fixed sector holding the filesystem's
// superblock. Nothing else is ever allocated there.
const superblockSector device.Sector = 0

// superblockMagic identifies a formatted device image.
const superblockMagic = 0x42465331 // "BFS1"

// superblock is the small fixed record persisted at sector 0,
// recording where everything else lives. Not named or described as a
// distinct module in spec.md, it is the concrete anchor spec.md's
// DATA MODEL assumes exists for a real device image.
type superblock struct {
	Magic          uint32
	TotalSectors   uint32
	FreeMapSector  uint32
	FreeMapSectors uint32
	RootSector     uint32
	CacheCapacity  uint32
	Reserved       [488]byte // pad to device.SectorSize
}

func (s *superblock) encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(device.SectorSize)
	_ = binary.Write(buf, binary.LittleEndian, s)
	return buf.Bytes()
}

func decodeSuperblock(b []byte) (*superblock, error) {
	var s superblock
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &s); err != nil {
		return nil, errors.Wrap(err, "decoding superblock")
	}
	if s.Magic != superblockMagic {
		return nil, errors.New("mount: device image is not formatted (bad superblock magic)")
	}
	return &s, nil
}

func init() {
	var s superblock
	if binary.Size(s) != device.SectorSize {
		panic(errors.Errorf("mount.superblock is %d bytes, want %d", binary.Size(s), device.SectorSize))
	}
}
