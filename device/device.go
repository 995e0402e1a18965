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

// Package device defines the block-device boundary consumed by the
// buffer cache: fixed-size sector reads and writes, assumed
// synchronous and infallible by spec.md (the driver handles retries).
// Concrete implementations exist for tests (MemDevice) and for a
// regular file backing a mountable image (FileDevice).
package device

// SectorSize is the compile-time constant block size, S in spec.md.
const SectorSize = 512

// Sector is an opaque 32-bit index into the block device.
type Sector uint32

// Device is the narrow boundary the buffer cache requires. It is
// pre-bound to a fixed-size extent; growing or shrinking the
// underlying extent is out of scope (spec.md §1).
type Device interface {
	// SectorCount reports the fixed number of addressable sectors.
	SectorCount() Sector

	// ReadSector fills buf (which must be exactly SectorSize bytes)
	// with the contents of sector.
	ReadSector(sector Sector, buf []byte) error

	// WriteSector persists buf (exactly SectorSize bytes) to sector.
	WriteSector(sector Sector, buf []byte) error
}
