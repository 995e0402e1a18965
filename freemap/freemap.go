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

// Package freemap implements the free-map external collaborator of
// spec.md §6: sector allocation and release, backed by a bitmap. The
// core (cache, inode, directory) only ever depends on the FreeMap
// interface it exposes, never on this bitmap representation.
package freemap

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/willf/bitset"

	"github.com/blockfs/blockfs/device"
	"github.com/blockfs/blockfs/internal/logger"
)

var log = logger.Named("freemap")

// ErrNoSpace is returned by Allocate when no run of free sectors of
// the requested length exists. spec.md calls this the "Out-of-disk"
// error kind.
var ErrNoSpace = errors.New("freemap: no space left on device")

// FreeMap is the allocate/release contract consumed by the inode
// layer (spec.md §6). n=1 is the only call site in the module;
// general n is accepted but unused. Format reserves its fixed sectors
// with Bitmap.Reserve instead.
type FreeMap interface {
	Allocate(n int) (first device.Sector, err error)
	Release(first device.Sector, n int)
	// Count returns the number of sectors currently marked free, used
	// by property tests that assert dealloc returns the map to its
	// pre-create population (spec.md §8 property 5).
	Count() int
}

// Bitmap is a FreeMap backed by a willf/bitset.BitSet, one bit per
// sector. It is safe for concurrent use.
type Bitmap struct {
	mu   sync.Mutex
	bits *bitset.BitSet
	size uint
}

var _ FreeMap = (*Bitmap)(nil)

// New creates a free map over sectorCount sectors, all initially
// free.
func New(sectorCount device.Sector) *Bitmap {
	return &Bitmap{bits: bitset.New(uint(sectorCount)), size: uint(sectorCount)}
}

// Reserve marks sectors [0, n) permanently allocated. Used at format
// time to reserve the superblock and free-map sectors before any
// Allocate call can hand them out; the root directory is allocated
// afterwards through Allocate like any other inode.
func (b *Bitmap) Reserve(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := 0; i < n; i++ {
		b.bits.Set(uint(i))
	}
}

// Allocate finds the first run of n consecutive clear bits, marks
// them set, and returns the first sector of the run.
func (b *Bitmap) Allocate(n int) (device.Sector, error) {
	if n <= 0 {
		return 0, errors.New("freemap: n must be positive")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	run := 0
	var start uint
	for i := uint(0); i < b.size; i++ {
		if b.bits.Test(i) {
			run = 0
			continue
		}
		if run == 0 {
			start = i
		}
		run++
		if run == n {
			for j := start; j < start+uint(n); j++ {
				b.bits.Set(j)
			}
			return device.Sector(start), nil
		}
	}

	log.Warnf("allocate failed: no run of %d free sectors among %d", n, b.size)
	return 0, ErrNoSpace
}

// Release returns [first, first+n) to the free pool.
func (b *Bitmap) Release(first device.Sector, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for j := uint(first); j < uint(first)+uint(n); j++ {
		b.bits.Clear(j)
	}
}

// Count returns the number of sectors still marked free.
func (b *Bitmap) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(b.size) - int(b.bits.Count())
}

// MarshalBinary serializes the bitmap for persistence to the device's
// reserved free-map sectors, which start at sector 1, right after the
// superblock.
func (b *Bitmap) MarshalBinary() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bits.MarshalBinary()
}

// UnmarshalBinary restores a previously persisted bitmap.
func (b *Bitmap) UnmarshalBinary(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bits == nil {
		b.bits = bitset.New(b.size)
	}
	return b.bits.UnmarshalBinary(data)
}
