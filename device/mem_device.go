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

package device

import (
	"sync"

	"github.com/pkg/errors"
)

// MemDevice is an in-memory Device, used by tests that want a fast,
// disposable block device without touching the filesystem.
type MemDevice struct {
	mu      sync.Mutex
	sectors [][SectorSize]byte
}

var _ Device = (*MemDevice)(nil)

// NewMemDevice allocates a zero-filled in-memory device of n sectors.
func NewMemDevice(n Sector) *MemDevice {
	return &MemDevice{sectors: make([][SectorSize]byte, n)}
}

func (d *MemDevice) SectorCount() Sector { return Sector(len(d.sectors)) }

func (d *MemDevice) ReadSector(sector Sector, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(sector) >= len(d.sectors) {
		return errors.Errorf("sector %d out of range (%d sectors)", sector, len(d.sectors))
	}
	copy(buf, d.sectors[sector][:])
	return nil
}

func (d *MemDevice) WriteSector(sector Sector, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(sector) >= len(d.sectors) {
		return errors.Errorf("sector %d out of range (%d sectors)", sector, len(d.sectors))
	}
	copy(d.sectors[sector][:], buf[:SectorSize])
	return nil
}
