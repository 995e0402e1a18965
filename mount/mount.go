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

// Package mount implements the mount facade of spec.md §4.4: it wires
// together the device, free map, buffer cache, inode table and
// directory layers behind a single Create/Open/Remove/Chdir/Mkdir/
// Readdir surface, and owns the per-Session current-working-directory
// and file-descriptor state.
package mount

import (
	"context"

	"github.com/pkg/errors"

	"github.com/blockfs/blockfs/cache"
	"github.com/blockfs/blockfs/device"
	"github.com/blockfs/blockfs/directory"
	"github.com/blockfs/blockfs/freemap"
	"github.com/blockfs/blockfs/inode"
	"github.com/blockfs/blockfs/internal/clock"
	"github.com/blockfs/blockfs/internal/logger"
)

var log = logger.Named("mount")

// Mount is the filesystem's single entry point: one Mount per open
// device image, shared by every Session created from it.
type Mount struct {
	dev        device.Device
	clk        clock.Clock
	cache      *cache.Cache
	freeMap    *freemap.Bitmap
	table      *inode.Table
	rootSector device.Sector
}

// Format initializes a fresh filesystem on dev: a superblock, a free
// map sized to dev's sector count, and an empty root directory. Any
// existing contents of dev are discarded.
func Format(dev device.Device, clk clock.Clock, cacheCapacity int) (*Mount, error) {
	total := dev.SectorCount()
	fm := freemap.New(total)

	bitmapBytes, err := fm.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "sizing free map")
	}
	freeMapSectorCount := (len(bitmapBytes) + device.SectorSize - 1) / device.SectorSize
	if freeMapSectorCount < 1 {
		freeMapSectorCount = 1
	}
	fm.Reserve(1 + freeMapSectorCount) // superblock + free-map sectors

	c := cache.New(dev, clk, cacheCapacity)
	table := inode.NewTable(c, fm)

	rootSector, err := table.Create(true, 0, 0)
	if err != nil {
		return nil, errors.Wrap(err, "allocating root directory")
	}
	rootIn, err := table.Open(rootSector)
	if err != nil {
		return nil, errors.Wrap(err, "opening root directory")
	}
	rootIn.AddParent(rootSector)
	if err := table.Close(rootIn); err != nil {
		return nil, errors.Wrap(err, "flushing root directory")
	}

	m := &Mount{
		dev:        dev,
		clk:        clk,
		cache:      c,
		freeMap:    fm,
		table:      table,
		rootSector: rootSector,
	}
	if err := m.writeSuperblock(1, uint32(freeMapSectorCount), rootSector, uint32(cacheCapacity)); err != nil {
		return nil, err
	}
	if err := m.persistFreeMap(); err != nil {
		return nil, err
	}
	if err := m.cache.FlushAll(false); err != nil {
		return nil, err
	}
	return m, nil
}

// Open mounts an already-formatted device image.
func Open(dev device.Device, clk clock.Clock) (*Mount, error) {
	buf := make([]byte, device.SectorSize)
	if err := dev.ReadSector(superblockSector, buf); err != nil {
		return nil, errors.Wrap(err, "reading superblock")
	}
	sb, err := decodeSuperblock(buf)
	if err != nil {
		return nil, err
	}

	fm := freemap.New(device.Sector(sb.TotalSectors))
	bitmapBytes := make([]byte, 0, int(sb.FreeMapSectors)*device.SectorSize)
	for i := uint32(0); i < sb.FreeMapSectors; i++ {
		sector := device.Sector(sb.FreeMapSector) + device.Sector(i)
		sectorBuf := make([]byte, device.SectorSize)
		if err := dev.ReadSector(sector, sectorBuf); err != nil {
			return nil, errors.Wrapf(err, "reading free-map sector %d", sector)
		}
		bitmapBytes = append(bitmapBytes, sectorBuf...)
	}
	if err := fm.UnmarshalBinary(bitmapBytes); err != nil {
		return nil, errors.Wrap(err, "decoding free map")
	}

	c := cache.New(dev, clk, int(sb.CacheCapacity))
	table := inode.NewTable(c, fm)

	return &Mount{
		dev:        dev,
		clk:        clk,
		cache:      c,
		freeMap:    fm,
		table:      table,
		rootSector: device.Sector(sb.RootSector),
	}, nil
}

func (m *Mount) writeSuperblock(freeMapSector, freeMapSectors uint32, root device.Sector, cacheCapacity uint32) error {
	sb := &superblock{
		Magic:          superblockMagic,
		TotalSectors:   uint32(m.dev.SectorCount()),
		FreeMapSector:  freeMapSector,
		FreeMapSectors: freeMapSectors,
		RootSector:     uint32(root),
		CacheCapacity:  cacheCapacity,
	}
	return m.dev.WriteSector(superblockSector, sb.encode())
}

func (m *Mount) persistFreeMap() error {
	buf := make([]byte, device.SectorSize)
	var fmStart device.Sector
	var fmCount uint32
	{
		sbBuf := make([]byte, device.SectorSize)
		if err := m.dev.ReadSector(superblockSector, sbBuf); err != nil {
			return errors.Wrap(err, "reading superblock")
		}
		sb, err := decodeSuperblock(sbBuf)
		if err != nil {
			return err
		}
		fmStart = device.Sector(sb.FreeMapSector)
		fmCount = sb.FreeMapSectors
	}

	bitmapBytes, err := m.freeMap.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "marshaling free map")
	}
	for i := uint32(0); i < fmCount; i++ {
		start := int(i) * device.SectorSize
		end := start + device.SectorSize
		for j := range buf {
			buf[j] = 0
		}
		if start < len(bitmapBytes) {
			copy(buf, bitmapBytes[start:min(end, len(bitmapBytes))])
		}
		if err := m.dev.WriteSector(fmStart+device.Sector(i), buf); err != nil {
			return errors.Wrapf(err, "writing free-map sector %d", fmStart+device.Sector(i))
		}
	}
	return nil
}

// StartBackgroundTasks launches the cache's write-back loop. Call
// once after Format or Open, before serving any Session.
func (m *Mount) StartBackgroundTasks(ctx context.Context) {
	m.cache.StartWriteBack(ctx)
}

// NewSession creates a task-like Session rooted at the filesystem
// root (spec.md GLOSSARY: "task"). Use Chdir to move it elsewhere.
// It fails if the root directory cannot be opened (a corrupt on-disk
// record or a device read error).
func (m *Mount) NewSession() (*Session, error) {
	return newSession(m, m.rootSector)
}

// Done shuts the mount down: flushes and drains the cache, persists
// the free map one last time, and closes the underlying device if it
// supports it. The superblock is written only by Format.
func (m *Mount) Done() error {
	if err := m.cache.Shutdown(); err != nil {
		return err
	}
	if err := m.persistFreeMap(); err != nil {
		return err
	}
	if closer, ok := m.dev.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func (m *Mount) closeHandle(h *handle) error {
	if h.isDir {
		return h.dir.Close()
	}
	return m.table.Close(h.file)
}
