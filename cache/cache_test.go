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

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockfs/blockfs/device"
	"github.com/blockfs/blockfs/internal/clock"
)

func TestGetMissReadsThroughToDevice(t *testing.T) {
	dev := device.NewMemDevice(4)
	want := make([]byte, device.SectorSize)
	want[0] = 0xAB
	require.NoError(t, dev.WriteSector(2, want))

	c := New(dev, clock.RealClock{}, 4)
	h, err := c.Get(2, false)
	require.NoError(t, err)
	assert.Equal(t, want, h.Bytes())
	c.Release(h, false)
}

func TestGetHitReturnsSameEntryWithoutDeviceRead(t *testing.T) {
	dev := device.NewMemDevice(4)
	c := New(dev, clock.RealClock{}, 4)

	h1, err := c.Get(0, true)
	require.NoError(t, err)
	h1.Bytes()[5] = 0x42
	c.Release(h1, true)

	h2, err := c.Get(0, false)
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), h2.Bytes()[5])
	c.Release(h2, false)

	assert.Equal(t, 1, c.Len())
}

func TestEvictionWritesBackDirtyEntries(t *testing.T) {
	dev := device.NewMemDevice(8)
	c := New(dev, clock.RealClock{}, 2)

	h0, err := c.Get(0, true)
	require.NoError(t, err)
	h0.Bytes()[0] = 0x11
	c.Release(h0, true)

	h1, err := c.Get(1, true)
	require.NoError(t, err)
	h1.Bytes()[0] = 0x22
	c.Release(h1, true)

	// Both entries are now unpinned and accessed=true; a third Get
	// forces a clock sweep that must evict and write one of them
	// back before admitting sector 2.
	h2, err := c.Get(2, false)
	require.NoError(t, err)
	c.Release(h2, false)

	assert.Equal(t, 2, c.Len())

	buf := make([]byte, device.SectorSize)
	require.NoError(t, dev.ReadSector(0, buf))
	onDiskZero := buf[0] == 0x11
	require.NoError(t, dev.ReadSector(1, buf))
	onDiskOne := buf[0] == 0x22
	assert.True(t, onDiskZero || onDiskOne, "expected at least one evicted entry written back")
}

func TestPinnedEntriesAreNeverEvicted(t *testing.T) {
	dev := device.NewMemDevice(8)
	c := New(dev, clock.RealClock{}, 2)

	h0, err := c.Get(0, false)
	require.NoError(t, err)
	// Sector 0 stays pinned while sectors 1 and 2 pass through the
	// second slot; the clock sweep must skip the pinned entry and
	// evict sector 1 to admit sector 2.
	for s := device.Sector(1); s <= 2; s++ {
		h, err := c.Get(s, false)
		require.NoError(t, err)
		c.Release(h, false)
	}

	assert.Equal(t, 2, c.Len())
	assert.Same(t, h0.e, c.find(0), "pinned sector 0 must still be resident in its original entry")
	c.Release(h0, false)
}

func TestFlushAllDrainEmptiesCache(t *testing.T) {
	dev := device.NewMemDevice(4)
	c := New(dev, clock.RealClock{}, 4)

	h, err := c.Get(0, true)
	require.NoError(t, err)
	h.Bytes()[0] = 0x99
	c.Release(h, true)

	require.NoError(t, c.FlushAll(true))
	assert.Equal(t, 0, c.Len())

	buf := make([]byte, device.SectorSize)
	require.NoError(t, dev.ReadSector(0, buf))
	assert.Equal(t, byte(0x99), buf[0])
}

func TestWriteBackFlushesOnSimulatedClockTick(t *testing.T) {
	dev := device.NewMemDevice(4)
	clk := clock.NewSimulatedClock(time.Unix(0, 0))
	c := New(dev, clk, 4)

	h, err := c.Get(0, true)
	require.NoError(t, err)
	h.Bytes()[0] = 0x7
	c.Release(h, true)

	ctx, cancel := context.WithCancel(context.Background())
	c.StartWriteBack(ctx)

	// Advance the simulated clock on every poll, so a tick still fires
	// if the write-back goroutine registers its timer after the first
	// advance.
	flushedByTick := false
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		clk.AdvanceTime(WriteBackInterval)
		buf := make([]byte, device.SectorSize)
		_ = dev.ReadSector(0, buf)
		if buf[0] == 0x7 {
			flushedByTick = true
			break
		}
		time.Sleep(time.Millisecond)
	}
	assert.True(t, flushedByTick, "write-back task should flush the dirty sector before Shutdown drains the cache")

	cancel()
	require.NoError(t, c.Shutdown())

	buf := make([]byte, device.SectorSize)
	require.NoError(t, dev.ReadSector(0, buf))
	assert.Equal(t, byte(0x7), buf[0])
}

func TestReadAheadFetchesNextSectorBestEffort(t *testing.T) {
	dev := device.NewMemDevice(4)
	c := New(dev, clock.RealClock{}, 4)
	c.StartWriteBack(context.Background())
	defer c.Shutdown()

	c.ReadAhead(0)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && c.Len() == 0 {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 1, c.Len())
}
