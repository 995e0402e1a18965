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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockfs/blockfs/cache"
	"github.com/blockfs/blockfs/device"
	"github.com/blockfs/blockfs/freemap"
	"github.com/blockfs/blockfs/internal/clock"
)

func newTestTable(t *testing.T, sectorCount device.Sector) *Table {
	t.Helper()
	dev := device.NewMemDevice(sectorCount)
	fm := freemap.New(sectorCount)
	c := cache.New(dev, clock.RealClock{}, 64)
	return NewTable(c, fm)
}

func TestCreateOpenCloseRoundTrips(t *testing.T) {
	table := newTestTable(t, 64)

	sector, err := table.Create(false, 0, 0)
	require.NoError(t, err)

	in, err := table.Open(sector)
	require.NoError(t, err)
	assert.False(t, in.IsDir())
	assert.Equal(t, int64(0), in.Length())
	require.NoError(t, table.Close(in))

	in2, err := table.Open(sector)
	require.NoError(t, err)
	assert.Equal(t, int64(0), in2.Length())
	require.NoError(t, table.Close(in2))
}

func TestCreateWithLengthPreallocatesZeroFilled(t *testing.T) {
	table := newTestTable(t, 64)

	sector, err := table.Create(false, 0, int64(device.SectorSize*3))
	require.NoError(t, err)

	in, err := table.Open(sector)
	require.NoError(t, err)
	assert.Equal(t, int64(device.SectorSize*3), in.Length())

	buf := make([]byte, device.SectorSize*3)
	n, err := in.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	for _, b := range buf {
		assert.Equal(t, byte(0), b)
	}
	require.NoError(t, table.Close(in))
}

func TestCreateWithLengthFailsCleanlyWhenFreeMapExhausted(t *testing.T) {
	table := newTestTable(t, 4)

	_, err := table.Create(false, 0, int64(device.SectorSize*8))
	require.Error(t, err)

	// The failed pre-allocation must not leak sectors: a fresh create of
	// reasonable size should still succeed against the same free map.
	sector, err := table.Create(false, 0, int64(device.SectorSize))
	require.NoError(t, err)
	in, err := table.Open(sector)
	require.NoError(t, err)
	require.NoError(t, table.Close(in))
}

func TestOpenSameSectorTwiceSharesOneInode(t *testing.T) {
	table := newTestTable(t, 64)
	sector, err := table.Create(false, 0, 0)
	require.NoError(t, err)

	a, err := table.Open(sector)
	require.NoError(t, err)
	b, err := table.Open(sector)
	require.NoError(t, err)
	assert.Same(t, a, b)

	require.NoError(t, table.Close(a))
	require.NoError(t, table.Close(b))
}

func TestWriteAtGrowsFileAndReadAtReadsItBack(t *testing.T) {
	table := newTestTable(t, 64)
	sector, err := table.Create(false, 0, 0)
	require.NoError(t, err)
	in, err := table.Open(sector)
	require.NoError(t, err)

	data := []byte("hello, blockfs")
	n, err := in.WriteAt(data, 100)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, int64(100+len(data)), in.Length())

	buf := make([]byte, len(data))
	n, err = in.ReadAt(buf, 100)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, buf)

	// The gap before offset 100 must read back as zeros.
	gap := make([]byte, 100)
	n, err = in.ReadAt(gap, 0)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	for _, b := range gap {
		assert.Equal(t, byte(0), b)
	}

	require.NoError(t, table.Close(in))
}

func TestWriteAtAcrossIndirectBoundaryGrowsThroughIndirectBlocks(t *testing.T) {
	table := newTestTable(t, 4096)
	sector, err := table.Create(false, 0, 0)
	require.NoError(t, err)
	in, err := table.Open(sector)
	require.NoError(t, err)

	// DirectBlocks*SectorSize is the boundary where indirect blocks
	// start being needed; write across it.
	offset := int64(DirectBlocks*device.SectorSize - 10)
	data := make([]byte, 40)
	for i := range data {
		data[i] = byte(i)
	}
	n, err := in.WriteAt(data, offset)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	buf := make([]byte, len(data))
	n, err = in.ReadAt(buf, offset)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, buf)

	require.NoError(t, table.Close(in))
}

func TestWriteAtBeyondMaxFileSizeIsRejected(t *testing.T) {
	table := newTestTable(t, 64)
	sector, err := table.Create(false, 0, 0)
	require.NoError(t, err)
	in, err := table.Open(sector)
	require.NoError(t, err)

	n, err := in.WriteAt([]byte("x"), MaxFileSize)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	require.NoError(t, table.Close(in))
}

func TestRemoveDefersTeardownUntilLastClose(t *testing.T) {
	table := newTestTable(t, 64)
	freeBefore := table.freeMap.Count()

	sector, err := table.Create(false, 0, 0)
	require.NoError(t, err)

	a, err := table.Open(sector)
	require.NoError(t, err)
	b, err := table.Open(sector)
	require.NoError(t, err)

	_, err = a.WriteAt([]byte("data"), 0)
	require.NoError(t, err)

	table.MarkRemoved(a)
	require.NoError(t, table.Close(a))

	// b still holds it open; the sector must not be reusable yet.
	_, err = b.ReadAt(make([]byte, 4), 0)
	require.NoError(t, err)
	assert.Equal(t, freeBefore-2, table.freeMap.Count(), "inode sector and its data sector stay allocated while b holds the inode")

	require.NoError(t, table.Close(b))

	freeAfter := table.freeMap.Count()
	assert.Equal(t, freeBefore, freeAfter, "dealloc should return every allocated sector to the free map")
}

func TestDenyWriteBlocksWriteAt(t *testing.T) {
	table := newTestTable(t, 64)
	sector, err := table.Create(false, 0, 0)
	require.NoError(t, err)
	in, err := table.Open(sector)
	require.NoError(t, err)

	table.DenyWrite(in)
	_, err = in.WriteAt([]byte("x"), 0)
	assert.ErrorIs(t, err, ErrWriteDenied)

	table.AllowWrite(in)
	_, err = in.WriteAt([]byte("x"), 0)
	assert.NoError(t, err)

	require.NoError(t, table.Close(in))
}
