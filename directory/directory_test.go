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

package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockfs/blockfs/cache"
	"github.com/blockfs/blockfs/device"
	"github.com/blockfs/blockfs/freemap"
	"github.com/blockfs/blockfs/inode"
	"github.com/blockfs/blockfs/internal/clock"
)

func newTestTable(t *testing.T) *inode.Table {
	t.Helper()
	dev := device.NewMemDevice(256)
	fm := freemap.New(256)
	c := cache.New(dev, clock.RealClock{}, 64)
	return inode.NewTable(c, fm)
}

func newRoot(t *testing.T, table *inode.Table) device.Sector {
	t.Helper()
	sector, err := table.Create(true, 0, 0)
	require.NoError(t, err)
	in, err := table.Open(sector)
	require.NoError(t, err)
	in.AddParent(sector)
	require.NoError(t, table.Close(in))
	return sector
}

func TestAddAndLookup(t *testing.T) {
	table := newTestTable(t)
	root := newRoot(t, table)

	d, err := Open(table, root)
	require.NoError(t, err)
	defer d.Close()

	fileSector, err := table.Create(false, root, 0)
	require.NoError(t, err)
	require.NoError(t, d.Add("hello.txt", fileSector))

	got, err := d.Lookup("hello.txt")
	require.NoError(t, err)
	assert.Equal(t, fileSector, got)

	dot, err := d.Lookup(".")
	require.NoError(t, err)
	assert.Equal(t, root, dot)

	dotdot, err := d.Lookup("..")
	require.NoError(t, err)
	assert.Equal(t, root, dotdot)
}

func TestAddDuplicateNameFails(t *testing.T) {
	table := newTestTable(t)
	root := newRoot(t, table)
	d, err := Open(table, root)
	require.NoError(t, err)
	defer d.Close()

	s1, err := table.Create(false, root, 0)
	require.NoError(t, err)
	require.NoError(t, d.Add("a", s1))

	s2, err := table.Create(false, root, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, d.Add("a", s2), ErrExists)
}

func TestAddRejectsBadNames(t *testing.T) {
	table := newTestTable(t)
	root := newRoot(t, table)
	d, err := Open(table, root)
	require.NoError(t, err)
	defer d.Close()

	s, err := table.Create(false, root, 0)
	require.NoError(t, err)

	assert.Error(t, d.Add("", s))
	assert.Error(t, d.Add("has/slash", s))
	assert.Error(t, d.Add("this-name-is-too-long", s))
	assert.Error(t, d.Add(".", s))
	assert.Error(t, d.Add("..", s))
}

func TestRemoveReusesFreedSlot(t *testing.T) {
	table := newTestTable(t)
	root := newRoot(t, table)
	d, err := Open(table, root)
	require.NoError(t, err)
	defer d.Close()

	s1, err := table.Create(false, root, 0)
	require.NoError(t, err)
	require.NoError(t, d.Add("a", s1))
	lengthAfterFirst := rootLength(t, d)

	require.NoError(t, d.Remove("a"))

	s2, err := table.Create(false, root, 0)
	require.NoError(t, err)
	require.NoError(t, d.Add("b", s2))
	lengthAfterReuse := rootLength(t, d)

	assert.Equal(t, lengthAfterFirst, lengthAfterReuse, "Add after Remove should reuse the freed slot, not grow the directory")
}

func rootLength(t *testing.T, d *Directory) int64 {
	t.Helper()
	return d.in.Length()
}

func TestRemoveNonEmptyDirectoryFails(t *testing.T) {
	table := newTestTable(t)
	root := newRoot(t, table)
	d, err := Open(table, root)
	require.NoError(t, err)
	defer d.Close()

	childSector, err := Create(table, root)
	require.NoError(t, err)
	require.NoError(t, d.Add("sub", childSector))

	child, err := Open(table, childSector)
	require.NoError(t, err)
	grandchild, err := table.Create(false, childSector, 0)
	require.NoError(t, err)
	require.NoError(t, child.Add("file", grandchild))
	require.NoError(t, child.Close())

	assert.ErrorIs(t, d.Remove("sub"), ErrNotEmpty)
}

func TestRemoveBusyDirectoryFails(t *testing.T) {
	table := newTestTable(t)
	root := newRoot(t, table)
	d, err := Open(table, root)
	require.NoError(t, err)
	defer d.Close()

	childSector, err := Create(table, root)
	require.NoError(t, err)
	require.NoError(t, d.Add("sub", childSector))

	// Simulate some session holding "sub" open as its cwd.
	held, err := table.Open(childSector)
	require.NoError(t, err)
	defer table.Close(held)

	assert.ErrorIs(t, d.Remove("sub"), ErrBusy)
}

func TestReaddirSkipsRemovedEntries(t *testing.T) {
	table := newTestTable(t)
	root := newRoot(t, table)
	d, err := Open(table, root)
	require.NoError(t, err)
	defer d.Close()

	s1, err := table.Create(false, root, 0)
	require.NoError(t, err)
	require.NoError(t, d.Add("a", s1))
	s2, err := table.Create(false, root, 0)
	require.NoError(t, err)
	require.NoError(t, d.Add("b", s2))

	require.NoError(t, d.Remove("a"))

	var cursor int64
	var names []string
	for {
		name, _, ok, err := d.Readdir(&cursor)
		require.NoError(t, err)
		if !ok {
			break
		}
		names = append(names, name)
	}
	assert.Equal(t, []string{"b"}, names)
}
