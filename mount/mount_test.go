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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockfs/blockfs/device"
	"github.com/blockfs/blockfs/internal/clock"
)

func newTestMount(t *testing.T) *Mount {
	t.Helper()
	dev := device.NewMemDevice(2048)
	m, err := Format(dev, clock.RealClock{}, 32)
	require.NoError(t, err)
	return m
}

func TestCreateWriteReadRoundTrip(t *testing.T) {
	m := newTestMount(t)
	s, err := m.NewSession()
	require.NoError(t, err)

	fd, err := m.Create(s, "/hello.txt", 0)
	require.NoError(t, err)

	n, err := m.WriteAt(s, fd, []byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = m.ReadAt(s, fd, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	require.NoError(t, m.Close(s, fd))
}

func TestCreateWithSizePreallocates(t *testing.T) {
	m := newTestMount(t)
	s, err := m.NewSession()
	require.NoError(t, err)

	fd, err := m.Create(s, "/a", 2048)
	require.NoError(t, err)

	size, err := m.Length(s, fd)
	require.NoError(t, err)
	assert.Equal(t, int64(2048), size)

	buf := make([]byte, 2048)
	n, err := m.ReadAt(s, fd, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 2048, n)
	for _, b := range buf {
		assert.Equal(t, byte(0), b)
	}

	require.NoError(t, m.Close(s, fd))
}

func TestMkdirChdirRelativePaths(t *testing.T) {
	m := newTestMount(t)
	s, err := m.NewSession()
	require.NoError(t, err)

	require.NoError(t, m.Mkdir(s, "/a"))
	require.NoError(t, m.Chdir(s, "/a"))
	require.NoError(t, m.Mkdir(s, "b"))

	isDir, err := m.IsDir(s, "b")
	require.NoError(t, err)
	assert.True(t, isDir)

	require.NoError(t, m.Chdir(s, "b"))
	require.NoError(t, m.Chdir(s, ".."))
	require.NoError(t, m.Chdir(s, ".."))

	isDir, err = m.IsDir(s, "/a/b")
	require.NoError(t, err)
	assert.True(t, isDir)
}

func TestReaddirListsCreatedEntries(t *testing.T) {
	m := newTestMount(t)
	s, err := m.NewSession()
	require.NoError(t, err)

	for _, name := range []string{"one", "two", "three"} {
		fd, err := m.Create(s, "/"+name, 0)
		require.NoError(t, err)
		require.NoError(t, m.Close(s, fd))
	}

	fd, err := m.OpenDir(s, "/")
	require.NoError(t, err)
	defer m.Close(s, fd)

	seen := map[string]bool{}
	for {
		name, _, ok, err := m.Readdir(s, fd)
		require.NoError(t, err)
		if !ok {
			break
		}
		seen[name] = true
	}
	assert.Equal(t, map[string]bool{"one": true, "two": true, "three": true}, seen)
}

func TestRemoveThenCreateReusesName(t *testing.T) {
	m := newTestMount(t)
	s, err := m.NewSession()
	require.NoError(t, err)

	fd, err := m.Create(s, "/f", 0)
	require.NoError(t, err)
	require.NoError(t, m.Close(s, fd))

	require.NoError(t, m.Remove(s, "/f"))

	fd, err = m.Create(s, "/f", 0)
	require.NoError(t, err)
	require.NoError(t, m.Close(s, fd))
}

func TestOpenFileOnDirectoryFails(t *testing.T) {
	m := newTestMount(t)
	s, err := m.NewSession()
	require.NoError(t, err)

	require.NoError(t, m.Mkdir(s, "/d"))
	_, err = m.OpenFile(s, "/d")
	assert.ErrorIs(t, err, ErrNotAFile)
}

func TestSessionsHaveIndependentWorkingDirectories(t *testing.T) {
	m := newTestMount(t)
	a, err := m.NewSession()
	require.NoError(t, err)
	b, err := m.NewSession()
	require.NoError(t, err)

	require.NoError(t, a.mnt.Mkdir(a, "/only-a"))
	require.NoError(t, m.Chdir(a, "/only-a"))

	// b's cwd is unaffected by a's Chdir.
	_, err = m.Create(b, "rootfile", 0)
	require.NoError(t, err)

	isDir, err := m.IsDir(b, "/rootfile")
	require.NoError(t, err)
	assert.False(t, isDir)
}

func TestFSCKFindsNoErrorsOnCleanTree(t *testing.T) {
	m := newTestMount(t)
	s, err := m.NewSession()
	require.NoError(t, err)

	require.NoError(t, m.Mkdir(s, "/a"))
	fd, err := m.Create(s, "/a/f", 0)
	require.NoError(t, err)
	require.NoError(t, m.Close(s, fd))

	report, err := m.FSCK()
	require.NoError(t, err)
	assert.Empty(t, report.Errors)
	assert.Equal(t, 3, report.VisitedInodes) // root + "a" + "a/f"
}

func TestFormatThenOpenPreservesTree(t *testing.T) {
	dev := device.NewMemDevice(2048)
	m, err := Format(dev, clock.RealClock{}, 16)
	require.NoError(t, err)
	s, err := m.NewSession()
	require.NoError(t, err)
	require.NoError(t, m.Mkdir(s, "/persisted"))
	fd, err := m.Create(s, "/persisted/file", 0)
	require.NoError(t, err)
	_, err = m.WriteAt(s, fd, []byte("durable"), 0)
	require.NoError(t, err)
	require.NoError(t, m.Close(s, fd))
	require.NoError(t, m.Done())

	m2, err := Open(dev, clock.RealClock{})
	require.NoError(t, err)

	s2, err := m2.NewSession()
	require.NoError(t, err)
	fd2, err := m2.OpenFile(s2, "/persisted/file")
	require.NoError(t, err)
	buf := make([]byte, 7)
	n, err := m2.ReadAt(s2, fd2, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "durable", string(buf[:n]))
	require.NoError(t, m2.Close(s2, fd2))
}
