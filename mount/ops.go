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
	"github.com/blockfs/blockfs/device"
	"github.com/blockfs/blockfs/directory"
)

// Create creates a new file at path, pre-allocated to size bytes
// (spec.md §4.2/§6's create(path, size)), and returns an open fd for
// it within session.
func (m *Mount) Create(session *Session, path string, size int64) (int, error) {
	parentSector, name, err := m.resolveParent(session, path)
	if err != nil {
		return -1, err
	}

	d, err := directory.Open(m.table, parentSector)
	if err != nil {
		return -1, err
	}
	defer d.Close()

	childSector, err := m.table.Create(false, parentSector, size)
	if err != nil {
		return -1, err
	}
	if err := d.Add(name, childSector); err != nil {
		m.abandon(childSector)
		return -1, err
	}

	in, err := m.table.Open(childSector)
	if err != nil {
		return -1, err
	}
	return session.allocFd(&handle{file: in}), nil
}

// Mkdir creates a new, empty directory at path. Unlike Create, it
// does not open it.
func (m *Mount) Mkdir(session *Session, path string) error {
	parentSector, name, err := m.resolveParent(session, path)
	if err != nil {
		return err
	}

	d, err := directory.Open(m.table, parentSector)
	if err != nil {
		return err
	}
	defer d.Close()

	childSector, err := directory.Create(m.table, parentSector)
	if err != nil {
		return err
	}
	if err := d.Add(name, childSector); err != nil {
		m.abandon(childSector)
		return err
	}
	return nil
}

// abandon tears down a just-created, never-linked inode after a
// failed Add, so the sectors Create/Mkdir reserved for it don't leak.
func (m *Mount) abandon(sector device.Sector) {
	in, err := m.table.Open(sector)
	if err != nil {
		log.Warnf("abandon: reopening sector %d: %v", sector, err)
		return
	}
	m.table.MarkRemoved(in)
	if err := m.table.Close(in); err != nil {
		log.Warnf("abandon: closing sector %d: %v", sector, err)
	}
}

// OpenFile opens the file at path and returns an fd, or ErrNotAFile
// if path names a directory.
func (m *Mount) OpenFile(session *Session, path string) (int, error) {
	sector, err := m.resolve(session, path)
	if err != nil {
		return -1, err
	}
	in, err := m.table.Open(sector)
	if err != nil {
		return -1, err
	}
	if in.IsDir() {
		m.table.Close(in)
		return -1, ErrNotAFile
	}
	return session.allocFd(&handle{file: in}), nil
}

// OpenDir opens the directory at path and returns an fd, or
// ErrNotADirectory if path names a file.
func (m *Mount) OpenDir(session *Session, path string) (int, error) {
	sector, err := m.resolve(session, path)
	if err != nil {
		return -1, err
	}
	d, err := directory.Open(m.table, sector)
	if err != nil {
		if err == directory.ErrNotADir {
			return -1, ErrNotADirectory
		}
		return -1, err
	}
	return session.allocFd(&handle{isDir: true, dir: d}), nil
}

// Close releases fd within session.
func (m *Mount) Close(session *Session, fd int) error {
	h, err := session.dropFd(fd)
	if err != nil {
		return err
	}
	return m.closeHandle(h)
}

// ReadAt reads from the file open at fd.
func (m *Mount) ReadAt(session *Session, fd int, buf []byte, offset int64) (int, error) {
	h, err := session.lookupFd(fd)
	if err != nil {
		return 0, err
	}
	if h.isDir {
		return 0, ErrNotAFile
	}
	return h.file.ReadAt(buf, offset)
}

// WriteAt writes to the file open at fd, growing it if necessary.
func (m *Mount) WriteAt(session *Session, fd int, buf []byte, offset int64) (int, error) {
	h, err := session.lookupFd(fd)
	if err != nil {
		return 0, err
	}
	if h.isDir {
		return 0, ErrNotAFile
	}
	return h.file.WriteAt(buf, offset)
}

// Length returns the current length of the file open at fd.
func (m *Mount) Length(session *Session, fd int) (int64, error) {
	h, err := session.lookupFd(fd)
	if err != nil {
		return 0, err
	}
	if h.isDir {
		return 0, ErrNotAFile
	}
	return h.file.Length(), nil
}

// Remove unlinks the entry at path from its containing directory. A
// file that is still open through some fd is unlinked at once and its
// storage is torn down at its last Close. A directory that anything
// else holds open, including as a session's current working
// directory, is refused with directory.ErrBusy (spec.md §4.3).
func (m *Mount) Remove(session *Session, path string) error {
	parentSector, name, err := m.resolveParent(session, path)
	if err != nil {
		return err
	}
	d, err := directory.Open(m.table, parentSector)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Remove(name)
}

// Chdir changes session's current working directory to path. The new
// directory stays open for as long as it remains the cwd, which is
// what makes Remove of a session's cwd fail as busy.
func (m *Mount) Chdir(session *Session, path string) error {
	sector, err := m.resolve(session, path)
	if err != nil {
		return err
	}
	d, err := directory.Open(m.table, sector)
	if err != nil {
		if err == directory.ErrNotADir {
			return ErrNotADirectory
		}
		return err
	}
	return session.setCwd(d)
}

// Readdir returns the next entry of the directory open at fd.
func (m *Mount) Readdir(session *Session, fd int) (string, device.Sector, bool, error) {
	h, err := session.lookupFd(fd)
	if err != nil {
		return "", 0, false, err
	}
	if !h.isDir {
		return "", 0, false, ErrNotADirectory
	}
	return h.dir.Readdir(&h.pos)
}

// IsDir reports whether path names a directory.
func (m *Mount) IsDir(session *Session, path string) (bool, error) {
	sector, err := m.resolve(session, path)
	if err != nil {
		return false, err
	}
	in, err := m.table.Open(sector)
	if err != nil {
		return false, err
	}
	defer m.table.Close(in)
	return in.IsDir(), nil
}

// Inumber returns the inode sector number backing fd.
func (m *Mount) Inumber(session *Session, fd int) (device.Sector, error) {
	h, err := session.lookupFd(fd)
	if err != nil {
		return 0, err
	}
	if h.isDir {
		return h.dir.Sector(), nil
	}
	return h.file.Sector(), nil
}
