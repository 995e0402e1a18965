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

// Package directory implements the hierarchical namespace of
// spec.md §4.3: directories are ordinary inode-backed files holding
// a flat array of name/inode-sector entries, with "." and ".."
// resolved through the inode's own parent pointer rather than stored
// as entries.
package directory

import (
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/blockfs/blockfs/device"
	"github.com/blockfs/blockfs/inode"
	"github.com/blockfs/blockfs/internal/logger"
)

var log = logger.Named("directory")

// NameMax is the longest file name component this filesystem accepts
// (spec.md §3).
const NameMax = 14

var (
	ErrNotFound  = errors.New("directory: no such entry")
	ErrExists    = errors.New("directory: entry already exists")
	ErrNotEmpty  = errors.New("directory: directory not empty")
	ErrBusy      = errors.New("directory: entry is in use")
	ErrBadName   = errors.New("directory: invalid name")
	ErrNotADir   = errors.New("directory: not a directory")
)

// Directory is an open directory: an inode.Inode known to hold
// directory-entry records, plus the mutex that serializes every
// mutating operation against it end to end (spec.md's Open Question
// 3 resolution — the whole Add/Remove call holds this lock, not just
// the underlying inode's grow phase).
type Directory struct {
	mu    sync.Mutex
	in    *inode.Inode
	table *inode.Table
}

// Create allocates a new, empty directory inode with the given
// parent. It does not open it; call Open with the returned sector to
// get a usable Directory.
func Create(table *inode.Table, parent device.Sector) (device.Sector, error) {
	return table.Create(true, parent, 0)
}

// Open opens the directory inode at sector. Returns ErrNotADir if the
// inode is not a directory.
func Open(table *inode.Table, sector device.Sector) (*Directory, error) {
	in, err := table.Open(sector)
	if err != nil {
		return nil, err
	}
	if !in.IsDir() {
		table.Close(in)
		return nil, ErrNotADir
	}
	return &Directory{in: in, table: table}, nil
}

// Close releases the directory's inode reference.
func (d *Directory) Close() error {
	return d.table.Close(d.in)
}

// Sector returns the directory's own inode sector.
func (d *Directory) Sector() device.Sector { return d.in.Sector() }

// Parent returns the sector of the containing directory's inode.
func (d *Directory) Parent() device.Sector { return d.in.Parent() }

// validName rejects empty names, names over NameMax bytes, and names
// containing a path separator (spec.md §4.3 edge cases).
func validName(name string) error {
	if name == "" {
		return errors.Wrap(ErrBadName, "empty name")
	}
	if len(name) > NameMax {
		return errors.Wrapf(ErrBadName, "name %q longer than %d bytes", name, NameMax)
	}
	if strings.ContainsRune(name, '/') {
		return errors.Wrapf(ErrBadName, "name %q contains '/'", name)
	}
	return nil
}

// Lookup resolves name within d, handling "." and ".." via the
// inode's own fields rather than a stored entry.
func (d *Directory) Lookup(name string) (device.Sector, error) {
	switch name {
	case ".":
		return d.in.Sector(), nil
	case "..":
		return d.in.Parent(), nil
	}
	if err := validName(name); err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	e, _, err := d.findLocked(name)
	if err != nil {
		return 0, err
	}
	return device.Sector(e.InodeSector), nil
}

// Add links name to childSector within d. Fails with ErrExists if
// name is already present, or ErrBadName for "." / ".." / empty /
// slash-containing / over-long names.
func (d *Directory) Add(name string, childSector device.Sector) error {
	if name == "." || name == ".." {
		return errors.Wrap(ErrBadName, "\".\" and \"..\" are not directory entries")
	}
	if err := validName(name); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, _, err := d.findLocked(name); err == nil {
		return ErrExists
	}

	offset, err := d.freeSlotLocked()
	if err != nil {
		return err
	}

	var e onDiskEntry
	e.InUse = 1
	copy(e.Name[:], name)
	e.InodeSector = uint32(childSector)

	_, err = d.in.WriteAt(e.encode(), offset)
	return err
}

// Remove unlinks name from d. If the named entry is itself a
// directory, Remove refuses with ErrNotEmpty unless it is empty, and
// with ErrBusy if anything beyond this call currently has it open
// (e.g. it is some session's current working directory). Teardown of
// the removed inode's storage is deferred to its last Close, per
// spec.md's deferred-removal rule.
func (d *Directory) Remove(name string) error {
	if name == "." || name == ".." {
		return errors.Wrap(ErrBadName, "\".\" and \"..\" cannot be removed")
	}
	if err := validName(name); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	e, offset, err := d.findLocked(name)
	if err != nil {
		return err
	}
	childSector := device.Sector(e.InodeSector)

	child, err := d.table.Open(childSector)
	if err != nil {
		return err
	}
	defer d.table.Close(child)

	if child.IsDir() {
		empty, err := isEmptyDir(child)
		if err != nil {
			return err
		}
		if !empty {
			return ErrNotEmpty
		}
		if d.table.OpenCount(child) > 1 {
			return ErrBusy
		}
	}

	e.InUse = 0
	if _, err := d.in.WriteAt(e.encode(), offset); err != nil {
		return err
	}
	d.table.MarkRemoved(child)
	return nil
}

// Readdir returns the next active entry at or after cursor, advancing
// cursor past it. ok is false once every entry has been returned.
// "." and "..", never being stored entries, are never yielded.
func (d *Directory) Readdir(cursor *int64) (name string, sector device.Sector, ok bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	length := d.in.Length()
	for *cursor+entrySize <= length {
		offset := *cursor
		*cursor += entrySize

		e, err := d.readEntryLocked(offset)
		if err != nil {
			return "", 0, false, err
		}
		if e.InUse == 0 {
			continue
		}
		return e.name(), device.Sector(e.InodeSector), true, nil
	}
	return "", 0, false, nil
}

func isEmptyDir(in *inode.Inode) (bool, error) {
	length := in.Length()
	buf := make([]byte, entrySize)
	for offset := int64(0); offset+entrySize <= length; offset += entrySize {
		n, err := in.ReadAt(buf, offset)
		if err != nil {
			return false, err
		}
		if n < entrySize {
			break
		}
		e, err := decodeEntry(buf)
		if err != nil {
			return false, err
		}
		if e.InUse != 0 {
			return false, nil
		}
	}
	return true, nil
}

// findLocked scans d's entries for an active one named name. Caller
// holds d.mu.
func (d *Directory) findLocked(name string) (*onDiskEntry, int64, error) {
	length := d.in.Length()
	for offset := int64(0); offset+entrySize <= length; offset += entrySize {
		e, err := d.readEntryLocked(offset)
		if err != nil {
			return nil, 0, err
		}
		if e.InUse != 0 && e.name() == name {
			return e, offset, nil
		}
	}
	return nil, 0, ErrNotFound
}

// freeSlotLocked returns the offset of the first unused entry slot,
// appending a new one past the current end if every existing slot is
// occupied. Caller holds d.mu.
func (d *Directory) freeSlotLocked() (int64, error) {
	length := d.in.Length()
	for offset := int64(0); offset+entrySize <= length; offset += entrySize {
		e, err := d.readEntryLocked(offset)
		if err != nil {
			return 0, err
		}
		if e.InUse == 0 {
			return offset, nil
		}
	}
	return length, nil
}

func (d *Directory) readEntryLocked(offset int64) (*onDiskEntry, error) {
	buf := make([]byte, entrySize)
	n, err := d.in.ReadAt(buf, offset)
	if err != nil {
		return nil, err
	}
	if n < entrySize {
		log.Warnf("short directory entry read at offset %d (sector %d)", offset, d.in.Sector())
		return &onDiskEntry{}, nil
	}
	return decodeEntry(buf)
}
