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
	"os"

	"github.com/pkg/errors"
)

// FileDevice addresses a single regular file as a fixed-size run of
// sectors, via ReadAt/WriteAt so that concurrent sector I/O from the
// buffer cache's caller does not require its own locking at this
// layer (os.File's ReadAt/WriteAt are safe for concurrent use on
// distinct offsets).
type FileDevice struct {
	f       *os.File
	sectors Sector
}

var _ Device = (*FileDevice)(nil)

// OpenFileDevice opens (or creates, if it does not exist) path as a
// device image of exactly sectorCount sectors, extending or
// truncating it to that size.
func OpenFileDevice(path string, sectorCount Sector) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "opening device image")
	}

	size := int64(sectorCount) * SectorSize
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "sizing device image")
	}

	return &FileDevice{f: f, sectors: sectorCount}, nil
}

func (d *FileDevice) SectorCount() Sector { return d.sectors }

func (d *FileDevice) ReadSector(sector Sector, buf []byte) error {
	if err := d.checkBounds(sector, buf); err != nil {
		return err
	}
	_, err := d.f.ReadAt(buf[:SectorSize], int64(sector)*SectorSize)
	if err != nil {
		return errors.Wrapf(err, "reading sector %d", sector)
	}
	return nil
}

func (d *FileDevice) WriteSector(sector Sector, buf []byte) error {
	if err := d.checkBounds(sector, buf); err != nil {
		return err
	}
	_, err := d.f.WriteAt(buf[:SectorSize], int64(sector)*SectorSize)
	if err != nil {
		return errors.Wrapf(err, "writing sector %d", sector)
	}
	return nil
}

func (d *FileDevice) checkBounds(sector Sector, buf []byte) error {
	if sector >= d.sectors {
		return errors.Errorf("sector %d out of range (%d sectors)", sector, d.sectors)
	}
	if len(buf) < SectorSize {
		return errors.Errorf("buffer too small: %d bytes", len(buf))
	}
	return nil
}

// Close flushes OS buffers and closes the backing file.
func (d *FileDevice) Close() error {
	if err := d.f.Sync(); err != nil {
		return errors.Wrap(err, "syncing device image")
	}
	return d.f.Close()
}
