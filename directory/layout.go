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
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// entrySize is the exact on-disk size of one directory entry: a
// 4-byte in-use flag, a NameMax+1-byte NUL-terminated name, and a
// 4-byte inode sector number. Directory entries are ordinary file
// bytes written through inode.WriteAt, so they need not be sector-
// aligned.
const entrySize = 4 + (NameMax + 1) + 4

// onDiskEntry is one directory-entry record (spec.md §3).
type onDiskEntry struct {
	InUse       uint32
	Name        [NameMax + 1]byte
	InodeSector uint32
}

func (e *onDiskEntry) name() string {
	n := bytes.IndexByte(e.Name[:], 0)
	if n < 0 {
		n = len(e.Name)
	}
	return string(e.Name[:n])
}

func (e *onDiskEntry) encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(entrySize)
	_ = binary.Write(buf, binary.LittleEndian, e)
	return buf.Bytes()
}

func decodeEntry(b []byte) (*onDiskEntry, error) {
	var e onDiskEntry
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &e); err != nil {
		return nil, errors.Wrap(err, "decoding directory entry")
	}
	return &e, nil
}
