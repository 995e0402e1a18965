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

import "github.com/blockfs/blockfs/device"

// Stat summarizes an open file or directory, supplementing spec.md's
// interface with the kind of metadata query a real filesystem surface
// always grows (an analogue of original_source's inode introspection
// helpers).
type Stat struct {
	Inumber device.Sector
	IsDir   bool
	Length  int64
}

// Stat reports metadata for fd.
func (m *Mount) Stat(session *Session, fd int) (Stat, error) {
	h, err := session.lookupFd(fd)
	if err != nil {
		return Stat{}, err
	}
	if h.isDir {
		return Stat{Inumber: h.dir.Sector(), IsDir: true}, nil
	}
	return Stat{Inumber: h.file.Sector(), IsDir: false, Length: h.file.Length()}, nil
}

// FreeSectors reports how many sectors remain unallocated.
func (m *Mount) FreeSectors() int {
	return m.freeMap.Count()
}
