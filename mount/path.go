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
	"strings"

	"github.com/pkg/errors"

	"github.com/blockfs/blockfs/device"
	"github.com/blockfs/blockfs/directory"
)

func splitPath(path string) (absolute bool, comps []string) {
	absolute = strings.HasPrefix(path, "/")
	for _, c := range strings.Split(path, "/") {
		if c != "" {
			comps = append(comps, c)
		}
	}
	return absolute, comps
}

// walk resolves a sequence of path components starting from start,
// opening and closing each intermediate directory in turn.
func (m *Mount) walk(start device.Sector, comps []string) (device.Sector, error) {
	cur := start
	for _, c := range comps {
		d, err := directory.Open(m.table, cur)
		if err != nil {
			return 0, errors.Wrapf(err, "opening directory at sector %d", cur)
		}
		next, err := d.Lookup(c)
		closeErr := d.Close()
		if err != nil {
			return 0, errors.Wrapf(err, "resolving %q", c)
		}
		if closeErr != nil {
			return 0, closeErr
		}
		cur = next
	}
	return cur, nil
}

// resolve returns the sector that path names, relative to session's
// cwd unless path is absolute.
func (m *Mount) resolve(session *Session, path string) (device.Sector, error) {
	if path == "" {
		return 0, ErrInvalidPath
	}
	absolute, comps := splitPath(path)
	start := session.getCwdSector()
	if absolute {
		start = m.rootSector
	}
	if len(comps) == 0 {
		return start, nil
	}
	return m.walk(start, comps)
}

// resolveParent splits path into its containing directory's sector
// and its final component, without resolving the final component
// itself — used by operations (Create, Mkdir, Remove) that need to
// look the last component up themselves, inside a lock they hold on
// the parent directory.
func (m *Mount) resolveParent(session *Session, path string) (device.Sector, string, error) {
	if path == "" {
		return 0, "", ErrInvalidPath
	}
	absolute, comps := splitPath(path)
	if len(comps) == 0 {
		return 0, "", errors.Wrap(ErrInvalidPath, "path has no final component")
	}
	start := session.getCwdSector()
	if absolute {
		start = m.rootSector
	}
	parent, err := m.walk(start, comps[:len(comps)-1])
	if err != nil {
		return 0, "", err
	}
	return parent, comps[len(comps)-1], nil
}
