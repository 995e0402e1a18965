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
	"sync"

	"github.com/google/uuid"

	"github.com/blockfs/blockfs/device"
	"github.com/blockfs/blockfs/directory"
	"github.com/blockfs/blockfs/inode"
)

// firstFd is the first file descriptor number handed out by a
// Session, leaving 0 and 1 unused the way a hosted process reserves
// stdin/stdout (spec.md GLOSSARY: "task").
const firstFd = 2

// handle is one open file or directory, reachable by fd from its
// owning Session.
type handle struct {
	isDir bool
	file  *inode.Inode
	dir   *directory.Directory
	pos   int64 // file byte offset, or directory readdir cursor
}

// Session is spec.md's "task": a unit with its own current working
// directory and its own table of open file descriptors, independent
// of every other Session sharing the same Mount.
//
// cwd is held open for the session's entire lifetime (not just a
// sector number) so that the ordinary open-inode refcount in
// inode.Table is what makes "remove of a session's cwd" busy, exactly
// as spec.md's remove describes, rather than needing a separate
// registry of live sessions.
type Session struct {
	mnt *Mount
	id  uuid.UUID

	mu     sync.Mutex
	cwd    *directory.Directory
	fds    map[int]*handle
	nextFd int
}

func newSession(mnt *Mount, rootSector device.Sector) (*Session, error) {
	d, err := directory.Open(mnt.table, rootSector)
	if err != nil {
		return nil, err
	}
	s := &Session{
		mnt:    mnt,
		id:     uuid.New(),
		cwd:    d,
		fds:    make(map[int]*handle),
		nextFd: firstFd,
	}
	log.Debugf("session %s: opened, cwd sector %d", s.id, rootSector)
	return s, nil
}

// ID returns the session's unique identifier, suitable for
// correlating its operations across log lines.
func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) allocFd(h *handle) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	fd := s.nextFd
	s.nextFd++
	s.fds[fd] = h
	return fd
}

func (s *Session) lookupFd(fd int) (*handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.fds[fd]
	if !ok {
		return nil, ErrBadFd
	}
	return h, nil
}

func (s *Session) dropFd(fd int) (*handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.fds[fd]
	if !ok {
		return nil, ErrBadFd
	}
	delete(s.fds, fd)
	return h, nil
}

// getCwdSector returns the sector of the session's current working
// directory, for path resolution.
func (s *Session) getCwdSector() device.Sector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cwd.Sector()
}

// setCwd replaces the session's cwd with d, which the caller has
// already opened and validated, closing the previous one.
func (s *Session) setCwd(d *directory.Directory) error {
	s.mu.Lock()
	old := s.cwd
	s.cwd = d
	s.mu.Unlock()
	return old.Close()
}

// Close closes every fd still open in this session, plus its cwd.
// Sessions do not need to be explicitly closed before a Mount shuts
// down, but doing so promptly releases inode references.
func (s *Session) Close() error {
	s.mu.Lock()
	fds := s.fds
	s.fds = make(map[int]*handle)
	cwd := s.cwd
	s.cwd = nil
	s.mu.Unlock()

	var firstErr error
	for _, h := range fds {
		if err := s.mnt.closeHandle(h); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if cwd != nil {
		if err := cwd.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	log.Debugf("session %s: closed", s.id)
	return firstErr
}
