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

import "github.com/pkg/errors"

var (
	// ErrNotAFile is returned when an operation expecting a file
	// handle (ReadAt/WriteAt) is given a directory fd.
	ErrNotAFile = errors.New("mount: fd does not refer to a file")
	// ErrNotADirectory is returned when an operation expecting a
	// directory handle (Readdir/Chdir) is given a file fd or path.
	ErrNotADirectory = errors.New("mount: fd does not refer to a directory")
	// ErrBadFd is returned for an unknown or already-closed fd.
	ErrBadFd = errors.New("mount: bad file descriptor")
	// ErrInvalidPath is returned for an empty path or a path
	// component that cannot resolve.
	ErrInvalidPath = errors.New("mount: invalid path")
)
