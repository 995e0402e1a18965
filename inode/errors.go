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

package inode

import "github.com/pkg/errors"

// ErrCorrupt is returned by Open when a sector's magic number does not
// match, meaning it does not hold a valid inode.
var ErrCorrupt = errors.New("inode: corrupt on-disk record")

// ErrFileTooLarge is returned by WriteAt when the requested offset is
// at or beyond MaxFileSize.
var ErrFileTooLarge = errors.New("inode: exceeds maximum file size")

// ErrWriteDenied is returned by WriteAt while the inode's deny-write
// count is non-zero.
var ErrWriteDenied = errors.New("inode: writes denied")

// errWriteHole means WriteAt's grow path reported success but
// byte_to_sector still found no backing sector within the new
// length; this indicates a bug in expand, not a normal runtime
// condition.
var errWriteHole = errors.New("inode: write target has no backing sector")
