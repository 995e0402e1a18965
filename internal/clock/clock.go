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

// Package clock abstracts time so that components with a background
// schedule (the buffer cache's write-back loop) can be driven
// deterministically in tests.
package clock

import "time"

// Clock is the time source used throughout the module in place of the
// time package directly.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

var _ Clock = RealClock{}
var _ Clock = (*SimulatedClock)(nil)
