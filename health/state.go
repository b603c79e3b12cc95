// Copyright 2023 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package health

import (
	"fmt"
	"sync/atomic"
)

// State represents the liveness state of a connection.
type State int32

const (
	StateUnknown = State(0)
	StateAlive   = State(1)
	StateDead    = State(2)
)

func (s State) String() string {
	switch s {
	case StateAlive:
		return "alive"
	case StateDead:
		return "dead"
	case StateUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// Status holds the liveness state of a single connection. It is safe
// for concurrent use. The zero value is a Status in StateUnknown.
type Status struct {
	// +checkatomic
	state atomic.Int32
	// +checkatomic
	deadCount atomic.Int64
}

// State returns the current state.
func (s *Status) State() State {
	return State(s.state.Load())
}

// IsAlive reports whether the last recorded probe succeeded.
func (s *Status) IsAlive() bool {
	return s.State() == StateAlive
}

// MarkAlive records a successful probe and resets the count of
// consecutive failures.
func (s *Status) MarkAlive() {
	s.state.Store(int32(StateAlive))
	s.deadCount.Store(0)
}

// MarkDead records a failed probe.
func (s *Status) MarkDead() {
	s.state.Store(int32(StateDead))
	s.deadCount.Add(1)
}

// DeadCount returns the number of consecutive failed probes since the
// last successful one.
func (s *Status) DeadCount() int64 {
	return s.deadCount.Load()
}
