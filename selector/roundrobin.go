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

package selector

import (
	"sync/atomic"

	"github.com/searchkit/nodepool/conn"
)

// NewRoundRobin returns a selector that picks connections in sequential
// order, wrapping around at the end. The first pick is the first entry.
//
// The cursor is shared across calls, so when the set of candidates
// shrinks or grows between calls, the rotation simply continues at the
// cursor's position modulo the new length.
func NewRoundRobin() Selector {
	selector := &roundRobin{}
	selector.counter.Store(-1)
	return selector
}

type roundRobin struct {
	// +checkatomic
	counter atomic.Int64
}

func (r *roundRobin) Select(conns conn.Conns) (conn.Conn, error) {
	numConns := conns.Len()
	if numConns == 0 {
		return nil, ErrNoConnections
	}
	return conns.Get(int(uint64(r.counter.Add(1)) % uint64(numConns))), nil
}
