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
	"sync"

	"github.com/searchkit/nodepool/conn"
	"github.com/searchkit/nodepool/health"
)

// NewStickyRoundRobin returns a selector that keeps returning the same
// connection until it is marked dead, and only then moves on to the next
// one in round-robin order. Connections that were never probed count as
// usable, so a fresh pool starts at its first connection.
// This keeps requests on a single node, which helps caches on that node,
// while still failing over when it goes away.
func NewStickyRoundRobin() Selector {
	return &stickyRoundRobin{}
}

type stickyRoundRobin struct {
	mu sync.Mutex
	// +checklocks:mu
	current int
}

func (s *stickyRoundRobin) Select(conns conn.Conns) (conn.Conn, error) {
	numConns := conns.Len()
	if numConns == 0 {
		return nil, ErrNoConnections
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current %= numConns
	if candidate := conns.Get(s.current); candidate.State() != health.StateDead {
		return candidate, nil
	}
	s.current = (s.current + 1) % numConns
	return conns.Get(s.current), nil
}
