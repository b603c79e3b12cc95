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

// Package conns contains helpers for working with ordered connection
// lists and identity sets.
package conns

import "github.com/searchkit/nodepool/conn"

// Set is a set of connections, keyed by instance.
type Set map[conn.Conn]struct{}

// Contains returns true if the set contains the given connection.
func (s Set) Contains(c conn.Conn) bool {
	_, ok := s[c]
	return ok
}

// Add adds the given connection to the set.
func (s Set) Add(c conn.Conn) {
	s[c] = struct{}{}
}

// Without returns the connections of the given slice that are not in
// the set, preserving order.
func (s Set) Without(conns []conn.Conn) []conn.Conn {
	if len(s) == 0 {
		return conns
	}
	remaining := make([]conn.Conn, 0, len(conns))
	for _, c := range conns {
		if !s.Contains(c) {
			remaining = append(remaining, c)
		}
	}
	return remaining
}

// ByHostPort indexes the given connections by the HostPort of their
// descriptors. If two connections share an identity, the first wins.
func ByHostPort(conns []conn.Conn) map[string]conn.Conn {
	index := make(map[string]conn.Conn, len(conns))
	for _, c := range conns {
		hostPort := c.Descriptor().HostPort()
		if _, ok := index[hostPort]; !ok {
			index[hostPort] = c
		}
	}
	return index
}

// FromSlice returns a conn.Conns view of the given slice.
func FromSlice(conns []conn.Conn) conn.Conns {
	return connections(conns)
}

type connections []conn.Conn

func (c connections) Len() int {
	return len(c)
}

func (c connections) Get(i int) conn.Conn {
	return c[i]
}
