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

package selector_test

import (
	"testing"

	"github.com/searchkit/nodepool/conn"
	"github.com/searchkit/nodepool/internal/conns"
	"github.com/searchkit/nodepool/internal/conntest"
	"github.com/searchkit/nodepool/selector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConns(hostPorts ...string) []conn.Conn {
	result := make([]conn.Conn, len(hostPorts))
	for i, hostPort := range hostPorts {
		result[i] = conntest.NewFakeConn(hostPort)
	}
	return result
}

func TestRoundRobin(t *testing.T) {
	t.Parallel()

	all := newConns("a:9200", "b:9200", "c:9200")
	sel := selector.NewRoundRobin()
	for round := 0; round < 3; round++ {
		for i := range all {
			selected, err := sel.Select(conns.FromSlice(all))
			require.NoError(t, err)
			assert.Same(t, all[i], selected)
		}
	}
}

func TestRoundRobinShrinkingSet(t *testing.T) {
	t.Parallel()

	all := newConns("a:9200", "b:9200", "c:9200", "d:9200")
	sel := selector.NewRoundRobin()
	seen := map[conn.Conn]int{}
	remaining := all
	// remove whatever was picked, like a pool does with dead candidates
	for len(remaining) > 0 {
		selected, err := sel.Select(conns.FromSlice(remaining))
		require.NoError(t, err)
		seen[selected]++
		next := remaining[:0:0]
		for _, c := range remaining {
			if c != selected {
				next = append(next, c)
			}
		}
		remaining = next
	}
	require.Len(t, seen, len(all))
	for _, count := range seen {
		assert.Equal(t, 1, count)
	}
}

func TestStickyRoundRobin(t *testing.T) {
	t.Parallel()

	a := conntest.NewFakeConn("a:9200").Alive()
	b := conntest.NewFakeConn("b:9200").Alive()
	c := conntest.NewFakeConn("c:9200").Alive()
	all := []conn.Conn{a, b, c}
	sel := selector.NewStickyRoundRobin()

	for i := 0; i < 5; i++ {
		selected, err := sel.Select(conns.FromSlice(all))
		require.NoError(t, err)
		assert.Same(t, a, selected)
	}

	a.MarkDead()
	selected, err := sel.Select(conns.FromSlice(all))
	require.NoError(t, err)
	assert.Same(t, b, selected)
	// sticks to the new one even after the old one recovers
	a.MarkAlive()
	selected, err = sel.Select(conns.FromSlice(all))
	require.NoError(t, err)
	assert.Same(t, b, selected)
}

func TestStickyRoundRobinFreshConnections(t *testing.T) {
	t.Parallel()

	all := newConns("a:9200", "b:9200", "c:9200")
	sel := selector.NewStickyRoundRobin()

	for i := 0; i < 3; i++ {
		selected, err := sel.Select(conns.FromSlice(all))
		require.NoError(t, err)
		assert.Same(t, all[0], selected)
	}
	all[0].MarkDead()
	selected, err := sel.Select(conns.FromSlice(all))
	require.NoError(t, err)
	assert.Same(t, all[1], selected)
}

func TestRandom(t *testing.T) {
	t.Parallel()

	all := newConns("a:9200", "b:9200")
	sel := selector.NewRandom()
	for i := 0; i < 20; i++ {
		selected, err := sel.Select(conns.FromSlice(all))
		require.NoError(t, err)
		assert.Contains(t, all, selected)
	}
}

func TestEmptySelection(t *testing.T) {
	t.Parallel()

	for name, sel := range map[string]selector.Selector{
		"round-robin": selector.NewRoundRobin(),
		"sticky":      selector.NewStickyRoundRobin(),
		"random":      selector.NewRandom(),
	} {
		_, err := sel.Select(conns.FromSlice(nil))
		assert.ErrorIs(t, err, selector.ErrNoConnections, name)
	}
}
