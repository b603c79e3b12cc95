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

package nodepool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/searchkit/nodepool/conn"
	"github.com/searchkit/nodepool/internal"
	"github.com/searchkit/nodepool/internal/conns"
	"github.com/searchkit/nodepool/selector"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoNodesAvailable is returned from NextConnection when every
	// known connection failed its liveness check.
	ErrNoNodesAvailable = errors.New("no alive nodes found in cluster")
	// ErrNoConnections is returned when a pool is created without any
	// connections.
	ErrNoConnections = errors.New("no connections given")
	// ErrNilSelector is returned when a pool is created without a selector.
	ErrNilSelector = errors.New("selector must not be nil")
	// ErrNilFactory is returned when a sniffing pool is created without
	// a connection factory.
	ErrNilFactory = errors.New("connection factory must not be nil")
)

// Pool hands out connections to the nodes of a cluster.
type Pool interface {
	// NextConnection returns a connection believed to be usable. When
	// force is true, the connection's cached liveness is ignored and it
	// is pinged before being returned. If no connection can be reached,
	// the returned error wraps ErrNoNodesAvailable.
	NextConnection(force bool) (conn.Conn, error)
	// Connections returns a snapshot of the currently known connections.
	Connections() []conn.Conn
	// Close closes every connection known to the pool.
	Close() error
}

var (
	_ Pool = (*StaticPool)(nil)
	_ Pool = (*SniffingPool)(nil)
)

// StaticPool is a Pool over a fixed set of connections. Liveness of each
// connection is tracked, and dead connections are skipped until a ping
// shows them alive again, but the set itself never changes.
type StaticPool struct {
	*pool
}

// NewStaticPool creates a pool over the given connections. The selector
// decides which connection is tried first on every call.
func NewStaticPool(connections []conn.Conn, sel selector.Selector, opts ...Option) (*StaticPool, error) {
	p, err := newPool(connections, sel, newPoolOptions(opts))
	if err != nil {
		return nil, err
	}
	return &StaticPool{pool: p}, nil
}

// NextConnection implements Pool.
func (p *StaticPool) NextConnection(force bool) (conn.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextConnectionLocked(force, conns.Set{})
}

// pool holds the state shared by StaticPool and SniffingPool.
type pool struct {
	selector           selector.Selector
	logger             logrus.FieldLogger
	revalidateInterval time.Duration

	mu sync.Mutex
	// +checklocks:mu
	clock internal.Clock
	// +checklocks:mu
	conns []conn.Conn
	// Time of the last successful probe made by this pool, per connection.
	// +checklocks:mu
	checkedAt map[conn.Conn]time.Time
}

func newPool(connections []conn.Conn, sel selector.Selector, opts *poolOptions) (*pool, error) {
	if sel == nil {
		return nil, ErrNilSelector
	}
	unique := dedupe(connections)
	if len(unique) == 0 {
		return nil, ErrNoConnections
	}
	if opts.randomizeHosts {
		internal.Shuffle(unique)
	}
	return &pool{
		selector:           sel,
		logger:             opts.logger,
		revalidateInterval: opts.revalidateInterval,
		clock:              internal.NewRealClock(),
		conns:              unique,
		checkedAt:          make(map[conn.Conn]time.Time, len(unique)),
	}, nil
}

// Connections implements Pool.
func (p *pool) Connections() []conn.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	snapshot := make([]conn.Conn, len(p.conns))
	copy(snapshot, p.conns)
	return snapshot
}

// Close implements Pool.
func (p *pool) Close() error {
	return closeAll(p.Connections())
}

// nextConnectionLocked picks a usable connection, skipping any connection
// in excluded. Connections that fail their ping are added to excluded so
// that each one is pinged at most once per call.
//
// +checklocks:p.mu
func (p *pool) nextConnectionLocked(force bool, excluded conns.Set) (conn.Conn, error) {
	for attempt := 0; attempt < len(p.conns); attempt++ {
		candidates := excluded.Without(p.conns)
		if len(candidates) == 0 {
			break
		}
		selected, err := p.selector.Select(conns.FromSlice(candidates))
		if err != nil {
			return nil, err
		}
		if !force && p.isFreshLocked(selected) {
			return selected, nil
		}
		if p.probeLocked(selected) {
			return selected, nil
		}
		excluded.Add(selected)
	}
	p.logger.WithField("connections", len(p.conns)).Warn("no alive nodes found in cluster")
	return nil, fmt.Errorf("%w: %d known connections", ErrNoNodesAvailable, len(p.conns))
}

// +checklocks:p.mu
func (p *pool) isFreshLocked(c conn.Conn) bool {
	if !c.IsAlive() {
		return false
	}
	if p.revalidateInterval <= 0 {
		return true
	}
	checked, ok := p.checkedAt[c]
	return ok && p.clock.Since(checked) < p.revalidateInterval
}

// probeLocked pings the connection and records the outcome.
//
// +checklocks:p.mu
func (p *pool) probeLocked(c conn.Conn) bool {
	logger := p.logger.WithField("host", c.Descriptor().HostPort())
	if c.Ping() {
		p.markAliveLocked(c)
		logger.Debug("ping succeeded")
		return true
	}
	p.markDeadLocked(c)
	logger.Debug("ping failed, marking connection dead")
	return false
}

// +checklocks:p.mu
func (p *pool) markAliveLocked(c conn.Conn) {
	c.MarkAlive()
	p.checkedAt[c] = p.clock.Now()
}

// +checklocks:p.mu
func (p *pool) markDeadLocked(c conn.Conn) {
	c.MarkDead()
	delete(p.checkedAt, c)
}

// dedupe returns a copy of connections with nil and repeated instances
// removed, preserving order.
func dedupe(connections []conn.Conn) []conn.Conn {
	seen := make(conns.Set, len(connections))
	unique := make([]conn.Conn, 0, len(connections))
	for _, c := range connections {
		if c == nil || seen.Contains(c) {
			continue
		}
		seen.Add(c)
		unique = append(unique, c)
	}
	return unique
}

func closeAll(connections []conn.Conn) error {
	var grp errgroup.Group
	for _, c := range connections {
		grp.Go(c.Close)
	}
	return grp.Wait()
}
