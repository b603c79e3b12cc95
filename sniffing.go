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
	"time"

	"github.com/searchkit/nodepool/conn"
	"github.com/searchkit/nodepool/host"
	"github.com/searchkit/nodepool/internal/conns"
	"github.com/searchkit/nodepool/selector"
	"github.com/searchkit/nodepool/sniff"
	"github.com/sirupsen/logrus"
)

// SniffingPool is a Pool that periodically asks the cluster which nodes
// it has and replaces its known connections with the discovered ones.
//
// A sniff happens inside NextConnection, before a connection is picked,
// whenever the sniffing interval has elapsed since the last successful
// sniff. The very first call always sniffs. A failed sniff never fails
// the call: the pool keeps its current connections and, if none of them
// could answer, tries the seed connections it was created with.
type SniffingPool struct {
	*pool

	factory          conn.Factory
	sniffingInterval time.Duration
	seeds            []conn.Conn

	// +checklocks:mu
	lastSniff time.Time
}

// NewSniffingPool creates a pool that starts from the given seed
// connections. Connections for nodes discovered by sniffing are created
// with factory.
func NewSniffingPool(seeds []conn.Conn, sel selector.Selector, factory conn.Factory, opts ...Option) (*SniffingPool, error) {
	if factory == nil {
		return nil, ErrNilFactory
	}
	options := newPoolOptions(opts)
	p, err := newPool(seeds, sel, options)
	if err != nil {
		return nil, err
	}
	initial := make([]conn.Conn, len(p.conns))
	copy(initial, p.conns)
	return &SniffingPool{
		pool:             p,
		factory:          factory,
		sniffingInterval: options.sniffingInterval,
		seeds:            initial,
	}, nil
}

// NextConnection implements Pool.
func (p *SniffingPool) NextConnection(force bool) (conn.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	excluded := conns.Set{}
	if p.sniffDueLocked() {
		p.sniffLocked(excluded)
	}
	return p.nextConnectionLocked(force, excluded)
}

// Close closes every known connection along with any seed connection
// that is no longer part of the discovered topology.
func (p *SniffingPool) Close() error {
	return closeAll(dedupe(append(p.Connections(), p.seeds...)))
}

// +checklocks:p.mu
func (p *SniffingPool) sniffDueLocked() bool {
	if p.sniffingInterval <= 0 || p.lastSniff.IsZero() {
		return true
	}
	return p.clock.Since(p.lastSniff) >= p.sniffingInterval
}

// +checklocks:p.mu
func (p *SniffingPool) sniffLocked(excluded conns.Set) {
	if p.sniffFromLocked(p.conns, excluded) {
		return
	}
	current := make(conns.Set, len(p.conns))
	for _, c := range p.conns {
		current.Add(c)
	}
	if p.sniffFromLocked(current.Without(p.seeds), excluded) {
		return
	}
	p.logger.WithField("connections", len(p.conns)).Warn("sniff failed on every node, keeping known connections")
}

// sniffFromLocked walks candidates in order until one of them returns a
// usable topology. Candidates that are not alive are pinged first; those
// that fail are excluded for the rest of the call.
//
// +checklocks:p.mu
func (p *SniffingPool) sniffFromLocked(candidates []conn.Conn, excluded conns.Set) bool {
	for _, c := range candidates {
		if excluded.Contains(c) {
			continue
		}
		if !c.IsAlive() && !p.probeLocked(c) {
			excluded.Add(c)
			continue
		}
		if p.sniffConnLocked(c) {
			return true
		}
	}
	return false
}

// +checklocks:p.mu
func (p *SniffingPool) sniffConnLocked(c conn.Conn) bool {
	logger := p.logger.WithField("host", c.Descriptor().HostPort())
	payload, err := c.Sniff()
	if err != nil {
		p.markDeadLocked(c)
		logger.WithError(err).Warn("sniff failed, marking connection dead")
		return false
	}
	nodes, skipped, err := sniff.ParseNodes(payload)
	if err != nil {
		p.markDeadLocked(c)
		logger.WithError(err).Warn("sniff returned malformed node info, marking connection dead")
		return false
	}
	for _, node := range skipped {
		logger.WithError(node.Err).WithFields(logrus.Fields{
			"node":    node.ID,
			"address": node.Address,
		}).Debug("skipping node with unparseable http address")
	}
	if len(nodes) == 0 {
		logger.Warn("sniff found no nodes with an http address, keeping known connections")
		return false
	}
	p.markAliveLocked(c)

	base := c.Descriptor()
	base.Scheme = c.Scheme()
	descs := make([]host.Descriptor, len(nodes))
	for i, node := range nodes {
		descs[i] = node.Descriptor(base)
	}
	p.reconcileLocked(descs)
	p.lastSniff = p.clock.Now()
	return true
}

// reconcileLocked replaces the known connections with one connection per
// discovered address. Connections already known, or seeds, are reused for
// addresses they serve. Dropped connections are closed unless they are
// seeds, which are kept for fallback.
//
// +checklocks:p.mu
func (p *SniffingPool) reconcileLocked(descs []host.Descriptor) {
	reusable := make([]conn.Conn, 0, len(p.conns)+len(p.seeds))
	reusable = append(reusable, p.conns...)
	reusable = append(reusable, p.seeds...)
	existing := conns.ByHostPort(reusable)

	updated := make([]conn.Conn, 0, len(descs))
	keep := make(conns.Set, len(descs))
	var added int
	for _, desc := range descs {
		c, ok := existing[desc.HostPort()]
		if ok && keep.Contains(c) {
			continue
		}
		if !ok {
			c = p.factory.Create(desc)
			existing[desc.HostPort()] = c
			added++
		}
		keep.Add(c)
		updated = append(updated, c)
	}

	seeds := make(conns.Set, len(p.seeds))
	for _, c := range p.seeds {
		seeds.Add(c)
	}
	var removed int
	for _, c := range keep.Without(p.conns) {
		removed++
		delete(p.checkedAt, c)
		if seeds.Contains(c) {
			continue
		}
		if err := c.Close(); err != nil {
			p.logger.WithField("host", c.Descriptor().HostPort()).WithError(err).Warn("failed to close dropped connection")
		}
	}
	p.conns = updated

	if added > 0 || removed > 0 {
		p.logger.WithFields(logrus.Fields{
			"added":       added,
			"removed":     removed,
			"connections": len(updated),
		}).Info("cluster topology changed")
	}
}
