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

// Package conn defines the capabilities a pool needs from a connection
// to a single node, and from the factory that creates connections for
// newly discovered nodes.
package conn

import (
	"net/http"

	"github.com/searchkit/nodepool/health"
	"github.com/searchkit/nodepool/host"
)

// Conn represents a connection to a single node.
type Conn interface {
	// Descriptor returns the node this value is connected to. Its
	// HostPort value is the identity of the connection.
	Descriptor() host.Descriptor
	// Scheme returns the transport schema of this connection, "http" or
	// "https". Nodes discovered by sniffing through this connection
	// inherit it.
	Scheme() string
	// IsAlive returns the cached liveness of this connection. It never
	// performs I/O.
	IsAlive() bool
	// State returns the cached liveness state, which is StateUnknown
	// until the connection is first marked.
	State() health.State
	// MarkAlive records that the node answered a probe.
	MarkAlive()
	// MarkDead records that the node failed a probe or a request.
	MarkDead()
	// Ping probes the node and reports whether it answered in time. It
	// does not change the cached liveness; the caller records the result.
	Ping() bool
	// Sniff asks the node for the cluster's node information. The raw
	// payload is returned; decoding it is up to the caller. An error is
	// returned if the node does not answer in time or answers with
	// a failure.
	Sniff() ([]byte, error)
	// RoundTrip sends a request to this node. The request's scheme and
	// host are rewritten to those of the connection.
	RoundTrip(req *http.Request) (*http.Response, error)
	// Close releases idle resources held by the connection. Pools call
	// it on connections they no longer know about.
	Close() error
}

// Conns represents a read-only, ordered set of connections.
type Conns interface {
	// Len returns the total number of connections in the set.
	Len() int
	// Get returns the connection at index i.
	Get(i int) Conn
}

// Factory creates connections to newly discovered nodes. Creating a
// connection never fails: problems surface when it is first probed.
type Factory interface {
	Create(desc host.Descriptor) Conn
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(desc host.Descriptor) Conn

// Create implements the Factory interface.
func (f FactoryFunc) Create(desc host.Descriptor) Conn {
	return f(desc)
}

// CreateAll creates one connection per descriptor, in order.
func CreateAll(factory Factory, descs []host.Descriptor) []Conn {
	conns := make([]Conn, len(descs))
	for i, desc := range descs {
		conns[i] = factory.Create(desc)
	}
	return conns
}
