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

// Package conntest provides fake connections and factories for testing
// pools and selectors without any network traffic.
package conntest

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"
	"github.com/searchkit/nodepool/conn"
	"github.com/searchkit/nodepool/health"
	"github.com/searchkit/nodepool/host"
)

// ErrSniffTimeout is a stand-in for a sniff request that timed out.
var ErrSniffTimeout = errors.New("fake sniff timed out")

// FakeConn is an implementation of conn.Conn that can be used for testing.
// Ping, Sniff and RoundTrip results are scripted.
//
// Ping results set with SetPings are consumed in order, and the last one
// repeats once the script runs out.
type FakeConn struct {
	health.Status

	desc host.Descriptor

	mu sync.Mutex
	// +checklocks:mu
	pingScript []bool
	// +checklocks:mu
	sniffPayload []byte
	// +checklocks:mu
	sniffErr error
	// +checklocks:mu
	roundTrip func(*http.Request) (*http.Response, error)

	pings  atomic.Int32
	sniffs atomic.Int32
	closed atomic.Bool
}

// NewFakeConn creates a FakeConn for the given host string. It panics if
// the host string cannot be parsed. New connections answer pings and
// fail to sniff.
func NewFakeConn(hostString string) *FakeConn {
	desc, err := host.Parse(hostString)
	if err != nil {
		panic(err)
	}
	return NewFakeConnFor(desc)
}

// NewFakeConnFor creates a FakeConn for the given descriptor.
func NewFakeConnFor(desc host.Descriptor) *FakeConn {
	return &FakeConn{
		desc:       desc,
		pingScript: []bool{true},
		sniffErr:   errors.New("fake sniff not configured"),
	}
}

// SetPings scripts the results of subsequent calls to Ping.
func (c *FakeConn) SetPings(results ...bool) *FakeConn {
	if len(results) == 0 {
		panic("conntest: SetPings requires at least one result")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingScript = results
	return c
}

// SetSniff sets the payload and error returned by Sniff.
func (c *FakeConn) SetSniff(payload []byte, err error) *FakeConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sniffPayload = payload
	c.sniffErr = err
	return c
}

// SetRoundTrip sets the function that handles requests sent with
// RoundTrip.
func (c *FakeConn) SetRoundTrip(roundTrip func(*http.Request) (*http.Response, error)) *FakeConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roundTrip = roundTrip
	return c
}

// Alive marks the connection alive and returns it, for use when
// building fixtures.
func (c *FakeConn) Alive() *FakeConn {
	c.MarkAlive()
	return c
}

// Descriptor implements the conn.Conn interface.
func (c *FakeConn) Descriptor() host.Descriptor {
	return c.desc
}

// Scheme implements the conn.Conn interface.
func (c *FakeConn) Scheme() string {
	return c.desc.Scheme
}

// Ping implements the conn.Conn interface.
func (c *FakeConn) Ping() bool {
	c.pings.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	result := c.pingScript[0]
	if len(c.pingScript) > 1 {
		c.pingScript = c.pingScript[1:]
	}
	return result
}

// Sniff implements the conn.Conn interface.
func (c *FakeConn) Sniff() ([]byte, error) {
	c.sniffs.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sniffErr != nil {
		return nil, c.sniffErr
	}
	return c.sniffPayload, nil
}

// RoundTrip implements the conn.Conn interface. Unless a handler was set
// with SetRoundTrip, it always fails.
func (c *FakeConn) RoundTrip(request *http.Request) (*http.Response, error) {
	c.mu.Lock()
	roundTrip := c.roundTrip
	c.mu.Unlock()
	if roundTrip == nil {
		return nil, errors.New("FakeConn does not support RoundTrip")
	}
	return roundTrip(request)
}

// Close implements the conn.Conn interface.
func (c *FakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

// Pings returns the number of times Ping was called.
func (c *FakeConn) Pings() int {
	return int(c.pings.Load())
}

// Sniffs returns the number of times Sniff was called.
func (c *FakeConn) Sniffs() int {
	return int(c.sniffs.Load())
}

// Closed reports whether Close was called.
func (c *FakeConn) Closed() bool {
	return c.closed.Load()
}

func (c *FakeConn) String() string {
	return fmt.Sprintf("FakeConn(%s)", c.desc.HostPort())
}

// FakeFactory is an implementation of conn.Factory. Connections can be
// registered ahead of time by HostPort, so a test controls what a pool
// gets when it discovers that node. Unregistered nodes get a fresh
// FakeConn that answers pings.
type FakeFactory struct {
	mu sync.Mutex
	// +checklocks:mu
	registered map[string]*FakeConn
	// +checklocks:mu
	created []host.Descriptor
}

var (
	_ conn.Conn    = (*FakeConn)(nil)
	_ conn.Factory = (*FakeFactory)(nil)
)

// NewFakeFactory returns a factory with the given connections registered.
func NewFakeFactory(conns ...*FakeConn) *FakeFactory {
	factory := &FakeFactory{registered: map[string]*FakeConn{}}
	for _, c := range conns {
		factory.registered[c.desc.HostPort()] = c
	}
	return factory
}

// Create implements the conn.Factory interface.
func (f *FakeFactory) Create(desc host.Descriptor) conn.Conn {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, desc)
	if c, ok := f.registered[desc.HostPort()]; ok {
		return c
	}
	return NewFakeConnFor(desc)
}

// Created returns the descriptors passed to Create, in call order.
func (f *FakeFactory) Created() []host.Descriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	created := make([]host.Descriptor, len(f.created))
	copy(created, f.created)
	return created
}

// NodesInfo builds a node-info payload listing one node per given
// host:port, in order, using the publish_address format of current
// cluster versions.
func NodesInfo(hostPorts ...string) []byte {
	stream := jsoniter.ConfigFastest.BorrowStream(nil)
	defer jsoniter.ConfigFastest.ReturnStream(stream)
	stream.WriteObjectStart()
	stream.WriteObjectField("cluster_name")
	stream.WriteString("test-cluster")
	stream.WriteMore()
	stream.WriteObjectField("nodes")
	stream.WriteObjectStart()
	for i, hostPort := range hostPorts {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(fmt.Sprintf("node-%d", i+1))
		stream.WriteObjectStart()
		stream.WriteObjectField("name")
		stream.WriteString(fmt.Sprintf("node %d", i+1))
		stream.WriteMore()
		stream.WriteObjectField("http")
		stream.WriteObjectStart()
		stream.WriteObjectField("publish_address")
		stream.WriteString(hostPort)
		stream.WriteObjectEnd()
		stream.WriteObjectEnd()
	}
	stream.WriteObjectEnd()
	stream.WriteObjectEnd()
	payload := make([]byte, len(stream.Buffer()))
	copy(payload, stream.Buffer())
	return payload
}
