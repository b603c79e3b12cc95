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

// Package httpconn provides the HTTP implementation of conn.Conn: a
// connection to a single node of a search cluster, able to ping the node,
// fetch the cluster's node information and send arbitrary requests.
package httpconn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/searchkit/nodepool/conn"
	"github.com/searchkit/nodepool/health"
	"github.com/searchkit/nodepool/host"
)

const (
	// SniffPath is the endpoint that lists every node with its HTTP
	// publish address.
	SniffPath = "/_nodes/_all/http"

	// OpaqueIDHeader identifies a request in the node's logs and tasks.
	OpaqueIDHeader = "X-Opaque-Id"
)

// ErrNodeInfoTooLarge is returned by Sniff when the node information is
// larger than the configured limit.
var ErrNodeInfoTooLarge = errors.New("node info too large")

// StatusError is returned by Sniff when the node answers with a status
// other than 2xx.
type StatusError struct {
	HostPort   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d from %s", e.HostPort, e.StatusCode, SniffPath)
}

// Conn is a connection to a single node over HTTP. It is safe for
// concurrent use.
type Conn struct {
	health.Status

	desc         host.Descriptor
	roundTripper http.RoundTripper
	closeIdle    func()
	opts         *connOptions
}

var _ conn.Conn = (*Conn)(nil)

// New creates a connection to the node described by desc. No network
// activity happens until the connection is first used.
func New(desc host.Descriptor, opts ...Option) *Conn {
	return newConn(desc, newConnOptions(opts))
}

// NewFactory returns a factory that creates connections configured with
// the given options.
func NewFactory(opts ...Option) conn.Factory {
	options := newConnOptions(opts)
	return conn.FactoryFunc(func(desc host.Descriptor) conn.Conn {
		return newConn(desc, options)
	})
}

func newConn(desc host.Descriptor, opts *connOptions) *Conn {
	roundTripper, closeIdle := newTransport(desc.Scheme, opts)
	return &Conn{
		desc:         desc,
		roundTripper: roundTripper,
		closeIdle:    closeIdle,
		opts:         opts,
	}
}

// Descriptor implements the conn.Conn interface.
func (c *Conn) Descriptor() host.Descriptor {
	return c.desc
}

// Scheme implements the conn.Conn interface.
func (c *Conn) Scheme() string {
	return c.desc.Scheme
}

// Ping sends a HEAD request for the root path. The node is considered
// reachable if it answers with a successful status within the ping
// timeout.
func (c *Conn) Ping() bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.pingTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, "/", http.NoBody)
	if err != nil {
		return false
	}
	resp, err := c.RoundTrip(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Sniff fetches the node information of the cluster this node belongs
// to. The whole exchange, including reading the body, must complete
// within the sniff timeout.
func (c *Conn) Sniff() ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.sniffTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, SniffPath, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{HostPort: c.desc.HostPort(), StatusCode: resp.StatusCode}
	}
	limit := c.opts.maxSniffBytes
	payload, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%s: read node info: %w", c.desc.HostPort(), err)
	}
	if int64(len(payload)) > limit {
		return nil, fmt.Errorf("%s: %w: more than %d bytes", c.desc.HostPort(), ErrNodeInfoTooLarge, limit)
	}
	return payload, nil
}

// RoundTrip sends the request to this node. The request is cloned, and
// the clone's scheme and host are set to those of the node. Basic auth
// credentials of the node, a User-Agent and an X-Opaque-Id are added
// when the request does not already have them.
func (c *Conn) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.URL.Scheme = c.desc.Scheme
	clone.URL.Host = c.desc.HostPort()
	clone.Host = ""
	if clone.Header == nil {
		clone.Header = http.Header{}
	}
	if c.desc.User != "" && clone.Header.Get("Authorization") == "" {
		clone.SetBasicAuth(c.desc.User, c.desc.Pass)
	}
	if clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", c.opts.userAgent)
	}
	if clone.Header.Get(OpaqueIDHeader) == "" {
		clone.Header.Set(OpaqueIDHeader, uuid.NewString())
	}
	return c.roundTripper.RoundTrip(clone)
}

// Close releases idle network connections to the node. The connection
// remains usable; new network connections are made on demand.
func (c *Conn) Close() error {
	c.closeIdle()
	return nil
}

func (c *Conn) String() string {
	return c.desc.String()
}
