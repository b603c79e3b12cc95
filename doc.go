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

// Package nodepool keeps track of the nodes of a search cluster and
// decides which one a client should send its next request to.
//
// A pool holds a set of connections, one per node. Each call to
// NextConnection picks a connection with a [selector.Selector] and makes
// sure it is usable before returning it. A connection already known to
// be alive is returned as is. Any other connection is pinged first, and
// one that fails the ping is marked dead and skipped for the rest of the
// call. When every connection has been tried without success, the error
// wraps [ErrNoNodesAvailable].
//
// There are two pools:
//
//  1. [StaticPool] works over a fixed list of connections. Use it when
//     the nodes are behind a load balancer, or when the cluster does not
//     allow node discovery.
//
//  2. [SniffingPool] starts from a list of seed connections and
//     periodically asks the cluster for its current nodes (a "sniff"),
//     replacing its connections with the ones discovered. Connections
//     for new nodes are built by a [conn.Factory]. If sniffing fails, the
//     pool carries on with what it already knows, and falls back to the
//     seed connections when none of the known nodes can answer.
//
// Neither pool starts goroutines. All work, including pings and sniffs,
// happens inside NextConnection while the pool's lock is held, so
// concurrent callers are serialized. The package [httpconn] provides
// connections that talk HTTP to the nodes, and the package [config]
// builds a pool from environment variables.
//
// [httpconn]: https://pkg.go.dev/github.com/searchkit/nodepool/httpconn
// [config]: https://pkg.go.dev/github.com/searchkit/nodepool/config
package nodepool
