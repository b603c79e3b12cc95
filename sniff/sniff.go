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

// Package sniff decodes the node-info payload a cluster returns when a
// client asks it for its current membership, and turns the HTTP address
// of each node into a host descriptor.
package sniff

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/searchkit/nodepool/attribute"
	"github.com/searchkit/nodepool/host"
)

//nolint:gochecknoglobals
var (
	// NodeID is the attribute key for the cluster-assigned node id.
	NodeID = attribute.NewKey[string]()
	// NodeName is the attribute key for the configured node name.
	NodeName = attribute.NewKey[string]()
	// NodeVersion is the attribute key for the version the node runs.
	NodeVersion = attribute.NewKey[string]()
	// NodeRoles is the attribute key for the roles the node reports.
	NodeRoles = attribute.NewKey[[]string]()
)

// ErrMalformed is returned for payloads that are not a node-info document.
var ErrMalformed = errors.New("malformed node info")

// Node is a single node found in a node-info payload.
type Node struct {
	ID      string
	Name    string
	Version string
	Roles   []string
	Host    string
	Port    int
}

// Descriptor returns the descriptor for this node. The scheme and
// credentials are taken from base, since node info does not carry them.
func (n Node) Descriptor(base host.Descriptor) host.Descriptor {
	return host.Descriptor{
		Host:   n.Host,
		Port:   n.Port,
		Scheme: base.Scheme,
		User:   base.User,
		Pass:   base.Pass,
		Attributes: attribute.NewValues(
			NodeID.Value(n.ID),
			NodeName.Value(n.Name),
			NodeVersion.Value(n.Version),
			NodeRoles.Value(n.Roles),
		),
	}
}

type nodeInfo struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Roles   []string `json:"roles"`
	HTTP    struct {
		PublishAddress string `json:"publish_address"`
	} `json:"http"`
	// reported by very old clusters instead of http.publish_address
	HTTPAddress string `json:"http_address"`
}

// Skipped is a node that was listed in a node-info payload but whose
// HTTP address could not be parsed.
type Skipped struct {
	ID      string
	Address string
	Err     error
}

// Parse decodes a node-info payload. Nodes are returned in the order
// in which they appear in the payload. Nodes without an HTTP address,
// such as nodes with HTTP disabled, and nodes whose address cannot be
// parsed are skipped.
//
// A payload without a "nodes" object yields an error wrapping
// ErrMalformed. A well-formed payload listing no usable nodes yields an
// empty slice and no error.
func Parse(payload []byte) ([]Node, error) {
	nodes, _, err := ParseNodes(payload)
	return nodes, err
}

// ParseNodes is like Parse but also reports the nodes that were skipped
// because their address could not be parsed.
func ParseNodes(payload []byte) ([]Node, []Skipped, error) {
	iter := jsoniter.ConfigFastest.BorrowIterator(payload)
	defer jsoniter.ConfigFastest.ReturnIterator(iter)

	var nodes []Node
	var skipped []Skipped
	var sawNodes bool
	iter.ReadObjectCB(func(iter *jsoniter.Iterator, field string) bool {
		if field != "nodes" {
			iter.Skip()
			return true
		}
		sawNodes = true
		if iter.WhatIsNext() != jsoniter.ObjectValue {
			iter.ReportError("sniff", "nodes is not an object")
			return false
		}
		return iter.ReadObjectCB(func(iter *jsoniter.Iterator, id string) bool {
			var info nodeInfo
			iter.ReadVal(&info)
			if iter.Error != nil {
				return false
			}
			address := info.HTTP.PublishAddress
			if address == "" {
				address = info.HTTPAddress
			}
			if address == "" {
				return true
			}
			hostname, port, err := ParseAddress(address)
			if err != nil {
				skipped = append(skipped, Skipped{ID: id, Address: address, Err: err})
				return true
			}
			nodes = append(nodes, Node{
				ID:      id,
				Name:    info.Name,
				Version: info.Version,
				Roles:   info.Roles,
				Host:    hostname,
				Port:    port,
			})
			return true
		})
	})
	if iter.Error != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, iter.Error) //nolint:errorlint
	}
	if !sawNodes {
		return nil, nil, fmt.Errorf("%w: no nodes object", ErrMalformed)
	}
	return nodes, skipped, nil
}

// ParseAddress splits a published HTTP address into host and port.
// It understands the forms "1.2.3.4:9200", "[::1]:9200",
// "name/1.2.3.4:9200" (the name is preferred when present) and the
// legacy "inet[/1.2.3.4:9200]".
func ParseAddress(address string) (string, int, error) {
	address = strings.TrimSpace(address)
	if strings.HasPrefix(address, "inet[") && strings.HasSuffix(address, "]") {
		address = address[len("inet[") : len(address)-1]
	}
	var name string
	if slash := strings.LastIndexByte(address, '/'); slash >= 0 {
		name, address = address[:slash], address[slash+1:]
	}
	hostname, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("%w %q", host.ErrInvalidPort, portStr)
	}
	if name != "" {
		hostname = name
	}
	if hostname == "" {
		return "", 0, host.ErrMissingHost
	}
	return hostname, port, nil
}
