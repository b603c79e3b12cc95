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

package httpconn

import (
	"crypto/tls"
	"net/http"
	"time"
)

const (
	defaultPingTimeout  = time.Second
	defaultSniffTimeout = 5 * time.Second
	defaultUserAgent    = "nodepool-go"

	defaultMaxSniffBytes = 8 << 20
)

// Option is an option used to customize connections created by New or
// by a factory returned from NewFactory.
type Option interface {
	apply(*connOptions)
}

// WithPingTimeout limits how long Ping waits for a node to answer.
// If not specified, one second is used.
func WithPingTimeout(timeout time.Duration) Option {
	return optionFunc(func(opts *connOptions) {
		opts.pingTimeout = timeout
	})
}

// WithSniffTimeout limits how long Sniff waits for a node's answer,
// including reading the response body. If not specified, five seconds
// is used.
func WithSniffTimeout(timeout time.Duration) Option {
	return optionFunc(func(opts *connOptions) {
		opts.sniffTimeout = timeout
	})
}

// WithMaxSniffBytes caps the size of the node information Sniff accepts.
// Larger answers fail with ErrNodeInfoTooLarge. If not specified, 8 MiB
// is used.
func WithMaxSniffBytes(limit int64) Option {
	return optionFunc(func(opts *connOptions) {
		opts.maxSniffBytes = limit
	})
}

// WithRoundTripper uses the given round-tripper for all requests instead
// of creating a transport per connection. The round-tripper is shared, so
// closing a connection does not close its idle network connections.
func WithRoundTripper(roundTripper http.RoundTripper) Option {
	return optionFunc(func(opts *connOptions) {
		opts.roundTripper = roundTripper
	})
}

// WithTLSConfig configures the TLS settings used for "https" nodes.
func WithTLSConfig(config *tls.Config) Option {
	return optionFunc(func(opts *connOptions) {
		opts.tlsConfig = config
	})
}

// WithH2C makes plaintext ("http") connections speak HTTP/2 without TLS,
// also called "h2c". It has no effect on "https" connections, which
// negotiate HTTP/2 via TLS anyway.
func WithH2C() Option {
	return optionFunc(func(opts *connOptions) {
		opts.h2c = true
	})
}

// WithUserAgent sets the User-Agent header sent when a request does not
// already carry one.
func WithUserAgent(userAgent string) Option {
	return optionFunc(func(opts *connOptions) {
		opts.userAgent = userAgent
	})
}

type optionFunc func(*connOptions)

func (f optionFunc) apply(opts *connOptions) {
	f(opts)
}

type connOptions struct {
	pingTimeout  time.Duration
	sniffTimeout time.Duration
	maxSniffBytes int64
	roundTripper http.RoundTripper
	tlsConfig    *tls.Config
	h2c          bool
	userAgent    string
}

func newConnOptions(opts []Option) *connOptions {
	options := &connOptions{
		pingTimeout:  defaultPingTimeout,
		sniffTimeout:  defaultSniffTimeout,
		maxSniffBytes: defaultMaxSniffBytes,
		userAgent:     defaultUserAgent,
	}
	for _, opt := range opts {
		opt.apply(options)
	}
	return options
}
