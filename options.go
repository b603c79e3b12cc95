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
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultSniffingInterval = 5 * time.Minute

// Option is an option used to customize the behavior of a pool.
type Option interface {
	apply(*poolOptions)
}

// WithRandomizeHosts shuffles the initial order of the connections given
// to the pool, once, at construction. This spreads the first requests of
// many clients configured with the same host list across different
// nodes. If not specified, the given order is kept.
func WithRandomizeHosts(randomize bool) Option {
	return optionFunc(func(opts *poolOptions) {
		opts.randomizeHosts = randomize
	})
}

// WithSniffingInterval configures how often a SniffingPool refreshes the
// cluster topology. A sniff is due once the given interval has elapsed
// since the last successful one. A zero or negative interval makes the
// pool sniff on every call to NextConnection, which is mostly useful in
// tests. If not specified, five minutes is used. StaticPool ignores
// this option.
func WithSniffingInterval(interval time.Duration) Option {
	return optionFunc(func(opts *poolOptions) {
		opts.sniffingInterval = interval
	})
}

// WithRevalidateInterval bounds how long a connection's cached liveness
// is trusted. When set, a connection that has not been successfully
// pinged by the pool within the interval is pinged again before it is
// returned, even if it is marked alive. If not specified, or zero, a
// connection marked alive is returned without a ping until it is marked
// dead.
func WithRevalidateInterval(interval time.Duration) Option {
	return optionFunc(func(opts *poolOptions) {
		opts.revalidateInterval = interval
	})
}

// WithLogger configures the logger used to report probe failures,
// topology changes and retried requests. If not specified, nothing is
// logged. The returned option can configure both a pool and a Transport.
func WithLogger(logger logrus.FieldLogger) CommonOption {
	return loggerOption{logger: logger}
}

// CommonOption is an option that can be used both as an Option and as a
// TransportOption.
type CommonOption interface {
	Option
	TransportOption
}

type loggerOption struct {
	logger logrus.FieldLogger
}

func (o loggerOption) apply(opts *poolOptions) {
	opts.logger = o.logger
}

func (o loggerOption) applyToTransport(opts *transportOptions) {
	opts.logger = o.logger
}

type optionFunc func(*poolOptions)

func (f optionFunc) apply(opts *poolOptions) {
	f(opts)
}

type poolOptions struct {
	randomizeHosts     bool
	sniffingInterval   time.Duration
	revalidateInterval time.Duration
	logger             logrus.FieldLogger
}

func newPoolOptions(opts []Option) *poolOptions {
	options := &poolOptions{
		sniffingInterval: defaultSniffingInterval,
	}
	for _, opt := range opts {
		opt.apply(options)
	}
	if options.logger == nil {
		options.logger = discardLogger()
	}
	return options
}

func discardLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
