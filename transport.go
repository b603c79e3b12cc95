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
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrBodyNotRewindable is wrapped by the error returned when a request
// fails on one node and cannot be retried on another because its body
// cannot be read again. Set Request.GetBody to make such requests
// retryable.
var ErrBodyNotRewindable = errors.New("request body cannot be replayed")

// TransportOption is an option used to customize the behavior of a
// Transport.
type TransportOption interface {
	applyToTransport(*transportOptions)
}

// WithRetries configures how many times a request that failed with a
// transport error is retried on another node. If not specified, a request
// may be retried once per connection known to the pool when it is sent.
func WithRetries(retries int) TransportOption {
	return transportOptionFunc(func(opts *transportOptions) {
		opts.retries = retries
	})
}

// WithRequestTimeout bounds each attempt of a request, from sending it
// until its response body is fully read or closed. If not specified, only
// the request's own context applies.
func WithRequestTimeout(timeout time.Duration) TransportOption {
	return transportOptionFunc(func(opts *transportOptions) {
		opts.requestTimeout = timeout
	})
}

type transportOptionFunc func(*transportOptions)

func (f transportOptionFunc) applyToTransport(opts *transportOptions) {
	f(opts)
}

type transportOptions struct {
	retries        int
	requestTimeout time.Duration
	logger         logrus.FieldLogger
}

// Transport is an http.RoundTripper that sends every request to a node
// picked from a Pool. The scheme and host of the request URL are replaced
// by those of the chosen node.
//
// A request that fails before a response is received is retried on the
// next node handed out by the pool, after marking the failed connection
// dead. Responses with error status codes are returned as they are.
type Transport struct {
	pool           Pool
	retries        int
	requestTimeout time.Duration
	logger         logrus.FieldLogger
}

var _ http.RoundTripper = (*Transport)(nil)

// NewTransport returns a Transport that routes requests through pool.
func NewTransport(pool Pool, opts ...TransportOption) *Transport {
	options := &transportOptions{retries: -1}
	for _, opt := range opts {
		opt.applyToTransport(options)
	}
	if options.logger == nil {
		options.logger = discardLogger()
	}
	return &Transport{
		pool:           pool,
		retries:        options.retries,
		requestTimeout: options.requestTimeout,
		logger:         options.logger,
	}
}

// RoundTrip implements http.RoundTripper. The request body is always
// closed, including when an error is returned.
func (t *Transport) RoundTrip(request *http.Request) (*http.Response, error) {
	retries := t.retries
	if retries < 0 {
		retries = len(t.pool.Connections())
	}
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			var err error
			if request, err = rewind(request); err != nil {
				return nil, fmt.Errorf("%w: %w", err, lastErr)
			}
		}
		c, err := t.pool.NextConnection(false)
		if err != nil {
			closeBody(request)
			if lastErr != nil {
				return nil, fmt.Errorf("%w (last request error: %w)", err, lastErr)
			}
			return nil, err
		}
		resp, err := t.send(c.RoundTrip, request)
		if err == nil {
			return resp, nil
		}
		// The previous body is done with whether or not we retry.
		closeBody(request)
		if request.Context().Err() != nil {
			return nil, err
		}
		c.MarkDead()
		lastErr = err
		t.logger.WithFields(logrus.Fields{
			"host":    c.Descriptor().HostPort(),
			"attempt": attempt + 1,
		}).WithError(err).Warn("request failed, marking connection dead")
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", retries+1, lastErr)
}

func (t *Transport) send(roundTrip func(*http.Request) (*http.Response, error), request *http.Request) (*http.Response, error) {
	if t.requestTimeout <= 0 {
		return roundTrip(request)
	}
	ctx, cancel := context.WithTimeout(request.Context(), t.requestTimeout)
	resp, err := roundTrip(request.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &hookReadCloser{ReadCloser: resp.Body, hook: cancel}
	return resp, nil
}

// rewind returns a copy of request with a fresh body, so that it can be
// sent again.
func rewind(request *http.Request) (*http.Request, error) {
	if request.Body == nil || request.Body == http.NoBody {
		return request, nil
	}
	if request.GetBody == nil {
		return nil, ErrBodyNotRewindable
	}
	body, err := request.GetBody()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBodyNotRewindable, err)
	}
	rewound := request.Clone(request.Context())
	rewound.Body = body
	return rewound, nil
}

func closeBody(request *http.Request) {
	if request.Body != nil && request.Body != http.NoBody {
		_ = request.Body.Close()
	}
}

// hookReadCloser calls hook once, when the body is closed or reading it
// fails or reaches EOF.
type hookReadCloser struct {
	io.ReadCloser
	hook func()

	// +checkatomic
	closed atomic.Bool
}

func (h *hookReadCloser) done() {
	if h.closed.CompareAndSwap(false, true) {
		h.hook()
	}
}

func (h *hookReadCloser) Read(p []byte) (n int, err error) {
	n, err = h.ReadCloser.Read(p)
	if err != nil {
		h.done()
	}
	return n, err
}

func (h *hookReadCloser) Close() error {
	err := h.ReadCloser.Close()
	h.done()
	return err
}
