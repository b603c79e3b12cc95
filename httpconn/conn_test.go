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

package httpconn_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/searchkit/nodepool/host"
	"github.com/searchkit/nodepool/httpconn"
	"github.com/searchkit/nodepool/sniff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nodesInfo = `{"cluster_name":"test","nodes":{"n1":{"name":"one","http":{"publish_address":"127.0.0.1:9200"}}}}`

func descriptorFor(t *testing.T, server *httptest.Server) host.Descriptor {
	t.Helper()
	serverURL, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(serverURL.Port())
	require.NoError(t, err)
	return host.Descriptor{Host: serverURL.Hostname(), Port: port, Scheme: serverURL.Scheme}
}

func TestPing(t *testing.T) {
	defer leaktest.Check(t)()

	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "/", r.URL.Path)
		w.WriteHeader(int(status.Load()))
	}))
	defer server.Close()

	connection := httpconn.New(descriptorFor(t, server))
	defer connection.Close()
	assert.True(t, connection.Ping())
	// Ping never changes the cached state by itself
	assert.False(t, connection.IsAlive())

	status.Store(http.StatusServiceUnavailable)
	assert.False(t, connection.Ping())
}

func TestPingTimeout(t *testing.T) {
	defer leaktest.Check(t)()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	connection := httpconn.New(descriptorFor(t, server), httpconn.WithPingTimeout(20*time.Millisecond))
	defer connection.Close()
	start := time.Now()
	assert.False(t, connection.Ping())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestPingUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	desc := descriptorFor(t, server)
	server.Close()

	connection := httpconn.New(desc)
	defer connection.Close()
	assert.False(t, connection.Ping())
}

func TestSniff(t *testing.T) {
	defer leaktest.Check(t)()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, httpconn.SniffPath, r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "elastic", user)
		assert.Equal(t, "s3cr3t", pass)
		assert.NotEmpty(t, r.Header.Get(httpconn.OpaqueIDHeader))
		_, _ = w.Write([]byte(nodesInfo))
	}))
	defer server.Close()

	desc := descriptorFor(t, server)
	desc.User, desc.Pass = "elastic", "s3cr3t"
	connection := httpconn.New(desc)
	defer connection.Close()
	payload, err := connection.Sniff()
	require.NoError(t, err)
	nodes, err := sniff.Parse(payload)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "one", nodes[0].Name)
}

func TestSniffErrorStatus(t *testing.T) {
	defer leaktest.Check(t)()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	connection := httpconn.New(descriptorFor(t, server))
	defer connection.Close()
	_, err := connection.Sniff()
	var statusErr *httpconn.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}

func TestSniffTooLarge(t *testing.T) {
	defer leaktest.Check(t)()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(nodesInfo))
	}))
	defer server.Close()

	exact := httpconn.New(descriptorFor(t, server), httpconn.WithMaxSniffBytes(int64(len(nodesInfo))))
	defer exact.Close()
	payload, err := exact.Sniff()
	require.NoError(t, err)
	assert.Equal(t, nodesInfo, string(payload))

	short := httpconn.New(descriptorFor(t, server), httpconn.WithMaxSniffBytes(int64(len(nodesInfo)-1)))
	defer short.Close()
	payload, err = short.Sniff()
	require.ErrorIs(t, err, httpconn.ErrNodeInfoTooLarge)
	assert.Nil(t, payload)
}

func TestRoundTripRewritesTarget(t *testing.T) {
	defer leaktest.Check(t)()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/logs/_search", r.URL.Path)
		assert.Equal(t, "caller-id", r.Header.Get(httpconn.OpaqueIDHeader))
		assert.Equal(t, "tests/1.0", r.Header.Get("User-Agent"))
		_, _, ok := r.BasicAuth()
		assert.False(t, ok)
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	factory := httpconn.NewFactory(httpconn.WithUserAgent("tests/1.0"))
	connection := factory.Create(descriptorFor(t, server))
	defer connection.Close()

	req, err := http.NewRequest(http.MethodGet, "http://placeholder.invalid/logs/_search", http.NoBody)
	require.NoError(t, err)
	req.Header.Set(httpconn.OpaqueIDHeader, "caller-id")
	resp, err := connection.RoundTrip(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	// the caller's request is left untouched
	assert.Equal(t, "placeholder.invalid", req.URL.Host)
}

type recordingRoundTripper struct {
	requests []*http.Request
}

func (r *recordingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	r.requests = append(r.requests, req)
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
}

func TestWithRoundTripper(t *testing.T) {
	t.Parallel()

	recorder := &recordingRoundTripper{}
	connection := httpconn.New(
		host.Descriptor{Host: "10.0.0.1", Port: 9243, Scheme: "https"},
		httpconn.WithRoundTripper(recorder),
		httpconn.WithH2C(),
	)
	assert.True(t, connection.Ping())
	require.Len(t, recorder.requests, 1)
	assert.Equal(t, "https://10.0.0.1:9243/", recorder.requests[0].URL.String())
	assert.Equal(t, "https", connection.Scheme())
	require.NoError(t, connection.Close())
}
