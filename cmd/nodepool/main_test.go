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

package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/searchkit/nodepool/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, hosts string) string {
	t.Helper()
	t.Setenv(config.EnvHosts, hosts)
	t.Setenv(config.EnvSniff, "false")
	t.Setenv(config.EnvPingTimeout, "200ms")
	t.Setenv(config.EnvLogLevel, "off")
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	hostPort := strings.TrimPrefix(server.URL, "http://")
	envFile := setEnv(t, hostPort)

	var out bytes.Buffer
	code := run([]string{"-env", envFile, "-n", "3", "-force"}, &out)
	require.Equal(t, 0, code)
	assert.Equal(t, strings.Repeat(hostPort+"\n", 3), out.String())
}

func TestRunNoNodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)
	envFile := setEnv(t, strings.TrimPrefix(server.URL, "http://"))

	var out bytes.Buffer
	assert.Equal(t, 1, run([]string{"-env", envFile}, &out))
	assert.Empty(t, out.String())
}

func TestRunUsageErrors(t *testing.T) {
	envFile := setEnv(t, "")
	var out bytes.Buffer
	assert.Equal(t, 2, run([]string{"-bogus"}, &out))
	assert.Equal(t, 2, run([]string{"-env", envFile}, &out))
}

func TestRunGet(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			mu.Lock()
			paths = append(paths, r.URL.Path)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	hostPort := strings.TrimPrefix(server.URL, "http://")
	envFile := setEnv(t, hostPort)

	var out bytes.Buffer
	code := run([]string{"-env", envFile, "-n", "2", "-get", "_cluster/health"}, &out)
	require.Equal(t, 0, code)
	assert.Equal(t, strings.Repeat(hostPort+" 200 OK\n", 2), out.String())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/_cluster/health", "/_cluster/health"}, paths)
}
