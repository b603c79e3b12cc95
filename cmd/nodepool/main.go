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

// Command nodepool builds a connection pool from the environment and
// prints the node chosen for each of a number of requests. It is a quick
// way to check which nodes of a cluster a client would talk to.
//
// Usage:
//
//	nodepool [-env FILE] [-n COUNT] [-force] [-get PATH]
//
// With -get, each of the COUNT requests is sent through the pool to PATH
// and the response status is printed next to the node that served it.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/searchkit/nodepool"
	"github.com/searchkit/nodepool/config"
	"github.com/sirupsen/logrus"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	flags := flag.NewFlagSet("nodepool", flag.ContinueOnError)
	envFile := flags.String("env", ".env", "`file` with NODEPOOL_* settings; missing files are ignored")
	count := flags.Int("n", 1, "number of connections to pick")
	force := flags.Bool("force", false, "ping every picked connection, even if it is known to be alive")
	path := flags.String("get", "", "send a GET request for `path` instead of only picking a node")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		logrus.WithError(err).Error("invalid configuration")
		return 2
	}
	logger := cfg.NewLogger()
	pool, err := cfg.NewPool(logger)
	if err != nil {
		logger.WithError(err).Error("failed to create pool")
		return 2
	}
	defer func() {
		if err := pool.Close(); err != nil {
			logger.WithError(err).Warn("failed to close pool")
		}
	}()

	if *path != "" {
		return get(cfg, pool, logger, *path, *count, out)
	}
	for i := 0; i < *count; i++ {
		selected, err := pool.NextConnection(*force)
		if err != nil {
			logger.WithError(err).Error("failed to pick a connection")
			return exitCode(err)
		}
		fmt.Fprintln(out, selected.Descriptor().HostPort())
	}
	logger.WithField("connections", len(pool.Connections())).Debug("done")
	return 0
}

func get(cfg *config.Config, pool nodepool.Pool, logger logrus.FieldLogger, path string, count int, out io.Writer) int {
	opts := append(cfg.TransportOptions(), nodepool.WithLogger(logger))
	client := &http.Client{Transport: nodepool.NewTransport(pool, opts...)}
	target := "http://nodepool/" + strings.TrimPrefix(path, "/")
	for i := 0; i < count; i++ {
		resp, err := client.Get(target) //nolint:noctx
		if err != nil {
			logger.WithError(err).Error("request failed")
			return exitCode(err)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		fmt.Fprintf(out, "%s %s\n", resp.Request.URL.Host, resp.Status)
	}
	return 0
}

func exitCode(err error) int {
	if errors.Is(err, nodepool.ErrNoNodesAvailable) {
		return 1
	}
	return 3
}
