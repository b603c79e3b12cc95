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

// Package config loads pool settings from the environment, optionally
// seeded from .env files, and turns them into pool and connection
// options.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/searchkit/nodepool"
	"github.com/searchkit/nodepool/conn"
	"github.com/searchkit/nodepool/host"
	"github.com/searchkit/nodepool/httpconn"
	"github.com/searchkit/nodepool/selector"
	"github.com/sirupsen/logrus"
)

// Environment variables read by Load.
const (
	EnvHosts              = "NODEPOOL_HOSTS"
	EnvRandomizeHosts     = "NODEPOOL_RANDOMIZE_HOSTS"
	EnvSniff              = "NODEPOOL_SNIFF"
	EnvSniffingInterval   = "NODEPOOL_SNIFFING_INTERVAL"
	EnvRevalidateInterval = "NODEPOOL_REVALIDATE_INTERVAL"
	EnvPingTimeout        = "NODEPOOL_PING_TIMEOUT"
	EnvSniffTimeout       = "NODEPOOL_SNIFF_TIMEOUT"
	EnvSelector           = "NODEPOOL_SELECTOR"
	EnvH2C                = "NODEPOOL_H2C"
	EnvLogLevel           = "NODEPOOL_LOG_LEVEL"
	EnvRetries            = "NODEPOOL_RETRIES"
	EnvRequestTimeout     = "NODEPOOL_REQUEST_TIMEOUT"
)

// Selector names accepted in NODEPOOL_SELECTOR.
const (
	SelectorRoundRobin = "round-robin"
	SelectorSticky     = "sticky"
	SelectorRandom     = "random"
)

const defaultSniffingIntervalSeconds = 300

// ErrInvalidValue is wrapped by errors for settings that cannot be parsed.
var ErrInvalidValue = errors.New("invalid value")

// Config holds the settings for building a pool.
type Config struct {
	Hosts          []string
	RandomizeHosts bool
	Sniff          bool
	// SniffingInterval may be negative, in which case every call sniffs.
	SniffingInterval   time.Duration
	RevalidateInterval time.Duration
	PingTimeout        time.Duration
	SniffTimeout       time.Duration
	SelectorName       string
	H2C                bool
	LogLevel           string
	// Retries is negative when unset, letting the transport retry once
	// per known connection.
	Retries        int
	RequestTimeout time.Duration
}

// Load reads the given .env files, then the environment. Files that do
// not exist are skipped, and variables already present in the
// environment win over values from files. With no files, ".env" in the
// working directory is tried.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	cfg := &Config{
		Hosts:        splitList(os.Getenv(EnvHosts)),
		SelectorName: getEnv(EnvSelector, SelectorRoundRobin),
		LogLevel:     getEnv(EnvLogLevel, "info"),
	}
	if len(cfg.Hosts) == 0 {
		return nil, fmt.Errorf("%s: %w", EnvHosts, host.ErrNoHosts)
	}
	var err error
	if cfg.RandomizeHosts, err = getEnvAsBool(EnvRandomizeHosts, false); err != nil {
		return nil, err
	}
	if cfg.Sniff, err = getEnvAsBool(EnvSniff, true); err != nil {
		return nil, err
	}
	if cfg.H2C, err = getEnvAsBool(EnvH2C, false); err != nil {
		return nil, err
	}
	seconds, err := getEnvAsInt(EnvSniffingInterval, defaultSniffingIntervalSeconds)
	if err != nil {
		return nil, err
	}
	cfg.SniffingInterval = time.Duration(seconds) * time.Second
	if cfg.RevalidateInterval, err = getEnvAsDuration(EnvRevalidateInterval); err != nil {
		return nil, err
	}
	if cfg.PingTimeout, err = getEnvAsDuration(EnvPingTimeout); err != nil {
		return nil, err
	}
	if cfg.SniffTimeout, err = getEnvAsDuration(EnvSniffTimeout); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getEnvAsDuration(EnvRequestTimeout); err != nil {
		return nil, err
	}
	if cfg.Retries, err = getEnvAsInt(EnvRetries, -1); err != nil {
		return nil, err
	}

	switch cfg.SelectorName {
	case SelectorRoundRobin, SelectorSticky, SelectorRandom:
	default:
		return nil, fmt.Errorf("%s %q: %w", EnvSelector, cfg.SelectorName, ErrInvalidValue)
	}
	if !isOff(cfg.LogLevel) {
		if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
			return nil, fmt.Errorf("%s %q: %w", EnvLogLevel, cfg.LogLevel, ErrInvalidValue)
		}
	}
	return cfg, nil
}

// Descriptors parses the configured hosts.
func (c *Config) Descriptors() ([]host.Descriptor, error) {
	return host.ParseAll(c.Hosts)
}

// Selector returns a new selector of the configured kind.
func (c *Config) Selector() selector.Selector {
	switch c.SelectorName {
	case SelectorSticky:
		return selector.NewStickyRoundRobin()
	case SelectorRandom:
		return selector.NewRandom()
	default:
		return selector.NewRoundRobin()
	}
}

// PoolOptions returns the pool options for these settings. No logger
// option is included.
func (c *Config) PoolOptions() []nodepool.Option {
	return []nodepool.Option{
		nodepool.WithRandomizeHosts(c.RandomizeHosts),
		nodepool.WithSniffingInterval(c.SniffingInterval),
		nodepool.WithRevalidateInterval(c.RevalidateInterval),
	}
}

// ConnOptions returns the connection options for these settings.
func (c *Config) ConnOptions() []httpconn.Option {
	var opts []httpconn.Option
	if c.PingTimeout > 0 {
		opts = append(opts, httpconn.WithPingTimeout(c.PingTimeout))
	}
	if c.SniffTimeout > 0 {
		opts = append(opts, httpconn.WithSniffTimeout(c.SniffTimeout))
	}
	if c.H2C {
		opts = append(opts, httpconn.WithH2C())
	}
	return opts
}

// TransportOptions returns the transport options for these settings. No
// logger option is included.
func (c *Config) TransportOptions() []nodepool.TransportOption {
	opts := []nodepool.TransportOption{nodepool.WithRetries(c.Retries)}
	if c.RequestTimeout > 0 {
		opts = append(opts, nodepool.WithRequestTimeout(c.RequestTimeout))
	}
	return opts
}

// NewLogger returns a logger writing text to stderr at the configured
// level. The levels "off" and "none" discard everything.
func (c *Config) NewLogger() *logrus.Logger {
	return newLogger(c.LogLevel, os.Stderr)
}

// NewPool builds the pool described by these settings, using HTTP
// connections. Seeds and discovered nodes share the same connection
// options.
func (c *Config) NewPool(logger logrus.FieldLogger) (nodepool.Pool, error) {
	descs, err := c.Descriptors()
	if err != nil {
		return nil, err
	}
	factory := httpconn.NewFactory(c.ConnOptions()...)
	seeds := conn.CreateAll(factory, descs)
	opts := append(c.PoolOptions(), nodepool.WithLogger(logger))
	if c.Sniff {
		pool, err := nodepool.NewSniffingPool(seeds, c.Selector(), factory, opts...)
		if err != nil {
			return nil, err
		}
		return pool, nil
	}
	pool, err := nodepool.NewStaticPool(seeds, c.Selector(), opts...)
	if err != nil {
		return nil, err
	}
	return pool, nil
}

func newLogger(level string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	if isOff(level) {
		logger.SetOutput(io.Discard)
	} else {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			parsed = logrus.InfoLevel
		}
		logger.SetLevel(parsed)
		logger.SetOutput(out)
	}
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return logger
}

func isOff(level string) bool {
	return level == "off" || level == "none"
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s %q: %w", key, value, ErrInvalidValue)
	}
	return parsed, nil
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", key, value, ErrInvalidValue)
	}
	return parsed, nil
}

func getEnvAsDuration(key string) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return 0, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		return 0, fmt.Errorf("%s %q: %w", key, value, ErrInvalidValue)
	}
	return parsed, nil
}
