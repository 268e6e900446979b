// Package config resolves the run configuration: defaults, an optional JSON
// config file, and flag overrides applied by the command layer, followed by
// target address resolution.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"h3bench/internal/engine"
)

const (
	DefaultRequests      = 10
	DefaultWarmup        = 1
	DefaultIdleTimeoutMs = 30_000
	DefaultPort          = "443"

	UserAgent = "h3bench"
)

// Default returns the built-in configuration values.
func Default() *Config {
	return &Config{
		Requests:      DefaultRequests,
		Warmup:        DefaultWarmup,
		IdleTimeoutMs: DefaultIdleTimeoutMs,
		Influx: InfluxConfig{
			URL:      "http://localhost:8181",
			Database: "h3bench",
		},
	}
}

// Load reads a JSON config file over the defaults. An empty path yields the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // config file path is controlled
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse JSON config: %w", err)
	}
	return cfg, nil
}

// Resolve validates the configuration and derives the parsed target, peer
// address, authority, and request path. It must be called before the run.
func (c *Config) Resolve() error {
	if c.URL == "" {
		return errors.New("no target URL given")
	}
	if c.IdleTimeoutMs == 0 {
		return errors.New("idle timeout must be positive")
	}
	if c.Requests == 0 {
		return errors.New("request count must be positive")
	}

	target, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if target.Scheme == "" {
		target.Scheme = "https"
	}
	if target.Hostname() == "" {
		return fmt.Errorf("URL %q has no host", c.URL)
	}

	port := target.Port()
	if port == "" {
		port = DefaultPort
	}
	peer, err := net.ResolveUDPAddr("udp", net.JoinHostPort(target.Hostname(), port))
	if err != nil {
		return fmt.Errorf("failed to resolve server address: %w", err)
	}

	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}

	c.Target = target
	c.PeerAddr = peer
	c.Authority = target.Host
	c.RequestPath = path
	c.IdleTimeout = time.Duration(c.IdleTimeoutMs) * time.Millisecond
	return nil
}

// TotalRequests is warmup plus measured.
func (c *Config) TotalRequests() uint32 {
	return c.Warmup + c.Requests
}

// RequestHeaders builds the fixed header set sent with every request.
func (c *Config) RequestHeaders() []engine.Header {
	return []engine.Header{
		{Name: ":method", Value: "GET"},
		{Name: ":scheme", Value: c.Target.Scheme},
		{Name: ":authority", Value: c.Authority},
		{Name: ":path", Value: c.RequestPath},
		{Name: "user-agent", Value: UserAgent},
	}
}

// String renders the key settings for diagnostics.
func (c *Config) String() string {
	return c.URL + " requests=" + strconv.FormatUint(uint64(c.Requests), 10) +
		" warmup=" + strconv.FormatUint(uint64(c.Warmup), 10) +
		" idle_timeout=" + c.IdleTimeout.String()
}
