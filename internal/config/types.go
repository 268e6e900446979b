package config

import (
	"net"
	"net/url"
	"time"
)

// Config is the resolved run configuration. JSON tags match the optional
// config-file format; fields tagged "-" are derived during Resolve.
type Config struct {
	URL           string       `json:"url"`
	Requests      uint32       `json:"requests"`
	Warmup        uint32       `json:"warmup"`
	IdleTimeoutMs uint64       `json:"idle_timeout_ms"`
	CACert        string       `json:"ca_cert,omitempty"`
	Insecure      bool         `json:"insecure,omitempty"`
	Influx        InfluxConfig `json:"influx"`

	IdleTimeout time.Duration `json:"-"`
	Target      *url.URL      `json:"-"`
	PeerAddr    *net.UDPAddr  `json:"-"`
	Authority   string        `json:"-"`
	RequestPath string        `json:"-"`
}

// InfluxConfig enables optional per-request latency export.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled"`
	URL      string `json:"url"`
	Token    string `json:"token"`
	Database string `json:"database"`
}
