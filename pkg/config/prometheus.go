package config

import (
	"errors"
	"fmt"
	"strings"
)

// PrometheusConfig configures the Prometheus metrics endpoint. A nil config
// disables metrics entirely.
type PrometheusConfig struct {
	// Listen is the "host:port" or ":port" address of the metrics HTTP
	// server.
	Listen string

	// Path is the HTTP path the metrics are served under.
	Path string
}

// GetListen returns the listen address, defaulting to ":9090".
func (c *PrometheusConfig) GetListen() string {
	if c.Listen == "" {
		return ":9090"
	}
	return c.Listen
}

// GetPath returns the metrics path, defaulting to "/metrics".
func (c *PrometheusConfig) GetPath() string {
	if c.Path == "" {
		return "/metrics"
	}
	return c.Path
}

// Validate checks the listen address and path are well formed.
func (c *PrometheusConfig) Validate() error {
	var errs []error

	if listen := c.GetListen(); !strings.Contains(listen, ":") {
		errs = append(errs, fmt.Errorf("metrics listen address %q must contain a port (e.g. ':9090')", listen))
	}
	if path := c.GetPath(); !strings.HasPrefix(path, "/") {
		errs = append(errs, fmt.Errorf("metrics path %q must start with '/'", path))
	}

	return errors.Join(errs...)
}

// ParsePrometheusListen parses a CLI argument in "host:port/path" form
// (":9090", ":9090/metrics", "0.0.0.0:9191/stats") into a PrometheusConfig.
// An empty argument returns nil, meaning metrics are disabled.
func ParsePrometheusListen(listen string) *PrometheusConfig {
	if listen == "" {
		return nil
	}

	addr, path, found := strings.Cut(listen, "/")
	cfg := &PrometheusConfig{Listen: addr}
	if found {
		cfg.Path = "/" + path
	}
	return cfg
}
