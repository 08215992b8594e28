// Package config holds PGAdapter's validated, immutable runtime
// configuration, built once at startup from CLI flags and threaded
// explicitly through the server and its connections rather than read from
// package-level globals.
package config

import (
	"errors"
	"fmt"
)

// Config is PGAdapter's fully resolved startup configuration.
type Config struct {
	// Project is the Google Cloud project hosting the Spanner instance.
	Project string
	// Instance is the Cloud Spanner instance name.
	Instance string
	// DefaultDatabase is used when a client's startup `database` parameter
	// does not otherwise select one.
	DefaultDatabase string

	// TCPPort is the port PGAdapter listens on for TCP connections. Zero
	// disables the TCP listener.
	TCPPort int
	// UnixSocketDir, if non-empty, is the directory PGAdapter creates its
	// Unix-domain socket in (as `.s.PGSQL.<port>`, matching libpq).
	UnixSocketDir string

	// DisableAuth accepts every client without a password challenge,
	// matching real PGAdapter's `-x` local-development flag. Authentication
	// transports are a boundary service; PGAdapter-Go implements
	// only this trust/cleartext boundary, not a credential store.
	DisableAuth bool

	TLS TLSConfig

	// Metrics configures the Prometheus endpoint; nil disables it.
	Metrics *PrometheusConfig
	// OpenTelemetry configures OTLP trace export.
	OpenTelemetry OpenTelemetryConfig

	// CopyBatchRows and CopyBatchBytes bound one COPY mutation batch before
	// it is flushed to the backend. Zero selects the engine defaults.
	CopyBatchRows  int
	CopyBatchBytes ByteSize

	JSONLogs bool
}

// DatabasePath returns the fully qualified Spanner database path for the
// given database name ("" selects DefaultDatabase).
func (c *Config) DatabasePath(database string) string {
	if database == "" {
		database = c.DefaultDatabase
	}
	return fmt.Sprintf("projects/%s/instances/%s/databases/%s", c.Project, c.Instance, database)
}

// Validate checks the configuration is complete and internally consistent.
// It does not stop at the first error; every error is accumulated and
// returned together via errors.Join.
func (c *Config) Validate() error {
	var errs []error

	if c.Project == "" {
		errs = append(errs, errors.New("project (-p) is required"))
	}
	if c.Instance == "" {
		errs = append(errs, errors.New("instance (-i) is required"))
	}
	if c.DefaultDatabase == "" {
		errs = append(errs, errors.New("default database (-d) is required"))
	}
	if c.TCPPort == 0 && c.UnixSocketDir == "" {
		errs = append(errs, errors.New("at least one of -s (tcp port) or -dir (unix socket dir) must be set"))
	}
	if c.TCPPort < 0 || c.TCPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid tcp port %d", c.TCPPort))
	}
	if c.CopyBatchRows < 0 {
		errs = append(errs, fmt.Errorf("copy batch rows must not be negative, got %d", c.CopyBatchRows))
	}
	if c.CopyBatchBytes < 0 {
		errs = append(errs, fmt.Errorf("copy batch bytes must not be negative, got %s", c.CopyBatchBytes))
	}
	if err := c.TLS.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Metrics != nil {
		if err := c.Metrics.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.OpenTelemetry.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
