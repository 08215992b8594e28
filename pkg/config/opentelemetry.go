package config

import (
	"errors"
	"fmt"
)

// OpenTelemetryConfig configures OTLP trace export. Tracing is off unless
// Enabled is set.
type OpenTelemetryConfig struct {
	// Enabled turns on span export for backend calls.
	Enabled bool

	// ServiceName is the service.name resource attribute reported on every
	// span. Empty defaults to "pgadapter".
	ServiceName string

	// OTLPEndpoint is the OTLP collector endpoint. Empty defers to the
	// OTEL_EXPORTER_OTLP_ENDPOINT environment variable.
	OTLPEndpoint string

	// OTLPProtocol selects the export transport: "grpc" or "http". Empty
	// defaults to "grpc".
	OTLPProtocol string

	// SamplingRate is the fraction of traces to sample, 0.0 to 1.0.
	SamplingRate float64
}

// GetServiceName returns the service name, defaulting to "pgadapter".
func (c *OpenTelemetryConfig) GetServiceName() string {
	if c.ServiceName == "" {
		return "pgadapter"
	}
	return c.ServiceName
}

// GetOTLPProtocol returns the OTLP protocol, defaulting to "grpc".
func (c *OpenTelemetryConfig) GetOTLPProtocol() string {
	if c.OTLPProtocol == "" {
		return "grpc"
	}
	return c.OTLPProtocol
}

// Validate checks the tracing configuration. A disabled config is always
// valid.
func (c *OpenTelemetryConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	var errs []error

	if protocol := c.GetOTLPProtocol(); protocol != "grpc" && protocol != "http" {
		errs = append(errs, fmt.Errorf("otlp protocol must be \"grpc\" or \"http\", got %q", protocol))
	}
	if c.SamplingRate < 0.0 || c.SamplingRate > 1.0 {
		errs = append(errs, fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.SamplingRate))
	}

	return errors.Join(errs...)
}
