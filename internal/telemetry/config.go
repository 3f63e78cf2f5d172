// Package telemetry provides OpenTelemetry instrumentation for the sync daemon.
// It supports configurable tracing and metrics with OTLP exporters and a
// Prometheus scrape endpoint.
package telemetry

import (
	"errors"
	"fmt"
	"net"
)

const (
	// DefaultServiceName is the default service name for telemetry
	DefaultServiceName = "kvk-sync"

	// DefaultEndpoint is the default OTLP endpoint for telemetry
	DefaultEndpoint = "localhost:4318"

	// DefaultSampling keeps every sync cycle; a daemon starts one trace per interval
	DefaultSampling = 1.0
)

// Config represents the root telemetry configuration
type Config struct {
	// Enabled controls whether telemetry is enabled globally
	// When false, no telemetry providers are initialized
	Enabled bool `yaml:"enabled"`

	// ServiceName is the name of the service for telemetry identification
	// Defaults to "kvk-sync" if not specified
	ServiceName string `yaml:"serviceName,omitempty"`

	// ServiceVersion is the version of the service for telemetry identification
	// Defaults to the application version if not specified
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the OTLP collector endpoint for telemetry
	// Defaults to "localhost:4318" if not specified
	// Format: "host:port" for HTTP (uses /v1/traces and /v1/metrics paths automatically)
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure allows HTTP connections instead of HTTPS
	// Should only be true for development/testing environments
	Insecure bool `yaml:"insecure,omitempty"`

	// Tracing contains tracing-specific configuration
	Tracing *TracingConfig `yaml:"tracing,omitempty"`

	// Metrics contains metrics-specific configuration
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`

	// Prometheus exposes metrics for scraping while the daemon runs.
	// It works independently of Enabled, which only governs the OTLP exporters.
	Prometheus *PrometheusConfig `yaml:"prometheus,omitempty"`
}

// PrometheusConfig defines the scrape endpoint of the daemon
type PrometheusConfig struct {
	// ListenAddress is the address serving /metrics and /healthz, e.g. ":9090".
	// The endpoint is disabled when empty.
	ListenAddress string `yaml:"listenAddress,omitempty"`
}

// TracingConfig defines tracing-specific configuration
type TracingConfig struct {
	// Enabled controls whether tracing is enabled
	// When false, tracing is disabled even if telemetry is enabled globally
	Enabled bool `yaml:"enabled"`

	// Sampling controls the trace sampling rate, in (0.0, 1.0]
	// Defaults to DefaultSampling when unset
	Sampling *float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig defines metrics-specific configuration
type MetricsConfig struct {
	// Enabled controls whether metrics collection is enabled
	// When false, metrics are disabled even if telemetry is enabled globally
	Enabled bool `yaml:"enabled"`
}

// GetServiceName returns the service name, using default if not specified
func (c *Config) GetServiceName() string {
	if c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// GetServiceVersion returns the service version, using "unknown" if not specified
func (c *Config) GetServiceVersion() string {
	if c.ServiceVersion == "" {
		return "unknown"
	}
	return c.ServiceVersion
}

// GetEndpoint returns the endpoint, using default if not specified
func (c *Config) GetEndpoint() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

// GetInsecure returns the insecure flag
func (c *Config) GetInsecure() bool {
	return c.Insecure
}

// GetSampling returns the sampling ratio, DefaultSampling when unset.
// Validation should be performed before calling this method.
func (c *TracingConfig) GetSampling() float64 {
	if c.Sampling == nil {
		return DefaultSampling
	}
	return *c.Sampling
}

// Validate validates the telemetry configuration
func (c *Config) Validate() error {
	if c == nil {
		return nil // nil config is valid (telemetry disabled)
	}

	var errs []error

	if err := c.Prometheus.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("prometheus: %w", err))
	}

	if !c.Enabled {
		return errors.Join(errs...)
	}

	if c.Tracing != nil {
		if err := c.Tracing.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("tracing: %w", err))
		}
	}

	if c.Metrics != nil {
		if err := c.Metrics.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("metrics: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Validate validates the tracing configuration
func (c *TracingConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	if c.Sampling == nil {
		return nil
	}
	if sampling := *c.Sampling; sampling <= 0 || sampling > 1.0 {
		return fmt.Errorf("sampling must be greater than 0.0 and at most 1.0, got %f", sampling)
	}

	return nil
}

// Validate validates the metrics configuration
func (c *MetricsConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	// No additional validation needed for OTLP-only configuration
	return nil
}

// PrometheusEnabled reports whether the scrape endpoint should be served
func (c *Config) PrometheusEnabled() bool {
	return c != nil && c.Prometheus != nil && c.Prometheus.ListenAddress != ""
}

// Validate validates the Prometheus configuration
func (c *PrometheusConfig) Validate() error {
	if c == nil || c.ListenAddress == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.ListenAddress); err != nil {
		return fmt.Errorf("invalid listenAddress %q: %w", c.ListenAddress, err)
	}
	return nil
}
