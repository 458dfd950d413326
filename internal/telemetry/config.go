package telemetry

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// OTLP export protocols.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"
)

// Config selects the OTLP collector and what is sent to it.
type Config struct {
	Enabled        bool    `koanf:"enabled"`
	Endpoint       string  `koanf:"endpoint"`
	Protocol       string  `koanf:"protocol"`
	ServiceName    string  `koanf:"service_name"`
	ServiceVersion string  `koanf:"service_version"`
	Insecure       bool    `koanf:"insecure"`
	TLSSkipVerify  bool    `koanf:"tls_skip_verify"`
	SampleRate     float64 `koanf:"sample_rate"`

	// Metrics are exported on a fixed interval; Prometheus scraping is
	// separate and unaffected.
	Metrics MetricsConfig `koanf:"metrics"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type MetricsConfig struct {
	Enabled        bool          `koanf:"enabled"`
	ExportInterval time.Duration `koanf:"export_interval"`
}

// NewDefaultConfig points at a collector on localhost but leaves export
// off.
func NewDefaultConfig() *Config {
	return &Config{
		Endpoint:        "localhost:4317",
		Protocol:        ProtocolGRPC,
		ServiceName:     "scancap",
		ServiceVersion:  "0.1.0",
		Insecure:        true,
		SampleRate:      1.0,
		Metrics:         MetricsConfig{Enabled: true, ExportInterval: 15 * time.Second},
		ShutdownTimeout: 5 * time.Second,
	}
}

// Validate reports every problem at once. A disabled config is valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	var errs []error
	for key, v := range map[string]string{
		"endpoint":        c.Endpoint,
		"service_name":    c.ServiceName,
		"service_version": c.ServiceVersion,
	} {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s is required when telemetry is enabled", key))
		}
	}
	if c.Protocol != "" && c.Protocol != ProtocolGRPC && c.Protocol != ProtocolHTTP {
		errs = append(errs, fmt.Errorf("unsupported protocol %q, want %s or %s", c.Protocol, ProtocolGRPC, ProtocolHTTP))
	}
	// Plaintext export is limited to this machine.
	if c.Insecure && c.Endpoint != "" && !isLoopback(c.Endpoint) {
		errs = append(errs, errors.New("insecure export to a remote endpoint is not allowed, set insecure=false to use TLS"))
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("sample_rate must be within [0, 1], got %g", c.SampleRate))
	}
	if c.Metrics.Enabled && c.Metrics.ExportInterval <= 0 {
		errs = append(errs, errors.New("metrics.export_interval must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}
	return errors.Join(errs...)
}

// isLoopback reports whether endpoint names localhost or a loopback IP.
func isLoopback(endpoint string) bool {
	host := hostPort(endpoint)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// hostPort drops an http:// or https:// prefix; the OTLP HTTP exporters
// take host:port.
func hostPort(endpoint string) string {
	for _, scheme := range []string{"https://", "http://"} {
		if rest, ok := strings.CutPrefix(endpoint, scheme); ok {
			return rest
		}
	}
	return endpoint
}
