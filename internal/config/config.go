// Package config loads scancap configuration.
//
// Configuration is assembled from hardcoded defaults, an optional YAML file
// and SCANCAP_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fyrsmithlabs/scancap/internal/gate"
	"github.com/fyrsmithlabs/scancap/internal/logging"
	"github.com/fyrsmithlabs/scancap/internal/orchestrator"
	"github.com/fyrsmithlabs/scancap/internal/telemetry"
)

// Device kinds.
const (
	DeviceInbox  = "inbox"
	DeviceRemote = "remote"
)

// Config holds the complete scancap configuration.
type Config struct {
	Server    ServerConfig      `koanf:"server"`
	Capture   CaptureConfig     `koanf:"capture"`
	Gate      gate.Thresholds   `koanf:"gate"`
	Device    DeviceConfig      `koanf:"device"`
	Delivery  DeliveryConfig    `koanf:"delivery"`
	NATS      NATSConfig        `koanf:"nats"`
	Logging   *logging.Config   `koanf:"logging"`
	Telemetry *telemetry.Config `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	MaxUploadBytes  int64    `koanf:"max_upload_bytes"`
	UploadRate      float64  `koanf:"upload_rate"` // uploads per second
	UploadBurst     int      `koanf:"upload_burst"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CaptureConfig holds session settings.
type CaptureConfig struct {
	MinDuration Duration                      `koanf:"min_duration"`
	Owner       string                        `koanf:"owner"`
	AutoDeliver bool                          `koanf:"auto_deliver"`
	Recording   orchestrator.RecordingOptions `koanf:"recording"`
}

// Orchestrator converts the section to an orchestrator.Config.
func (c CaptureConfig) Orchestrator() orchestrator.Config {
	return orchestrator.Config{
		MinDuration: c.MinDuration.Duration(),
		Owner:       c.Owner,
		Recording:   c.Recording,
		AutoDeliver: c.AutoDeliver,
	}
}

// DeviceConfig selects and configures the recording device.
type DeviceConfig struct {
	Kind         string   `koanf:"kind"`
	InboxDir     string   `koanf:"inbox_dir"`
	SettleDelay  Duration `koanf:"settle_delay"`
	FFProbePath  string   `koanf:"ffprobe_path"`
	ProbeTimeout Duration `koanf:"probe_timeout"`
}

// DeliveryConfig configures artifact hand-off.
type DeliveryConfig struct {
	Dir          string `koanf:"dir"`
	Notify       bool   `koanf:"notify"`
	StrictNotify bool   `koanf:"strict_notify"`
}

// NATSConfig configures the NATS connection used for events and
// artifact notifications.
type NATSConfig struct {
	Enabled       bool     `koanf:"enabled"`
	URL           string   `koanf:"url"`
	Token         Secret   `koanf:"token"`
	MaxReconnects int      `koanf:"max_reconnects"`
	ReconnectWait Duration `koanf:"reconnect_wait"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            9190,
			ShutdownTimeout: Duration(10 * time.Second),
			MaxUploadBytes:  512 << 20,
			UploadRate:      1,
			UploadBurst:     3,
		},
		Capture: CaptureConfig{
			MinDuration: Duration(gate.DefaultMinDuration),
			Owner:       "guest",
			AutoDeliver: true,
			Recording:   orchestrator.DefaultRecordingOptions(),
		},
		Gate: gate.DefaultThresholds(),
		Device: DeviceConfig{
			Kind:         DeviceRemote,
			InboxDir:     "~/.local/share/scancap/inbox",
			SettleDelay:  Duration(2 * time.Second),
			FFProbePath:  "ffprobe",
			ProbeTimeout: Duration(10 * time.Second),
		},
		Delivery: DeliveryConfig{
			Dir:    "~/.local/share/scancap/artifacts",
			Notify: true,
		},
		NATS: NATSConfig{
			Enabled:       false,
			URL:           "nats://localhost:4222",
			MaxReconnects: 5,
			ReconnectWait: Duration(time.Second),
		},
		Logging:   logging.NewDefaultConfig(),
		Telemetry: telemetry.NewDefaultConfig(),
	}
}

// Validate checks every section and joins the failures.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must be positive"))
	}
	if c.Server.UploadRate <= 0 || c.Server.UploadBurst < 1 {
		errs = append(errs, errors.New("server.upload_rate and server.upload_burst must be positive"))
	}

	if err := gate.CheckMinDuration(c.Capture.MinDuration.Duration()); err != nil {
		errs = append(errs, fmt.Errorf("capture.min_duration: %w", err))
	}
	if err := c.Gate.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("gate: %w", err))
	}

	switch c.Device.Kind {
	case DeviceRemote:
	case DeviceInbox:
		if c.Device.InboxDir == "" {
			errs = append(errs, errors.New("device.inbox_dir is required for the inbox device"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown device.kind %q (use %s or %s)", c.Device.Kind, DeviceInbox, DeviceRemote))
	}
	if err := validatePath("device.inbox_dir", c.Device.InboxDir); err != nil {
		errs = append(errs, err)
	}

	if c.Delivery.Dir == "" {
		errs = append(errs, errors.New("delivery.dir is required"))
	} else if err := validatePath("delivery.dir", c.Delivery.Dir); err != nil {
		errs = append(errs, err)
	}

	if c.NATS.Enabled {
		if err := validateNATSURL(c.NATS.URL); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("logging: %w", err))
		}
	}
	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: %w", err))
		}
	}

	return errors.Join(errs...)
}

// validatePath rejects relative traversal in configured directories.
func validatePath(field, p string) error {
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return fmt.Errorf("%s must not contain '..': %s", field, p)
		}
	}
	return nil
}

func validateNATSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid nats.url: %w", err)
	}
	switch u.Scheme {
	case "nats", "tls", "ws", "wss":
	default:
		return fmt.Errorf("invalid nats.url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("nats.url has no host: %s", raw)
	}
	return nil
}
