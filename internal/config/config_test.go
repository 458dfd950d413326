package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/fyrsmithlabs/scancap/internal/gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:9190", cfg.Server.Addr())
	assert.Equal(t, 12*time.Second, cfg.Capture.MinDuration.Duration())
	assert.Equal(t, "guest", cfg.Capture.Owner)
	assert.True(t, cfg.Capture.AutoDeliver)
	assert.Equal(t, gate.DefaultThresholds(), cfg.Gate)
	assert.Equal(t, DeviceRemote, cfg.Device.Kind)
	assert.False(t, cfg.NATS.Enabled)
	assert.Equal(t, "scancap", cfg.Telemetry.ServiceName)
}

func TestCaptureConfig_Orchestrator(t *testing.T) {
	cfg := Default()
	cfg.Capture.MinDuration = Duration(20 * time.Second)
	cfg.Capture.Owner = "user-9"

	oc := cfg.Capture.Orchestrator()
	assert.Equal(t, 20*time.Second, oc.MinDuration)
	assert.Equal(t, "user-9", oc.Owner)
	assert.True(t, oc.AutoDeliver)
	assert.Equal(t, 1920, oc.Recording.IdealWidth)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "shutdown_timeout"},
		{"upload size", func(c *Config) { c.Server.MaxUploadBytes = 0 }, "max_upload_bytes"},
		{"upload rate", func(c *Config) { c.Server.UploadRate = 0 }, "upload_rate"},
		{"min duration", func(c *Config) { c.Capture.MinDuration = 0 }, "capture.min_duration"},
		{"gate thresholds", func(c *Config) { c.Gate.MinHeight = 0 }, "gate"},
		{"unknown device", func(c *Config) { c.Device.Kind = "usb" }, "unknown device.kind"},
		{"inbox without dir", func(c *Config) {
			c.Device.Kind = DeviceInbox
			c.Device.InboxDir = ""
		}, "inbox_dir is required"},
		{"inbox traversal", func(c *Config) { c.Device.InboxDir = "/data/../etc" }, "must not contain"},
		{"delivery dir", func(c *Config) { c.Delivery.Dir = "" }, "delivery.dir is required"},
		{"delivery traversal", func(c *Config) { c.Delivery.Dir = "../../out" }, "must not contain"},
		{"nats scheme", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.URL = "http://localhost:4222"
		}, "scheme"},
		{"nats host", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.URL = "nats://"
		}, "no host"},
		{"logging level", func(c *Config) { c.Logging.Level = "loud" }, "logging"},
		{"telemetry", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Endpoint = ""
		}, "telemetry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_ValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Delivery.Dir = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port")
	assert.Contains(t, err.Error(), "delivery.dir is required")
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("12s")))
	assert.Equal(t, 12*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))

	text, err := Duration(1500 * time.Millisecond).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1.5s", string(text))
}

func TestSecret_Redacts(t *testing.T) {
	s := Secret("s3cr3t")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "s3cr3t", s.Value())
	assert.True(t, s.IsSet())

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(data))

	assert.Empty(t, Secret("").String())
	assert.False(t, Secret("").IsSet())
}

func TestDuration_BareSeconds(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("15")))
	assert.Equal(t, 15*time.Second, d.Duration())

	require.NoError(t, d.UnmarshalText([]byte(" 2.5 ")))
	assert.Equal(t, 2500*time.Millisecond, d.Duration())
}

func TestSecret_Formatting(t *testing.T) {
	s := Secret("s3cr3t")
	assert.Equal(t, "config.Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))

	var parsed Secret
	require.NoError(t, parsed.UnmarshalText([]byte(" tok \n")))
	assert.Equal(t, "tok", parsed.Value())
}
