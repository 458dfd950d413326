// Package probe reads container metadata (dimensions and duration) from
// recorded video payloads.
package probe

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/scancap/internal/capture"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const instrumentationName = "github.com/fyrsmithlabs/scancap/internal/probe"

var (
	// ErrNoVideoTrack is returned when the container has no video track.
	ErrNoVideoTrack = errors.New("no video track")

	// ErrUnknownDuration is returned when neither the container nor any
	// track states a duration.
	ErrUnknownDuration = errors.New("duration unknown")

	// ErrTypeMismatch is returned when the payload bytes contradict the
	// declared media type.
	ErrTypeMismatch = errors.New("payload does not match declared media type")
)

// Prober reads metadata from a payload.
type Prober interface {
	Probe(ctx context.Context, mediaType capture.MediaType, payload []byte) (capture.Metadata, error)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, mediaType capture.MediaType, payload []byte) (capture.Metadata, error)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, mediaType capture.MediaType, payload []byte) (capture.Metadata, error) {
	return f(ctx, mediaType, payload)
}

// Chain routes payloads to a prober by container family. ISO base media
// files go to the native MP4 reader and everything else to the fallback,
// which is usually ffprobe.
type Chain struct {
	mp4      Prober
	fallback Prober
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithFallback sets the prober used for non-MP4 containers.
func WithFallback(p Prober) ChainOption {
	return func(c *Chain) {
		c.fallback = p
	}
}

// NewChain creates a chain using MP4Prober for ISO base media files.
func NewChain(opts ...ChainOption) *Chain {
	c := &Chain{mp4: NewMP4Prober()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Probe implements Prober. Every returned error wraps capture.ErrProbeFailed.
func (c *Chain) Probe(ctx context.Context, mediaType capture.MediaType, payload []byte) (capture.Metadata, error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "probe.metadata")
	defer span.End()
	span.SetAttributes(
		attribute.String("media.type", string(mediaType)),
		attribute.Int("media.bytes", len(payload)),
	)

	md, err := c.probe(ctx, mediaType, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "probe failed")
		return capture.Metadata{}, fmt.Errorf("%w: %w", capture.ErrProbeFailed, err)
	}
	span.SetAttributes(
		attribute.Int("video.width", md.Width),
		attribute.Int("video.height", md.Height),
		attribute.Float64("video.duration_seconds", md.DurationSeconds()),
	)
	return md, nil
}

func (c *Chain) probe(ctx context.Context, mediaType capture.MediaType, payload []byte) (capture.Metadata, error) {
	if len(payload) == 0 {
		return capture.Metadata{}, capture.ErrEmptyPayload
	}
	sniffed, err := Sniff(payload)
	if err != nil {
		return capture.Metadata{}, err
	}
	if mediaType != "" && family(mediaType) != family(sniffed) {
		return capture.Metadata{}, fmt.Errorf("%w: declared %s, detected %s", ErrTypeMismatch, mediaType.Container(), sniffed)
	}

	if family(sniffed) == familyISO {
		return c.mp4.Probe(ctx, sniffed, payload)
	}
	if c.fallback == nil {
		return capture.Metadata{}, fmt.Errorf("%w: %s", capture.ErrUnsupportedMedia, sniffed)
	}
	return c.fallback.Probe(ctx, sniffed, payload)
}
