package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MetadataProber reads container metadata from a recorded payload.
// Implementations live in package probe.
type MetadataProber interface {
	Probe(ctx context.Context, mediaType MediaType, payload []byte) (Metadata, error)
}

// Segment is one raw recording attempt for a single angle.
//
// Segments are immutable. Payload returns the underlying bytes without
// copying; callers must treat them as read-only.
type Segment struct {
	id         string
	angle      Angle
	mediaType  MediaType
	payload    []byte
	metadata   Metadata
	probeErr   error
	recordedAt time.Time
}

// NewSegment builds a segment whose metadata is already known, for example
// when the recorder reports it directly.
func NewSegment(angle Angle, mediaType MediaType, payload []byte, md Metadata) (*Segment, error) {
	if !angle.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAngle, int(angle))
	}
	return &Segment{
		id:         uuid.New().String(),
		angle:      angle,
		mediaType:  mediaType,
		payload:    payload,
		metadata:   md,
		recordedAt: time.Now(),
	}, nil
}

// ProbeSegment builds a segment and reads its metadata once from the payload.
//
// A probe failure does not fail construction: the error is kept on the
// segment so the quality gate can report it as a rejection.
func ProbeSegment(ctx context.Context, angle Angle, mediaType MediaType, payload []byte, prober MetadataProber) (*Segment, error) {
	if !angle.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAngle, int(angle))
	}
	seg := &Segment{
		id:         uuid.New().String(),
		angle:      angle,
		mediaType:  mediaType,
		payload:    payload,
		recordedAt: time.Now(),
	}
	if len(payload) == 0 {
		seg.probeErr = fmt.Errorf("%w: %w", ErrProbeFailed, ErrEmptyPayload)
		return seg, nil
	}
	md, err := prober.Probe(ctx, mediaType, payload)
	if err != nil {
		seg.probeErr = fmt.Errorf("%w: %w", ErrProbeFailed, err)
		return seg, nil
	}
	seg.metadata = md
	return seg, nil
}

func (s *Segment) ID() string            { return s.id }
func (s *Segment) Angle() Angle          { return s.angle }
func (s *Segment) MediaType() MediaType  { return s.mediaType }
func (s *Segment) Payload() []byte       { return s.payload }
func (s *Segment) ByteSize() int64       { return int64(len(s.payload)) }
func (s *Segment) Metadata() Metadata    { return s.metadata }
func (s *Segment) RecordedAt() time.Time { return s.recordedAt }

// ProbeErr returns the error recorded while reading metadata, if any.
func (s *Segment) ProbeErr() error { return s.probeErr }

// Artifact is the combined output handed to delivery.
type Artifact struct {
	ID         string    `json:"id"`
	MediaType  MediaType `json:"media_type"`
	Payload    []byte    `json:"-"`
	SegmentIDs []string  `json:"segment_ids"`
	CreatedAt  time.Time `json:"created_at"`
}

// Size returns the payload length in bytes.
func (a *Artifact) Size() int64 {
	if a == nil {
		return 0
	}
	return int64(len(a.Payload))
}
