package orchestrator

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/fyrsmithlabs/scancap/internal/gate"
)

// RecordingOptions are device capabilities passed through unchanged.
type RecordingOptions struct {
	PreferredMediaTypes []capture.MediaType `koanf:"preferred_media_types" json:"preferred_media_types"`
	IdealWidth          int                 `koanf:"ideal_width" json:"ideal_width"`
	IdealHeight         int                 `koanf:"ideal_height" json:"ideal_height"`
	FrameRate           int                 `koanf:"frame_rate" json:"frame_rate"`
	BitsPerSecond       int                 `koanf:"bits_per_second" json:"bits_per_second"`
	MaxDuration         time.Duration       `koanf:"max_duration" json:"max_duration"`
	Zoom                float64             `koanf:"zoom" json:"zoom"`
	Torch               bool                `koanf:"torch" json:"torch"`
}

// DefaultRecordingOptions mirrors the capture settings of the browser
// recorder: 1080p at 30 fps, 15 Mbps, stopping automatically after 30s.
func DefaultRecordingOptions() RecordingOptions {
	return RecordingOptions{
		PreferredMediaTypes: []capture.MediaType{
			"video/webm;codecs=vp9",
			"video/webm;codecs=vp8",
			capture.MediaTypeWebM,
			capture.MediaTypeMP4,
		},
		IdealWidth:    1920,
		IdealHeight:   1080,
		FrameRate:     30,
		BitsPerSecond: 15_000_000,
		MaxDuration:   30 * time.Second,
		Zoom:          1,
	}
}

// RecordingRequest asks a device for one recording.
type RecordingRequest struct {
	SessionID string
	Token     AttemptToken
	Options   RecordingOptions
}

// Outcome is the single result of a recording attempt. Exactly one of
// Segment, Abandoned or Err is set.
type Outcome struct {
	Segment   *capture.Segment
	Abandoned bool
	Err       error
}

// Recording is one open device session.
type Recording interface {
	// Outcomes yields at most one Outcome.
	Outcomes() <-chan Outcome

	// Close releases the camera handle. It is idempotent.
	Close() error
}

// Device opens recording sessions.
type Device interface {
	// Open starts a fresh recording. It must not block until the
	// recording finishes.
	Open(ctx context.Context, req RecordingRequest) (Recording, error)
}

// Presenter shows session state to the user.
type Presenter interface {
	ShowTutorial(ctx context.Context, angle capture.Angle)
	ShowRejection(ctx context.Context, angle capture.Angle, errs []string)
	ShowWarnings(ctx context.Context, angle capture.Angle, warnings []string)
	ShowCompleted(ctx context.Context, artifact *capture.Artifact)
	ShowFailure(ctx context.Context, err error)
}

// SegmentGate validates recorded segments.
type SegmentGate interface {
	Check(seg *capture.Segment, minDuration time.Duration) gate.CheckResult
}

// SegmentAssembler combines accepted segments.
type SegmentAssembler interface {
	Assemble(segments []*capture.Segment) (*capture.Artifact, error)
}

// DeliveryRequest hands an artifact downstream.
type DeliveryRequest struct {
	SessionID string
	Owner     string
	Artifact  *capture.Artifact
}

// DeliveryReceipt describes a delivered artifact.
type DeliveryReceipt struct {
	Key       string            `json:"key"`
	Location  string            `json:"location,omitempty"`
	Size      int64             `json:"size"`
	MediaType capture.MediaType `json:"media_type"`
	Notified  bool              `json:"notified"`
}

// Delivery stores or forwards completed artifacts.
type Delivery interface {
	Deliver(ctx context.Context, req DeliveryRequest) (DeliveryReceipt, error)
}

// EventType names a lifecycle event.
type EventType string

const (
	EventSessionStarted    EventType = "session.started"
	EventSegmentAccepted   EventType = "segment.accepted"
	EventSegmentRejected   EventType = "segment.rejected"
	EventAssemblyFailed    EventType = "assembly.failed"
	EventSessionCompleted  EventType = "session.completed"
	EventSessionAbandoned  EventType = "session.abandoned"
	EventSessionFailed     EventType = "session.failed"
	EventDeliverySucceeded EventType = "delivery.succeeded"
	EventDeliveryFailed    EventType = "delivery.failed"
)

// Event is a lifecycle notification.
type Event struct {
	Type      EventType     `json:"type"`
	SessionID string        `json:"session_id"`
	Angle     capture.Angle `json:"angle,omitempty"`
	Attempt   int           `json:"attempt,omitempty"`
	Phase     Phase         `json:"phase"`
	Messages  []string      `json:"messages,omitempty"`
	Artifact  *ArtifactInfo `json:"artifact,omitempty"`
	Error     string        `json:"error,omitempty"`
	Time      time.Time     `json:"time"`
}

// EventRecorder publishes lifecycle events. Errors are logged, never
// propagated into the state machine.
type EventRecorder interface {
	Record(ctx context.Context, ev Event) error
}

// Observer receives measurements. It is implemented by metric backends.
type Observer interface {
	SegmentChecked(ctx context.Context, angle capture.Angle, res gate.CheckResult)
	SessionEnded(ctx context.Context, phase Phase)
	ArtifactAssembled(ctx context.Context, size int64)
}
