package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/fyrsmithlabs/scancap/internal/gate"
)

// Phase is a state of the capture state machine.
type Phase string

const (
	PhaseAwaitingTutorial Phase = "awaiting_tutorial"
	PhaseRecording        Phase = "recording"
	PhaseValidating       Phase = "validating"
	PhaseRejected         Phase = "rejected"
	PhaseAssembling       Phase = "assembling"
	PhaseCompleted        Phase = "completed"
	PhaseAbandoned        Phase = "abandoned"
	PhaseFailed           Phase = "failed"
)

// ValidTransitions defines allowed phase transitions.
var ValidTransitions = map[Phase][]Phase{
	PhaseAwaitingTutorial: {PhaseRecording, PhaseAbandoned, PhaseFailed},
	PhaseRecording:        {PhaseValidating, PhaseAbandoned, PhaseFailed},
	PhaseValidating:       {PhaseAwaitingTutorial, PhaseRejected, PhaseAssembling, PhaseFailed},
	PhaseRejected:         {PhaseRecording, PhaseAbandoned, PhaseFailed},
	PhaseAssembling:       {PhaseCompleted, PhaseAbandoned},
	PhaseCompleted:        {}, // terminal
	PhaseAbandoned:        {}, // terminal
	PhaseFailed:           {}, // terminal
}

// CanTransitionTo checks if a transition from p to target is valid.
func (p Phase) CanTransitionTo(target Phase) bool {
	for _, t := range ValidTransitions[p] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if this is a terminal phase.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseAbandoned || p == PhaseFailed
}

var (
	// ErrDeviceUnavailable means the recording device could not be opened or
	// failed while recording. It is fatal to the session.
	ErrDeviceUnavailable = errors.New("recording device unavailable")

	// ErrStaleRecording is returned for an outcome whose attempt token no
	// longer matches the live attempt.
	ErrStaleRecording = errors.New("stale recording")

	// ErrNotStarted is returned when an action arrives before Start.
	ErrNotStarted = errors.New("session not started")

	// ErrAlreadyStarted is returned by a second Start call.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrAssemblyFailed wraps assembler errors surfaced to callers.
	ErrAssemblyFailed = errors.New("assembly failed")

	// ErrNoDelivery is returned by Deliver when no Delivery is configured.
	ErrNoDelivery = errors.New("no delivery configured")

	// ErrDeliveryInProgress is returned while a delivery is running.
	ErrDeliveryInProgress = errors.New("delivery in progress")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("orchestrator closed")

	// ErrCloseTimeout is returned by Close when background work ignored
	// cancellation.
	ErrCloseTimeout = errors.New("background work did not stop")
)

// TransitionError reports an action that is not allowed in the current phase.
type TransitionError struct {
	Action string
	From   Phase
	To     Phase
}

func (e *TransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("%s not allowed in phase %s", e.Action, e.From)
	}
	return fmt.Sprintf("%s: cannot transition from %s to %s", e.Action, e.From, e.To)
}

// AttemptToken identifies one recording attempt. Attempt increases
// monotonically across the whole session.
type AttemptToken struct {
	Angle   capture.Angle `json:"angle"`
	Attempt int           `json:"attempt"`
}

// DeliveryStatus is the outcome of handing the artifact to Delivery.
type DeliveryStatus struct {
	Receipt     *DeliveryReceipt `json:"receipt,omitempty"`
	Err         string           `json:"error,omitempty"`
	CompletedAt time.Time        `json:"completed_at"`
}

// Succeeded reports whether delivery finished without error.
func (d *DeliveryStatus) Succeeded() bool {
	return d != nil && d.Err == "" && d.Receipt != nil
}

// ArtifactInfo describes the completed artifact without its payload.
type ArtifactInfo struct {
	ID         string            `json:"id"`
	MediaType  capture.MediaType `json:"media_type"`
	Size       int64             `json:"size"`
	SegmentIDs []string          `json:"segment_ids"`
	CreatedAt  time.Time         `json:"created_at"`
}

func artifactInfo(a *capture.Artifact) *ArtifactInfo {
	if a == nil {
		return nil
	}
	return &ArtifactInfo{
		ID:         a.ID,
		MediaType:  a.MediaType,
		Size:       a.Size(),
		SegmentIDs: append([]string(nil), a.SegmentIDs...),
		CreatedAt:  a.CreatedAt,
	}
}

// Session is a point-in-time copy of the orchestrator state.
type Session struct {
	ID        string        `json:"id"`
	Angle     capture.Angle `json:"angle"`
	Phase     Phase         `json:"phase"`
	Attempt   int           `json:"attempt"`
	Accepted  int           `json:"accepted"`
	Token     *AttemptToken `json:"token,omitempty"`

	// LastCheck is the gate result of the most recent validated segment.
	LastCheck *gate.CheckResult `json:"last_check,omitempty"`

	// LastErrors holds the blocking messages while in PhaseRejected.
	LastErrors []string `json:"last_errors,omitempty"`

	// Err is the fatal device or assembly error, if any.
	Err string `json:"error,omitempty"`

	Artifact  *ArtifactInfo   `json:"artifact,omitempty"`
	Delivery  *DeliveryStatus `json:"delivery,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Progress is emitted on every phase change.
type Progress struct {
	SessionID string        `json:"session_id"`
	Phase     Phase         `json:"phase"`
	Angle     capture.Angle `json:"angle"`
	Attempt   int           `json:"attempt"`
	Accepted  int           `json:"accepted"`
}

// ProgressCallback receives progress updates.
type ProgressCallback func(Progress)
