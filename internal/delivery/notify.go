package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/fyrsmithlabs/scancap/internal/orchestrator"
	"github.com/nats-io/nats.go"
)

// ArtifactReadySubject is the NATS subject announcing stored artifacts.
const ArtifactReadySubject = "scancap.artifact.ready"

// ArtifactReady is published after an artifact has been stored.
type ArtifactReady struct {
	SessionID  string            `json:"session_id"`
	Owner      string            `json:"owner"`
	ArtifactID string            `json:"artifact_id"`
	Key        string            `json:"key"`
	Location   string            `json:"location,omitempty"`
	Size       int64             `json:"size"`
	MediaType  capture.MediaType `json:"media_type"`
	SegmentIDs []string          `json:"segment_ids"`
	StoredAt   time.Time         `json:"stored_at"`
}

// Notifier publishes ArtifactReady events.
type Notifier struct {
	nc      *nats.Conn
	subject string
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithSubject overrides ArtifactReadySubject.
func WithSubject(subject string) NotifierOption {
	return func(n *Notifier) {
		if subject != "" {
			n.subject = subject
		}
	}
}

// NewNotifier creates a notifier publishing on nc.
func NewNotifier(nc *nats.Conn, opts ...NotifierOption) (*Notifier, error) {
	if nc == nil {
		return nil, fmt.Errorf("notifier: nats connection is required")
	}
	n := &Notifier{nc: nc, subject: ArtifactReadySubject}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Subject returns the subject events are published to.
func (n *Notifier) Subject() string { return n.subject }

// Notify publishes the ready event for a stored artifact.
func (n *Notifier) Notify(ctx context.Context, req orchestrator.DeliveryRequest, receipt orchestrator.DeliveryReceipt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev := ArtifactReady{
		SessionID: req.SessionID,
		Owner:     req.Owner,
		Key:       receipt.Key,
		Location:  receipt.Location,
		Size:      receipt.Size,
		MediaType: receipt.MediaType,
		StoredAt:  time.Now().UTC(),
	}
	if req.Artifact != nil {
		ev.ArtifactID = req.Artifact.ID
		ev.SegmentIDs = append([]string(nil), req.Artifact.SegmentIDs...)
	}
	if ev.Owner == "" {
		ev.Owner = DefaultOwner
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal artifact ready: %w", err)
	}
	if err := n.nc.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish artifact ready: %w", err)
	}
	return nil
}
