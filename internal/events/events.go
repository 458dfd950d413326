// Package events publishes capture session lifecycle events.
//
// Events are published to NATS subjects of the form:
//
//	scancap.session.{event}
//
// where {event} is the orchestrator.EventType, for example
// scancap.session.segment.rejected. Payloads are the JSON encoding of
// orchestrator.Event.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/fyrsmithlabs/scancap/internal/orchestrator"
	"github.com/nats-io/nats.go"
)

// SubjectPrefix is prepended to every event type.
const SubjectPrefix = "scancap.session"

// ErrNoConnection is returned when a recorder is built without a NATS connection.
var ErrNoConnection = errors.New("nats connection is required")

// Subject returns the NATS subject for an event type.
func Subject(t orchestrator.EventType) string {
	return SubjectPrefix + "." + string(t)
}

// NATSRecorder publishes events to NATS.
type NATSRecorder struct {
	nc *nats.Conn
}

// NewNATSRecorder creates a recorder publishing on nc.
func NewNATSRecorder(nc *nats.Conn) (*NATSRecorder, error) {
	if nc == nil {
		return nil, ErrNoConnection
	}
	return &NATSRecorder{nc: nc}, nil
}

// Record publishes ev. Publishing is fire-and-forget; a closed or
// draining connection is reported as an error.
func (r *NATSRecorder) Record(ctx context.Context, ev orchestrator.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := r.nc.Publish(Subject(ev.Type), data); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	return nil
}

// NopRecorder discards every event.
type NopRecorder struct{}

// Record implements orchestrator.EventRecorder.
func (NopRecorder) Record(context.Context, orchestrator.Event) error { return nil }

// MemoryRecorder keeps events in memory.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []orchestrator.Event
}

// Record implements orchestrator.EventRecorder.
func (m *MemoryRecorder) Record(_ context.Context, ev orchestrator.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (m *MemoryRecorder) Events() []orchestrator.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]orchestrator.Event, len(m.events))
	copy(out, m.events)
	return out
}

// Types returns the recorded event types in order.
func (m *MemoryRecorder) Types() []orchestrator.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]orchestrator.EventType, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.Type)
	}
	return out
}

// Multi fans an event out to several recorders. All recorders are called;
// their errors are joined.
type Multi []orchestrator.EventRecorder

// Record implements orchestrator.EventRecorder.
func (m Multi) Record(ctx context.Context, ev orchestrator.Event) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ orchestrator.EventRecorder = (*NATSRecorder)(nil)
	_ orchestrator.EventRecorder = NopRecorder{}
	_ orchestrator.EventRecorder = (*MemoryRecorder)(nil)
	_ orchestrator.EventRecorder = Multi(nil)
)
