package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fyrsmithlabs/scancap/internal/assembler"
	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/fyrsmithlabs/scancap/internal/gate"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const segmentBytes = 2 * 1024 * 1024

type fakeRecording struct {
	req    RecordingRequest
	out    chan Outcome
	mu     sync.Mutex
	closed bool
}

func (r *fakeRecording) Outcomes() <-chan Outcome { return r.out }

func (r *fakeRecording) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeRecording) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

type fakeDevice struct {
	mu      sync.Mutex
	openErr error
	opened  []*fakeRecording
}

func (d *fakeDevice) Open(_ context.Context, req RecordingRequest) (Recording, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	rec := &fakeRecording{req: req, out: make(chan Outcome, 1)}
	d.opened = append(d.opened, rec)
	return rec, nil
}

func (d *fakeDevice) last() *fakeRecording {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.opened) == 0 {
		return nil
	}
	return d.opened[len(d.opened)-1]
}

func (d *fakeDevice) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.opened)
}

type presenterCall struct {
	method   string
	angle    capture.Angle
	messages []string
}

type fakePresenter struct {
	mu    sync.Mutex
	calls []presenterCall
}

func (p *fakePresenter) add(c presenterCall) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, c)
}

func (p *fakePresenter) ShowTutorial(_ context.Context, a capture.Angle) {
	p.add(presenterCall{method: "tutorial", angle: a})
}

func (p *fakePresenter) ShowRejection(_ context.Context, a capture.Angle, errs []string) {
	p.add(presenterCall{method: "rejection", angle: a, messages: errs})
}

func (p *fakePresenter) ShowWarnings(_ context.Context, a capture.Angle, w []string) {
	p.add(presenterCall{method: "warnings", angle: a, messages: w})
}

func (p *fakePresenter) ShowCompleted(_ context.Context, _ *capture.Artifact) {
	p.add(presenterCall{method: "completed"})
}

func (p *fakePresenter) ShowFailure(_ context.Context, err error) {
	p.add(presenterCall{method: "failure", messages: []string{err.Error()}})
}

func (p *fakePresenter) methods() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	for i, c := range p.calls {
		out[i] = c.method
	}
	return out
}

func (p *fakePresenter) lastCall() presenterCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[len(p.calls)-1]
}

type memoryEvents struct {
	mu     sync.Mutex
	events []Event
}

func (m *memoryEvents) Record(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memoryEvents) types() []EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EventType, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.Type
	}
	return out
}

// MockDelivery is a mock implementation of Delivery.
type MockDelivery struct {
	mock.Mock
}

func (m *MockDelivery) Deliver(ctx context.Context, req DeliveryRequest) (DeliveryReceipt, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(DeliveryReceipt), args.Error(1)
}

type flakyAssembler struct {
	failures int
	inner    *assembler.Assembler
}

func (a *flakyAssembler) Assemble(segs []*capture.Segment) (*capture.Artifact, error) {
	if a.failures > 0 {
		a.failures--
		return nil, errors.New("disk full")
	}
	return a.inner.Assemble(segs)
}

type harness struct {
	orch      *Orchestrator
	device    *fakeDevice
	presenter *fakePresenter
	events    *memoryEvents
}

func newHarness(t *testing.T, cfg Config, mutate func(*Deps)) *harness {
	t.Helper()
	h := &harness{
		device:    &fakeDevice{},
		presenter: &fakePresenter{},
		events:    &memoryEvents{},
	}
	deps := Deps{
		Device:    h.device,
		Presenter: h.presenter,
		Gate:      gate.NewDefault(),
		Assembler: assembler.New(),
		Events:    h.events,
	}
	if mutate != nil {
		mutate(&deps)
	}
	o, err := New(cfg, deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	h.orch = o
	return h
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AutoDeliver = false
	return cfg
}

func newSeg(t *testing.T, angle capture.Angle, w, h int, d time.Duration) *capture.Segment {
	t.Helper()
	seg, err := capture.NewSegment(angle, capture.MediaTypeMP4, make([]byte, segmentBytes),
		capture.Metadata{Width: w, Height: h, Duration: d})
	require.NoError(t, err)
	return seg
}

func goodSeg(t *testing.T, angle capture.Angle) *capture.Segment {
	return newSeg(t, angle, 1920, 1080, 15*time.Second)
}

// arm acknowledges the tutorial and returns the live token.
func (h *harness) arm(t *testing.T) AttemptToken {
	t.Helper()
	require.NoError(t, h.orch.TutorialAcknowledged(context.Background()))
	snap := h.orch.Snapshot()
	require.Equal(t, PhaseRecording, snap.Phase)
	require.NotNil(t, snap.Token)
	return *snap.Token
}

// finish records seg for the live attempt.
func (h *harness) finish(t *testing.T, seg *capture.Segment) gate.CheckResult {
	t.Helper()
	snap := h.orch.Snapshot()
	require.NotNil(t, snap.Token)
	res, err := h.orch.RecordingFinished(context.Background(), *snap.Token, seg)
	require.NoError(t, err)
	return res
}
