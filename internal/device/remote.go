package device

import (
	"context"
	"sync"

	"github.com/fyrsmithlabs/scancap/internal/orchestrator"
)

// RemoteDevice stands in for a camera on a remote client. Open only arms
// the attempt; the client uploads the finished recording through the
// session API, which hands it to Orchestrator.RecordingFinished with the
// armed token.
type RemoteDevice struct {
	mu    sync.Mutex
	armed *remoteRecording
}

// NewRemoteDevice creates a RemoteDevice.
func NewRemoteDevice() *RemoteDevice {
	return &RemoteDevice{}
}

// Open arms req.Token, replacing any previously armed attempt.
func (d *RemoteDevice) Open(_ context.Context, req orchestrator.RecordingRequest) (orchestrator.Recording, error) {
	rec := &remoteRecording{
		device: d,
		token:  req.Token,
		out:    make(chan orchestrator.Outcome, 1),
	}
	d.mu.Lock()
	prev := d.armed
	d.armed = rec
	d.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	return rec, nil
}

// Armed returns the token of the open attempt.
func (d *RemoteDevice) Armed() (orchestrator.AttemptToken, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.armed == nil {
		return orchestrator.AttemptToken{}, false
	}
	return d.armed.token, true
}

// Cancel reports that the client gave up on the armed attempt. It returns
// false when token is not armed.
func (d *RemoteDevice) Cancel(token orchestrator.AttemptToken) bool {
	d.mu.Lock()
	rec := d.armed
	d.mu.Unlock()
	if rec == nil || rec.token != token {
		return false
	}
	select {
	case rec.out <- orchestrator.Outcome{Abandoned: true}:
		return true
	default:
		return false
	}
}

type remoteRecording struct {
	device *RemoteDevice
	token  orchestrator.AttemptToken
	out    chan orchestrator.Outcome
	once   sync.Once
}

func (r *remoteRecording) Outcomes() <-chan orchestrator.Outcome { return r.out }

func (r *remoteRecording) Close() error {
	r.once.Do(func() {
		r.device.mu.Lock()
		if r.device.armed == r {
			r.device.armed = nil
		}
		r.device.mu.Unlock()
	})
	return nil
}
