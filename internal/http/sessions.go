package http

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fyrsmithlabs/scancap/internal/device"
	"github.com/fyrsmithlabs/scancap/internal/orchestrator"
)

var (
	// ErrNoSession is returned when no capture session exists.
	ErrNoSession = errors.New("no capture session")

	// ErrSessionActive is returned when starting a session while another
	// one is still running.
	ErrSessionActive = errors.New("a capture session is already active")
)

// Factory builds a session around the given device.
type Factory func(dev orchestrator.Device) (*orchestrator.Orchestrator, error)

// Session is the active orchestrator and the remote device feeding it.
type Session struct {
	Orchestrator *orchestrator.Orchestrator
	Device       *device.RemoteDevice
}

// Sessions holds the single session of a daemon.
type Sessions struct {
	factory Factory

	mu     sync.Mutex
	active *Session
}

// NewSessions creates a manager using factory for each new session.
func NewSessions(factory Factory) *Sessions {
	return &Sessions{factory: factory}
}

// Start creates and starts a new session. A terminal session is replaced
// silently; a running one only when replace is set, in which case it is
// abandoned.
func (s *Sessions) Start(ctx context.Context, replace bool) (*Session, error) {
	s.mu.Lock()
	prev := s.active
	if prev != nil && !prev.Orchestrator.Snapshot().Phase.IsTerminal() && !replace {
		s.mu.Unlock()
		return nil, ErrSessionActive
	}

	dev := device.NewRemoteDevice()
	orch, err := s.factory(dev)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := orch.Start(ctx); err != nil {
		s.mu.Unlock()
		_ = orch.Close()
		return nil, err
	}
	sess := &Session{Orchestrator: orch, Device: dev}
	s.active = sess
	s.mu.Unlock()

	// Close waits for background delivery; keep it outside the lock.
	if prev != nil {
		_ = prev.Orchestrator.Close()
	}
	return sess, nil
}

// Current returns the active session.
func (s *Sessions) Current() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil, ErrNoSession
	}
	return s.active, nil
}

// Close closes the active session, if any.
func (s *Sessions) Close() error {
	s.mu.Lock()
	sess := s.active
	s.active = nil
	s.mu.Unlock()
	if sess == nil {
		return nil
	}
	return sess.Orchestrator.Close()
}
