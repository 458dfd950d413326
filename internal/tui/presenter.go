// Package tui is the terminal front end of scanctl capture.
//
// The orchestrator calls Presenter methods while holding its own lock, so
// the Presenter never touches the UI directly: it queues messages that the
// Bubble Tea model picks up one at a time. Key presses call back into the
// orchestrator from tea.Cmd goroutines, never from Update.
package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/fyrsmithlabs/scancap/internal/orchestrator"
)

const eventBuffer = 32

type (
	tutorialMsg struct{ angle capture.Angle }
	rejectionMsg struct {
		angle  capture.Angle
		errors []string
	}
	warningsMsg struct {
		angle    capture.Angle
		warnings []string
	}
	completedMsg struct{ artifact *capture.Artifact }
	failureMsg   struct{ err error }
	progressMsg  orchestrator.Progress
)

// Presenter forwards orchestrator callbacks to a running Model.
type Presenter struct {
	events    chan tea.Msg
	done      chan struct{}
	closeOnce sync.Once
}

var _ orchestrator.Presenter = (*Presenter)(nil)

// NewPresenter creates a Presenter. Pass Progress to
// orchestrator.WithProgress so the model follows phase changes.
func NewPresenter() *Presenter {
	return &Presenter{
		events: make(chan tea.Msg, eventBuffer),
		done:   make(chan struct{}),
	}
}

func (p *Presenter) send(msg tea.Msg) {
	select {
	case p.events <- msg:
	case <-p.done:
	}
}

func (p *Presenter) ShowTutorial(_ context.Context, angle capture.Angle) {
	p.send(tutorialMsg{angle: angle})
}

func (p *Presenter) ShowRejection(_ context.Context, angle capture.Angle, errs []string) {
	p.send(rejectionMsg{angle: angle, errors: append([]string(nil), errs...)})
}

func (p *Presenter) ShowWarnings(_ context.Context, angle capture.Angle, warnings []string) {
	p.send(warningsMsg{angle: angle, warnings: append([]string(nil), warnings...)})
}

func (p *Presenter) ShowCompleted(_ context.Context, artifact *capture.Artifact) {
	p.send(completedMsg{artifact: artifact})
}

func (p *Presenter) ShowFailure(_ context.Context, err error) {
	p.send(failureMsg{err: err})
}

// Progress is an orchestrator.ProgressCallback.
func (p *Presenter) Progress(pr orchestrator.Progress) {
	p.send(progressMsg(pr))
}

// Close stops delivery. Later callbacks are dropped instead of blocking
// the orchestrator.
func (p *Presenter) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}

// listen waits for the next queued message.
func (p *Presenter) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-p.events:
			return msg
		case <-p.done:
			return nil
		}
	}
}
