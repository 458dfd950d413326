package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/fyrsmithlabs/scancap/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockController struct {
	mock.Mock
}

func (m *MockController) TutorialAcknowledged(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockController) RetryAcknowledged(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockController) RetryAssembly(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockController) Abandon(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func key(s string) tea.KeyMsg {
	if s == "enter" {
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func progress(phase orchestrator.Phase, angle capture.Angle, accepted int) progressMsg {
	return progressMsg(orchestrator.Progress{Phase: phase, Angle: angle, Accepted: accepted})
}

func TestNewModel(t *testing.T) {
	m := NewModel(&MockController{}, NewPresenter())
	assert.Equal(t, orchestrator.PhaseAwaitingTutorial, m.Phase())
	assert.Equal(t, capture.AngleMiddle, m.angle)
	assert.NotNil(t, m.Init())
	assert.Contains(t, m.View(), "Press enter to start recording.")
}

func TestEnter_AcknowledgesTutorial(t *testing.T) {
	ctrl := &MockController{}
	ctrl.On("TutorialAcknowledged", mock.Anything).Return(nil).Once()
	m := NewModel(ctrl, NewPresenter())

	m, cmd := update(t, m, key("enter"))
	require.NotNil(t, cmd)
	assert.True(t, m.busy)

	// A second press while busy is ignored.
	_, again := update(t, m, key("enter"))
	assert.Nil(t, again)

	msg := cmd()
	m, _ = update(t, m, msg)
	assert.False(t, m.busy)
	assert.NoError(t, m.Err())
	ctrl.AssertExpectations(t)
}

func TestKeys_IgnoredInWrongPhase(t *testing.T) {
	ctrl := &MockController{}
	m := NewModel(ctrl, NewPresenter())

	_, cmd := update(t, m, key("r"))
	assert.Nil(t, cmd)
	_, cmd = update(t, m, key("a"))
	assert.Nil(t, cmd)

	m, _ = update(t, m, progress(orchestrator.PhaseRecording, capture.AngleMiddle, 0))
	_, cmd = update(t, m, key("enter"))
	assert.Nil(t, cmd)
	ctrl.AssertNotCalled(t, "TutorialAcknowledged", mock.Anything)
}

func TestRejection_ShowsErrorsAndRetakes(t *testing.T) {
	ctrl := &MockController{}
	ctrl.On("RetryAcknowledged", mock.Anything).Return(nil).Once()
	m := NewModel(ctrl, NewPresenter())

	errs := []string{"Portrait recording detected. Rotate the camera to landscape and record again."}
	m, _ = update(t, m, progress(orchestrator.PhaseRejected, capture.AngleMiddle, 0))
	m, _ = update(t, m, rejectionMsg{angle: capture.AngleMiddle, errors: errs})

	view := m.View()
	assert.Contains(t, view, errs[0])
	assert.Contains(t, view, "Press r to retake.")

	m, cmd := update(t, m, key("r"))
	require.NotNil(t, cmd)
	_, _ = update(t, m, cmd())
	ctrl.AssertExpectations(t)
}

func TestTutorial_ClearsRejectionAndAdvances(t *testing.T) {
	m := NewModel(&MockController{}, NewPresenter())
	m, _ = update(t, m, rejectionMsg{angle: capture.AngleMiddle, errors: []string{"too short"}})
	m, _ = update(t, m, warningsMsg{angle: capture.AngleMiddle, warnings: []string{"720p"}})
	m, _ = update(t, m, progress(orchestrator.PhaseAwaitingTutorial, capture.AngleTop, 1))
	m, _ = update(t, m, tutorialMsg{angle: capture.AngleTop})

	assert.Equal(t, capture.AngleTop, m.angle)
	assert.Empty(t, m.rejections)
	view := m.View()
	assert.Contains(t, view, capture.AngleTop.Title())
	assert.Contains(t, view, "720p")
	assert.Contains(t, view, "1/3 accepted")
}

func TestAssemblyFailure_RetryKey(t *testing.T) {
	ctrl := &MockController{}
	ctrl.On("RetryAssembly", mock.Anything).Return(nil).Once()
	m := NewModel(ctrl, NewPresenter())

	m, _ = update(t, m, progress(orchestrator.PhaseAssembling, capture.AngleBottom, 3))
	_, cmd := update(t, m, key("a"))
	assert.Nil(t, cmd, "retry needs a failure first")

	m, _ = update(t, m, failureMsg{err: errors.New("assembly failed: media type mismatch")})
	assert.Contains(t, m.View(), "Press a to try again.")

	m, cmd = update(t, m, key("a"))
	require.NotNil(t, cmd)
	assert.NoError(t, m.Err())
	_, _ = update(t, m, cmd())
	ctrl.AssertExpectations(t)
}

func TestActionError_IsShown(t *testing.T) {
	ctrl := &MockController{}
	ctrl.On("TutorialAcknowledged", mock.Anything).Return(orchestrator.ErrDeviceUnavailable)
	m := NewModel(ctrl, NewPresenter())

	m, cmd := update(t, m, key("enter"))
	m, _ = update(t, m, cmd())
	require.Error(t, m.Err())
	assert.ErrorIs(t, m.Err(), orchestrator.ErrDeviceUnavailable)
	assert.Contains(t, m.View(), "start recording: recording device unavailable")
}

func TestCompleted_Summary(t *testing.T) {
	m := NewModel(&MockController{}, NewPresenter())
	art := &capture.Artifact{ID: "art-1", Payload: make([]byte, 3*1024*1024), SegmentIDs: []string{"a", "b", "c"}}

	m, _ = update(t, m, progress(orchestrator.PhaseCompleted, capture.AngleBottom, 3))
	m, _ = update(t, m, completedMsg{artifact: art})

	view := m.View()
	assert.Contains(t, view, "Capture complete")
	assert.Contains(t, view, "art-1")
	assert.Contains(t, view, "3.0 MiB")
}

func TestQuit_AbandonsOpenSession(t *testing.T) {
	ctrl := &MockController{}
	ctrl.On("Abandon", mock.Anything).Return(nil).Once()
	m := NewModel(ctrl, NewPresenter())

	m, cmd := update(t, m, key("q"))
	require.NotNil(t, cmd)
	assert.Empty(t, m.View())
	assert.IsType(t, tea.QuitMsg{}, cmd())
	ctrl.AssertExpectations(t)
}

func TestQuit_TerminalDoesNotAbandon(t *testing.T) {
	ctrl := &MockController{}
	m := NewModel(ctrl, NewPresenter())
	m, _ = update(t, m, progress(orchestrator.PhaseAbandoned, capture.AngleMiddle, 0))

	_, cmd := update(t, m, key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	ctrl.AssertNotCalled(t, "Abandon", mock.Anything)
}

func TestPresenter_QueuesInOrder(t *testing.T) {
	p := NewPresenter()
	ctx := context.Background()

	p.Progress(orchestrator.Progress{Phase: orchestrator.PhaseAwaitingTutorial, Angle: capture.AngleMiddle})
	p.ShowTutorial(ctx, capture.AngleMiddle)
	p.ShowRejection(ctx, capture.AngleMiddle, []string{"too short"})

	listen := p.listen()
	assert.IsType(t, progressMsg{}, listen())
	assert.Equal(t, tutorialMsg{angle: capture.AngleMiddle}, listen())
	rej, ok := listen().(rejectionMsg)
	require.True(t, ok)
	assert.Equal(t, []string{"too short"}, rej.errors)
}

func TestPresenter_CloseUnblocks(t *testing.T) {
	p := NewPresenter()
	p.Close()
	p.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < eventBuffer*2; i++ {
			p.ShowFailure(context.Background(), errors.New("boom"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("presenter blocked after Close")
	}
}

func TestPresenter_DrivesModel(t *testing.T) {
	p := NewPresenter()
	m := NewModel(&MockController{}, p)

	p.Progress(orchestrator.Progress{Phase: orchestrator.PhaseRejected, Angle: capture.AngleTop, Accepted: 1})
	p.ShowRejection(context.Background(), capture.AngleTop, []string{"Recording is too short (4.0s). Minimum 12 seconds required."})

	cmd := p.listen()
	for i := 0; i < 2; i++ {
		m, cmd = update(t, m, cmd())
		require.NotNil(t, cmd)
	}
	assert.Equal(t, orchestrator.PhaseRejected, m.Phase())
	assert.Contains(t, m.View(), "Minimum 12 seconds required.")
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatBytes(tt.in))
	}
}
