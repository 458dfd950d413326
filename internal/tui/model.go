package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/fyrsmithlabs/scancap/internal/orchestrator"
)

// Controller is the part of the orchestrator driven by key presses.
type Controller interface {
	TutorialAcknowledged(ctx context.Context) error
	RetryAcknowledged(ctx context.Context) error
	RetryAssembly(ctx context.Context) error
	Abandon(ctx context.Context) error
}

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("46")).
		Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)
)

// actionMsg reports the result of a controller call.
type actionMsg struct {
	action string
	err    error
}

// Model is the Bubble Tea model of one capture session.
type Model struct {
	ctrl      Controller
	presenter *Presenter
	spinner   spinner.Model

	phase      orchestrator.Phase
	angle      capture.Angle
	accepted   int
	rejections []string
	warnings   []string
	artifact   *capture.Artifact
	err        error
	busy       bool
	quitting   bool
}

// NewModel creates a model driving ctrl and fed by p.
func NewModel(ctrl Controller, p *Presenter) Model {
	return Model{
		ctrl:      ctrl,
		presenter: p,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("51"))),
		),
		phase: orchestrator.PhaseAwaitingTutorial,
		angle: capture.AngleMiddle,
	}
}

// Phase returns the last phase the model saw.
func (m Model) Phase() orchestrator.Phase {
	return m.phase
}

// Err returns the last failure shown, if any.
func (m Model) Err() error {
	return m.err
}

// Init starts the spinner and the presenter listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.presenter.listen())
}

// act runs fn off the UI goroutine.
func (m Model) act(action string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{action: action, err: fn(context.Background())}
	}
}

// Update handles key presses, presenter callbacks and action results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressMsg:
		m.phase, m.angle, m.accepted = msg.Phase, msg.Angle, msg.Accepted
		return m, m.presenter.listen()

	case tutorialMsg:
		m.angle = msg.angle
		m.rejections = nil
		return m, m.presenter.listen()

	case rejectionMsg:
		m.angle = msg.angle
		m.rejections = msg.errors
		m.warnings = nil
		return m, m.presenter.listen()

	case warningsMsg:
		m.warnings = msg.warnings
		return m, m.presenter.listen()

	case completedMsg:
		m.artifact = msg.artifact
		m.err = nil
		return m, m.presenter.listen()

	case failureMsg:
		m.err = msg.err
		return m, m.presenter.listen()

	case actionMsg:
		m.busy = false
		if msg.err != nil {
			m.err = fmt.Errorf("%s: %w", msg.action, msg.err)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		if m.phase.IsTerminal() {
			return m, tea.Quit
		}
		ctrl := m.ctrl
		return m, func() tea.Msg {
			_ = ctrl.Abandon(context.Background())
			return tea.Quit()
		}

	case "enter":
		if m.busy || m.phase != orchestrator.PhaseAwaitingTutorial {
			return m, nil
		}
		m.busy = true
		m.warnings = nil
		return m, m.act("start recording", m.ctrl.TutorialAcknowledged)

	case "r":
		if m.busy || m.phase != orchestrator.PhaseRejected {
			return m, nil
		}
		m.busy = true
		return m, m.act("retake", m.ctrl.RetryAcknowledged)

	case "a":
		if m.busy || m.phase != orchestrator.PhaseAssembling || m.err == nil {
			return m, nil
		}
		m.busy = true
		m.err = nil
		return m, m.act("retry assembly", m.ctrl.RetryAssembly)
	}
	return m, nil
}

// View renders the current phase.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(" scancap capture "))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d/%d accepted", m.accepted, capture.AngleCount)))
	b.WriteString("\n")

	switch m.phase {
	case orchestrator.PhaseCompleted:
		b.WriteString(m.renderSummary())
	case orchestrator.PhaseAbandoned:
		b.WriteString("\n" + dimStyle.Render("Capture abandoned.") + "\n")
	case orchestrator.PhaseFailed:
		b.WriteString("\n" + errorStyle.Render("Capture failed: "+errString(m.err)) + "\n")
	default:
		b.WriteString(m.renderAngle())
	}

	b.WriteString("\n" + m.renderFooter())
	return containerStyle.Render(b.String())
}

func (m Model) renderAngle() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%d. %s", int(m.angle), m.angle.Title())) + "\n")
	b.WriteString(m.angle.Instruction() + "\n\n")

	for _, w := range m.warnings {
		b.WriteString(warningStyle.Render("! "+w) + "\n")
	}

	switch m.phase {
	case orchestrator.PhaseAwaitingTutorial:
		if m.busy {
			b.WriteString(m.spinner.View() + " opening camera\n")
		} else {
			b.WriteString(valueStyle.Render("Press enter to start recording.") + "\n")
		}
	case orchestrator.PhaseRecording:
		b.WriteString(m.spinner.View() + " recording, stop the camera when done\n")
	case orchestrator.PhaseValidating:
		b.WriteString(m.spinner.View() + " checking quality\n")
	case orchestrator.PhaseRejected:
		for _, e := range m.rejections {
			b.WriteString(errorStyle.Render("✗ "+e) + "\n")
		}
		b.WriteString("\n" + valueStyle.Render("Press r to retake.") + "\n")
	case orchestrator.PhaseAssembling:
		if m.err != nil {
			b.WriteString(errorStyle.Render("Assembly failed: "+m.err.Error()) + "\n")
			b.WriteString(valueStyle.Render("Press a to try again.") + "\n")
		} else {
			b.WriteString(m.spinner.View() + " assembling\n")
		}
	}

	if m.err != nil && m.phase != orchestrator.PhaseAssembling {
		b.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	}
	return b.String()
}

func (m Model) renderSummary() string {
	var b strings.Builder
	b.WriteString("\n" + okStyle.Render("✓ Capture complete") + "\n")
	for _, w := range m.warnings {
		b.WriteString(warningStyle.Render("! "+w) + "\n")
	}
	if a := m.artifact; a != nil {
		b.WriteString(dimStyle.Render("Artifact: ") + valueStyle.Render(a.ID) + "\n")
		b.WriteString(dimStyle.Render("Size:     ") + valueStyle.Render(formatBytes(a.Size())) + "\n")
		b.WriteString(dimStyle.Render("Segments: ") + valueStyle.Render(fmt.Sprintf("%d", len(a.SegmentIDs))) + "\n")
	}
	return b.String()
}

func (m Model) renderFooter() string {
	keys := []string{}
	switch {
	case m.phase == orchestrator.PhaseAwaitingTutorial:
		keys = append(keys, footerKeyStyle.Render("[enter]")+dimStyle.Render(" record"))
	case m.phase == orchestrator.PhaseRejected:
		keys = append(keys, footerKeyStyle.Render("[r]")+dimStyle.Render(" retake"))
	case m.phase == orchestrator.PhaseAssembling && m.err != nil:
		keys = append(keys, footerKeyStyle.Render("[a]")+dimStyle.Render(" retry"))
	}
	if m.phase.IsTerminal() {
		keys = append(keys, footerKeyStyle.Render("[q]")+dimStyle.Render(" quit"))
	} else {
		keys = append(keys, footerKeyStyle.Render("[q]")+dimStyle.Render(" abandon"))
	}
	return strings.Join(keys, "  ")
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
