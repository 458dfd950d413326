package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run calls start, then runs the UI until the user quits. The presenter
// is closed on return so a still-running orchestrator cannot block on it.
func Run(ctx context.Context, ctrl Controller, p *Presenter, start func(context.Context) error, opts ...tea.ProgramOption) (Model, error) {
	defer p.Close()

	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	prog := tea.NewProgram(NewModel(ctrl, p), opts...)

	// Events queue in the presenter until the program starts reading.
	if err := start(ctx); err != nil {
		return Model{}, err
	}

	final, err := prog.Run()
	if err != nil {
		return Model{}, fmt.Errorf("run terminal ui: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return Model{}, fmt.Errorf("unexpected model type %T", final)
	}
	return m, nil
}
