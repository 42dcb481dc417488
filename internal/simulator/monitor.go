package simulator

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/roach88/fuser/internal/registry"
)

// MonitorRefreshInterval is how often the monitor redraws.
const MonitorRefreshInterval = 250 * time.Millisecond

type refreshMsg time.Time

// Monitor is a bubbletea model that renders the registry and simulator state.
type Monitor struct {
	registry *registry.Registry
	racoon   *Racoon
	view     View
	quitting bool
}

// NewMonitor creates a monitor model.
func NewMonitor(reg *registry.Registry, racoon *Racoon) Monitor {
	m := Monitor{registry: reg, racoon: racoon}
	m.refresh()
	return m
}

func (m *Monitor) refresh() {
	m.view = View{
		Entries: m.registry.Entries(),
		Timings: m.registry.Timings(),
		State:   m.racoon.Snapshot(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(MonitorRefreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// Init implements tea.Model.
func (m Monitor) Init() tea.Cmd {
	return tick()
}

// Update implements tea.Model.
func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	case refreshMsg:
		m.refresh()
		return m, tick()
	}
	return m, nil
}

// View implements tea.Model.
func (m Monitor) View() string {
	if m.quitting {
		return ""
	}
	return Render(m.view) + "\n" + labelStyle.Render("q to quit") + "\n"
}

// RunMonitor runs the monitor until the user quits or ctx is done.
func RunMonitor(ctx context.Context, reg *registry.Registry, racoon *Racoon, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	_, err := tea.NewProgram(NewMonitor(reg, racoon), opts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
