// Package tui provides the Bubbletea-based terminal dashboard for
// maniplink. It renders the last known manipulator positions, the
// trajectory lifecycle, and a rolling feed of rig notices.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mittag-lab/maniplink/internal/event"
	"github.com/mittag-lab/maniplink/internal/link"
	"github.com/mittag-lab/maniplink/internal/rig"
	"github.com/mittag-lab/maniplink/internal/status"
	"github.com/mittag-lab/maniplink/internal/trajectory"
)

// Engine is the slice of the rig the dashboard consumes. *rig.Rig
// satisfies it.
type Engine interface {
	Addr() string
	LinkState() link.State
	Snapshot() (status.Snapshot, bool)
	Status(ctx context.Context) (status.Snapshot, error)
	TrajectoryState() trajectory.State
	CurrentPlan() (trajectory.Plan, bool)
	Notices() *event.Emitter[rig.Notice]
}

// Model is the main Bubbletea model for the maniplink dashboard.
type Model struct {
	// Window dimensions
	width  int
	height int

	// UI state
	ready      bool
	refreshing bool
	err        error

	// Components
	header Header
	status StatusPanel
	events EventLog

	// Rig handle
	engine Engine

	// Trajectory state mirrored from notices
	trajState trajectory.State
	plan      trajectory.Plan
	havePlan  bool

	// Last heartbeat failure, used to let the warning decay
	lastMiss time.Time

	// Key bindings
	keys KeyBindings
}

// New creates a new dashboard model seeded from the engine's current
// state.
func New(engine Engine) Model {
	m := Model{
		header:    NewHeader(),
		status:    NewStatusPanel(),
		events:    NewEventLog(),
		keys:      DefaultKeyBindings(),
		engine:    engine,
		trajState: trajectory.StateIdle,
	}
	if engine != nil {
		m.header.SetAddr(engine.Addr())
		m.header.SetLinkState(engine.LinkState())
		if snap, ok := engine.Snapshot(); ok {
			m.status.SetSnapshot(snap)
		}
		m.trajState = engine.TrajectoryState()
		if plan, ok := engine.CurrentPlan(); ok {
			m.plan = plan
			m.havePlan = true
		}
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.tickCmd()
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.header.View()
	positions := m.status.View()
	traj := m.trajectoryLine()
	events := m.events.View()
	help := m.helpLine()

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s", header, positions, traj, events, help)
}

// trajectoryLine renders the single-line trajectory summary between the
// positions panel and the event feed.
func (m Model) trajectoryLine() string {
	label := trajStateStyle
	if m.trajState == trajectory.StateFailed {
		label = trajFailedStyle
	}
	line := " trajectory: " + label.Render(string(m.trajState))
	if m.havePlan {
		line += trajPlanStyle.Render(fmt.Sprintf("  plan %s (%d points, %.1fs)",
			m.plan.ID, len(m.plan.Points), m.plan.Elapsed))
	}
	return line
}

// helpLine renders the bottom bar, which doubles as the error display.
func (m Model) helpLine() string {
	if m.err != nil {
		return errorBarStyle.Width(m.width).Render("Error: " + m.err.Error())
	}

	bindings := []key.Binding{m.keys.Refresh, m.keys.Up, m.keys.Down, m.keys.Quit}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		help := b.Help()
		parts = append(parts, help.Key+": "+help.Desc)
	}
	return statusStyle.Width(m.width).Render(strings.Join(parts, "  "))
}

// Run starts the dashboard against a live rig and blocks until the user
// quits. Notices are forwarded into the program so the view tracks the
// controller in real time.
func Run(engine Engine) error {
	p := tea.NewProgram(
		New(engine),
		tea.WithAltScreen(),
	)

	id := engine.Notices().Subscribe(func(n rig.Notice) {
		p.Send(noticeMsg{Notice: n})
	})
	defer engine.Notices().Unsubscribe(id)

	_, err := p.Run()
	return err
}
