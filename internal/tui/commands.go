package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// tickInterval drives periodic redraws so the snapshot age stays fresh.
const tickInterval = time.Second

// heartbeatDecayAfter clears the missed-beat warning once probes have
// stopped failing for this long.
const heartbeatDecayAfter = 15 * time.Second

// refreshTimeout bounds a manual status refresh.
const refreshTimeout = 5 * time.Second

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refreshCmd asks the controller for fresh positions off the UI
// goroutine.
func (m Model) refreshCmd() tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		if engine == nil {
			return refreshDoneMsg{Err: errors.New("no rig attached")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		snap, err := engine.Status(ctx)
		return refreshDoneMsg{Snapshot: snap, Err: err}
	}
}
