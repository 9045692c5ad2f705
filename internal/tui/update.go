package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mittag-lab/maniplink/internal/rig"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.header.SetWidth(msg.Width)
		m.status.SetWidth(msg.Width)
		// Header, positions panel, trajectory line, and help bar are
		// fixed height; the event feed takes the rest.
		used := 1 + m.status.Height() + 1 + 1
		m.events.SetSize(msg.Width, msg.Height-used)
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case noticeMsg:
		m = m.applyNotice(msg.Notice)
		return m, nil

	case refreshDoneMsg:
		m.refreshing = false
		if msg.Err != nil {
			m.err = msg.Err
			m.events.Append(formatEventLine(time.Now(),
				eventErrorStyle.Render("refresh failed: "+msg.Err.Error())))
			return m, nil
		}
		m.err = nil
		m.status.SetSnapshot(msg.Snapshot)
		return m, nil

	case tickMsg:
		// Let a stale missed-beat warning clear once probes have been
		// quiet for a while. Recoveries are not published as notices.
		if !m.lastMiss.IsZero() && time.Since(m.lastMiss) > heartbeatDecayAfter {
			m.header.SetMissedBeats(0)
			m.lastMiss = time.Time{}
		}
		return m, m.tickCmd()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Refresh):
		if m.refreshing {
			return m, nil
		}
		m.refreshing = true
		return m, m.refreshCmd()
	case key.Matches(msg, m.keys.Up):
		m.events.ScrollUp(1)
	case key.Matches(msg, m.keys.Down):
		m.events.ScrollDown(1)
	case key.Matches(msg, m.keys.Top):
		m.events.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.events.GotoBottom()
	case key.Matches(msg, m.keys.PageUp):
		m.events.PageUp()
	case key.Matches(msg, m.keys.PageDown):
		m.events.PageDown()
	}
	return m, nil
}

// applyNotice folds a rig notice into the view state and appends a line
// to the event feed.
func (m Model) applyNotice(n rig.Notice) Model {
	switch {
	case n.Link != nil:
		m.header.SetLinkState(n.Link.To)
	case n.Heartbeat != nil:
		m.header.SetMissedBeats(n.Heartbeat.Consecutive)
		m.lastMiss = n.At
		if m.lastMiss.IsZero() {
			m.lastMiss = time.Now()
		}
	case n.Status != nil:
		m.status.SetSnapshot(n.Status.Snapshot)
	case n.Trajectory != nil:
		m.trajState = n.Trajectory.State
		if m.engine != nil {
			if plan, ok := m.engine.CurrentPlan(); ok {
				m.plan = plan
				m.havePlan = true
			} else {
				m.havePlan = false
			}
		}
	}
	m.events.Append(formatNotice(n))
	return m
}

// formatNotice renders one rig notice as an event feed line.
func formatNotice(n rig.Notice) string {
	var body string
	switch {
	case n.Link != nil:
		body = fmt.Sprintf("link %s -> %s", n.Link.From, n.Link.To)
		if n.Link.Err != nil {
			body = eventErrorStyle.Render(body + ": " + n.Link.Err.Error())
		}
	case n.Heartbeat != nil:
		body = eventErrorStyle.Render(fmt.Sprintf("heartbeat missed (%d consecutive): %v",
			n.Heartbeat.Consecutive, n.Heartbeat.Err))
	case n.Status != nil:
		s := n.Status.Snapshot
		body = fmt.Sprintf("status %s: left tip (%s) right tip (%s)",
			n.Status.Reason, formatVec(s.Pose.Left), formatVec(s.Pose.Right))
	case n.Trajectory != nil:
		body = fmt.Sprintf("trajectory %s", n.Trajectory.Kind)
		if n.Trajectory.PlanID != "" {
			body += " plan " + n.Trajectory.PlanID
		}
		if ids := n.Trajectory.IDs; ids != ([2]string{}) {
			body += fmt.Sprintf(" units %s,%s", ids[0], ids[1])
		}
		if n.Trajectory.Err != nil {
			body = eventErrorStyle.Render(body + ": " + n.Trajectory.Err.Error())
		}
	default:
		body = string(n.Kind)
	}
	return formatEventLine(n.At, body)
}

func formatEventLine(at time.Time, body string) string {
	if at.IsZero() {
		at = time.Now()
	}
	return eventTimeStyle.Render(at.Format("15:04:05")) + " " + body
}
