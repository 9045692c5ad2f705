package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
)

// maxEventLines caps the event history so a long-running dashboard does
// not grow without bound.
const maxEventLines = 500

// EventLog displays the rolling feed of rig notices in a scrollable
// viewport pinned to the tail.
type EventLog struct {
	viewport viewport.Model
	lines    []string
	ready    bool
	width    int
	height   int
}

// NewEventLog creates a new event log component.
func NewEventLog() EventLog {
	return EventLog{}
}

// SetSize resizes the log panel. Width and height include the border.
func (e *EventLog) SetSize(width, height int) {
	e.width = width
	e.height = height

	contentWidth := width - 2
	contentHeight := height - 3 // border plus title line
	if contentWidth < 1 {
		contentWidth = 1
	}
	if contentHeight < 1 {
		contentHeight = 1
	}

	if !e.ready {
		e.viewport = viewport.New(contentWidth, contentHeight)
		e.viewport.SetContent(strings.Join(e.lines, "\n"))
		e.viewport.GotoBottom()
		e.ready = true
		return
	}
	e.viewport.Width = contentWidth
	e.viewport.Height = contentHeight
}

// Append adds a line to the feed. The view stays pinned to the newest
// entry unless the user has scrolled up.
func (e *EventLog) Append(line string) {
	e.lines = append(e.lines, line)
	if len(e.lines) > maxEventLines {
		e.lines = e.lines[len(e.lines)-maxEventLines:]
	}
	if !e.ready {
		return
	}
	follow := e.viewport.AtBottom()
	e.viewport.SetContent(strings.Join(e.lines, "\n"))
	if follow {
		e.viewport.GotoBottom()
	}
}

// Len reports the number of retained lines.
func (e EventLog) Len() int {
	return len(e.lines)
}

// ScrollUp scrolls the feed up.
func (e *EventLog) ScrollUp(n int) {
	e.viewport.LineUp(n)
}

// ScrollDown scrolls the feed down.
func (e *EventLog) ScrollDown(n int) {
	e.viewport.LineDown(n)
}

// GotoTop jumps to the oldest retained entry.
func (e *EventLog) GotoTop() {
	e.viewport.GotoTop()
}

// GotoBottom jumps to the newest entry.
func (e *EventLog) GotoBottom() {
	e.viewport.GotoBottom()
}

// PageUp scrolls up one page.
func (e *EventLog) PageUp() {
	e.viewport.ViewUp()
}

// PageDown scrolls down one page.
func (e *EventLog) PageDown() {
	e.viewport.ViewDown()
}

// View renders the panel.
func (e EventLog) View() string {
	title := panelTitleStyle.Render("events")

	var body string
	switch {
	case len(e.lines) == 0:
		body = panelEmptyStyle.Render("no events yet")
	case e.ready:
		body = e.viewport.View()
	default:
		body = strings.Join(e.lines, "\n")
	}

	contentWidth := e.width - 2
	if contentWidth < 1 {
		contentWidth = 1
	}
	contentHeight := e.height - 2
	if contentHeight < 1 {
		contentHeight = 1
	}
	return panelBorderStyle.Width(contentWidth).Height(contentHeight).Render(title + "\n" + body)
}
