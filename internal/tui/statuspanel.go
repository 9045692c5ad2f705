package tui

import (
	"fmt"
	"time"

	"github.com/mittag-lab/maniplink/internal/status"
)

// statusPanelRows is the fixed content height of the panel so the layout
// does not jump when the first snapshot arrives.
const statusPanelRows = 5

// StatusPanel displays the last known carriage and tip positions for
// both manipulators.
type StatusPanel struct {
	width int

	snapshot status.Snapshot
	have     bool
}

// NewStatusPanel creates a new status panel component.
func NewStatusPanel() StatusPanel {
	return StatusPanel{}
}

// SetWidth updates the panel width, border included.
func (p *StatusPanel) SetWidth(width int) {
	p.width = width
}

// SetSnapshot updates the displayed positions.
func (p *StatusPanel) SetSnapshot(snap status.Snapshot) {
	p.snapshot = snap
	p.have = true
}

// Height returns the rendered panel height, border included.
func (p StatusPanel) Height() int {
	return statusPanelRows + 2
}

// View renders the panel.
func (p StatusPanel) View() string {
	title := panelTitleStyle.Render("manipulators")

	var body string
	if !p.have {
		body = panelEmptyStyle.Render("no status received yet (press r to refresh)")
	} else {
		head := columnHeadStyle.Render(fmt.Sprintf("%-7s %-28s %s", "UNIT", "CARRIAGE (mm)", "TIP (mm)"))
		left := fmt.Sprintf("%s %-28s %s",
			unitNameStyle.Render(fmt.Sprintf("%-7s", "left")),
			formatVec(p.snapshot.Joints.Left),
			formatVec(p.snapshot.Pose.Left))
		right := fmt.Sprintf("%s %-28s %s",
			unitNameStyle.Render(fmt.Sprintf("%-7s", "right")),
			formatVec(p.snapshot.Joints.Right),
			formatVec(p.snapshot.Pose.Right))
		age := snapshotAgeStyle.Render("updated " + formatAge(time.Since(p.snapshot.UpdatedAt)))
		body = head + "\n" + left + "\n" + right + "\n" + age
	}

	content := title + "\n" + body
	contentWidth := p.width - 2
	if contentWidth < 1 {
		contentWidth = 1
	}
	return panelBorderStyle.Width(contentWidth).Height(statusPanelRows).Render(content)
}
