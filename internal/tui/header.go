package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/mittag-lab/maniplink/internal/link"
)

// Header displays the maniplink dashboard header with branding, the
// controller address and the current link health.
type Header struct {
	width int

	addr        string
	linkState   link.State
	missedBeats int
}

// NewHeader creates a new header component.
func NewHeader() Header {
	return Header{
		linkState: link.StateDisconnected,
	}
}

// SetWidth updates the header width.
func (h *Header) SetWidth(width int) {
	h.width = width
}

// SetAddr updates the controller address display.
func (h *Header) SetAddr(addr string) {
	h.addr = addr
}

// SetLinkState updates the link state display.
func (h *Header) SetLinkState(state link.State) {
	h.linkState = state
}

// SetMissedBeats updates the heartbeat warning. Zero clears it.
func (h *Header) SetMissedBeats(n int) {
	h.missedBeats = n
}

// View renders the header.
func (h Header) View() string {
	brand := headerBrandStyle.Render("🦾 maniplink")

	var linkStatus string
	switch h.linkState {
	case link.StateConnected:
		linkStatus = headerLinkUpStyle.Render(" ● connected")
	case link.StateConnecting:
		linkStatus = headerLinkDialingStyle.Render(" ◌ connecting...")
	default:
		linkStatus = headerLinkDownStyle.Render(" ● disconnected")
	}

	var beatWarn string
	if h.missedBeats > 0 {
		beatWarn = headerBeatWarnStyle.Render(fmt.Sprintf("%d missed beats", h.missedBeats))
	}

	var addr string
	if h.addr != "" {
		addr = headerAddrStyle.Render(h.addr)
	}

	// Calculate spacing between brand+link and the right side
	brandWidth := lipgloss.Width(brand)
	linkWidth := lipgloss.Width(linkStatus)
	beatWidth := lipgloss.Width(beatWarn)
	addrWidth := lipgloss.Width(addr)
	spacerWidth := h.width - brandWidth - linkWidth - beatWidth - addrWidth
	if spacerWidth < 0 {
		spacerWidth = 0
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	content := lipgloss.JoinHorizontal(lipgloss.Top, brand, linkStatus, spacer, beatWarn, addr)

	return headerContainerStyle.Width(h.width).Render(content)
}
