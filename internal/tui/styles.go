package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	secondaryColor = lipgloss.Color("#10B981") // Green
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	errorColor     = lipgloss.Color("#EF4444") // Red
	warningColor   = lipgloss.Color("#F59E0B") // Amber/Yellow

	// Header styles
	headerContainerStyle = lipgloss.NewStyle().
				Background(primaryColor)

	headerBrandStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(primaryColor).
				Padding(0, 1)

	headerAddrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E0E0E0")).
			Background(primaryColor).
			Padding(0, 1)

	// Link state indicators inside the header
	headerLinkUpStyle = lipgloss.NewStyle().
				Foreground(secondaryColor).
				Background(primaryColor)

	headerLinkDialingStyle = lipgloss.NewStyle().
				Foreground(warningColor).
				Background(primaryColor)

	headerLinkDownStyle = lipgloss.NewStyle().
				Foreground(errorColor).
				Background(primaryColor)

	headerBeatWarnStyle = lipgloss.NewStyle().
				Foreground(warningColor).
				Background(primaryColor).
				Padding(0, 1)

	// Panel chrome
	panelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(mutedColor)

	panelTitleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	panelEmptyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	// Status table styles
	unitNameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true)

	columnHeadStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	snapshotAgeStyle = lipgloss.NewStyle().
				Foreground(mutedColor)

	// Trajectory line styles
	trajStateStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	trajFailedStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	trajPlanStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A0A0A0"))

	// Event log styles
	eventTimeStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	eventErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// Help bar style
	statusStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)

	// Error display styles
	errorBarStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Padding(0, 1)
)
