package tui

import (
	"fmt"
	"time"

	"github.com/golang/geo/r3"
)

// formatVec renders a position triple in millimeters.
func formatVec(v r3.Vector) string {
	return fmt.Sprintf("%.2f, %.2f, %.2f", v.X, v.Y, v.Z)
}

// formatAge renders how long ago a snapshot was taken.
func formatAge(d time.Duration) string {
	switch {
	case d < 2*time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds ago", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm ago", int(d.Hours()), int(d.Minutes())%60)
	}
}
