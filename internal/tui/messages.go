package tui

import (
	"time"

	"github.com/mittag-lab/maniplink/internal/rig"
	"github.com/mittag-lab/maniplink/internal/status"
)

// noticeMsg wraps a rig notice for Bubble Tea.
type noticeMsg struct {
	Notice rig.Notice
}

// refreshDoneMsg is the result of a manual status refresh.
type refreshDoneMsg struct {
	Snapshot status.Snapshot
	Err      error
}

// tickMsg drives periodic redraws (snapshot age, stale heartbeat decay).
type tickMsg time.Time
