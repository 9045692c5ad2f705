// Package status tracks the last reported manipulator positions and the
// pose derived from them.
package status

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mittag-lab/maniplink/internal/config"
	"github.com/mittag-lab/maniplink/internal/event"
	"github.com/mittag-lab/maniplink/internal/kinematics"
	"github.com/mittag-lab/maniplink/internal/link"
	"github.com/mittag-lab/maniplink/internal/proto"
)

// Channel is the slice of the link the monitor needs.
type Channel interface {
	SendSync(ctx context.Context, cmd proto.Command) (proto.Message, error)
	Messages() *event.Emitter[proto.Message]
}

// Reason says what triggered an update.
type Reason string

const (
	// ReasonRefresh marks an update from an explicit GET_STATUS exchange.
	ReasonRefresh Reason = "refresh"
	// ReasonReport marks an update from an unsolicited STATUS frame.
	ReasonReport Reason = "report"
	// ReasonStepCompleted marks a step-completion notice. Positions are
	// stale until the next refresh.
	ReasonStepCompleted Reason = "step_completed"
)

// Update is published whenever the monitor learns something new.
type Update struct {
	Reason   Reason
	Snapshot Snapshot
}

// Snapshot is the last known state of both manipulators. Units are mm.
type Snapshot struct {
	Joints    kinematics.JointVector
	Pose      kinematics.Pose
	UpdatedAt time.Time
}

// Monitor consumes STATUS reports and keeps a single coherent snapshot.
// A report is applied all-or-nothing: any parse or kinematics defect
// leaves the previous snapshot in place.
type Monitor struct {
	ch     Channel
	solver kinematics.Solver
	left   string
	right  string

	mu sync.RWMutex
	// +checklocks:mu
	snap Snapshot
	// +checklocks:mu
	seen bool

	updates event.Emitter[Update]
	subID   int
}

// New builds a monitor and subscribes it to the channel's inbound frames.
func New(ch Channel, solver kinematics.Solver, cfg config.ManipulatorsConfig) *Monitor {
	m := &Monitor{
		ch:     ch,
		solver: solver,
		left:   cfg.Left,
		right:  cfg.Right,
	}
	m.subID = ch.Messages().Subscribe(m.handleMessage)
	return m
}

// Updates exposes the monitor's update stream.
func (m *Monitor) Updates() *event.Emitter[Update] {
	return &m.updates
}

// Close detaches the monitor from the channel. Safe to call twice.
func (m *Monitor) Close() {
	m.ch.Messages().Unsubscribe(m.subID)
}

// Refresh performs a GET_STATUS exchange and applies the reply.
func (m *Monitor) Refresh(ctx context.Context) error {
	cmd := proto.GetStatus(m.left, m.right)
	reply, err := m.ch.SendSync(ctx, cmd)
	if err != nil {
		return fmt.Errorf("status: refresh: %w", err)
	}
	if reply.IsError() {
		return fmt.Errorf("status: refresh: %w", link.NewRemoteError(cmd.Verb, reply))
	}
	report, err := proto.ParseStatus(reply)
	if err != nil {
		return fmt.Errorf("status: refresh: %w", err)
	}
	return m.ingest(report, ReasonRefresh)
}

// ingest converts a report to a snapshot and publishes it. The stored
// snapshot only changes when the whole conversion succeeds.
func (m *Monitor) ingest(report proto.Report, reason Reason) error {
	if report.Left.ID != m.left || report.Right.ID != m.right {
		slog.Warn("status report for unexpected manipulators",
			"got_left", report.Left.ID, "got_right", report.Right.ID,
			"want_left", m.left, "want_right", m.right)
	}

	joints := kinematics.JointVector{
		Left:  report.Left.Position,
		Right: report.Right.Position,
	}
	pose, err := m.solver.Forward(joints)
	if err != nil {
		return fmt.Errorf("status: derive pose: %w", err)
	}

	snap := Snapshot{Joints: joints, Pose: pose, UpdatedAt: time.Now()}
	m.mu.Lock()
	m.snap = snap
	m.seen = true
	m.mu.Unlock()

	m.updates.Emit(Update{Reason: reason, Snapshot: snap})
	return nil
}

func (m *Monitor) handleMessage(msg proto.Message) {
	switch msg.Kind {
	case proto.KindStatus:
		report, err := proto.ParseStatus(msg)
		if err != nil {
			slog.Warn("discarding malformed status report", "line", msg.Raw, "error", err)
			return
		}
		if err := m.ingest(report, ReasonReport); err != nil {
			slog.Warn("discarding status report", "line", msg.Raw, "error", err)
		}
	case proto.KindStepCompleted:
		slog.Debug("step completed", "line", msg.Raw)
		m.mu.RLock()
		snap := m.snap
		m.mu.RUnlock()
		m.updates.Emit(Update{Reason: ReasonStepCompleted, Snapshot: snap})
	}
}

// Snapshot returns the current snapshot and whether any report has been
// applied yet.
func (m *Monitor) Snapshot() (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap, m.seen
}

// Positions returns the last reported carriage positions in mm.
func (m *Monitor) Positions() kinematics.JointVector {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.Joints
}

// Pose returns the tool pose derived from the last report.
func (m *Monitor) Pose() kinematics.Pose {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.Pose
}

// LastUpdated returns when the snapshot last changed. Zero before the
// first applied report.
func (m *Monitor) LastUpdated() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.UpdatedAt
}
