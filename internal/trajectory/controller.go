// Package trajectory plans, uploads, and supervises path execution for
// both manipulators. One trajectory is in flight at a time; its lifecycle
// is tracked by an explicit state machine.
package trajectory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mittag-lab/maniplink/internal/config"
	"github.com/mittag-lab/maniplink/internal/event"
	"github.com/mittag-lab/maniplink/internal/id"
	"github.com/mittag-lab/maniplink/internal/kinematics"
	"github.com/mittag-lab/maniplink/internal/link"
	"github.com/mittag-lab/maniplink/internal/metrics"
	"github.com/mittag-lab/maniplink/internal/proto"
)

// Channel is the slice of the link the controller needs.
type Channel interface {
	SendAsync(cmd proto.Command) error
	Messages() *event.Emitter[proto.Message]
}

// PoseSource yields the rig's current pose.
type PoseSource interface {
	Refresh(ctx context.Context) error
	Pose() kinematics.Pose
}

// Controller owns the trajectory lifecycle: plan against the current
// pose, upload as one PATH_DATA command, start execution, and track the
// controller's completion and fault reports.
type Controller struct {
	ch     Channel
	poses  PoseSource
	solver kinematics.Solver
	cfg    config.TrajectoryConfig
	left   string
	right  string

	mu sync.RWMutex
	// +checklocks:mu
	state State
	// +checklocks:mu
	plan *Plan

	events event.Emitter[Event]
	subID  int
}

// New builds a controller and subscribes it to the channel's inbound
// frames.
func New(ch Channel, poses PoseSource, solver kinematics.Solver, cfg config.TrajectoryConfig, manips config.ManipulatorsConfig) *Controller {
	c := &Controller{
		ch:     ch,
		poses:  poses,
		solver: solver,
		cfg:    cfg,
		left:   manips.Left,
		right:  manips.Right,
		state:  StateIdle,
	}
	c.subID = ch.Messages().Subscribe(c.handleMessage)
	return c
}

// Events exposes the controller's event stream.
func (c *Controller) Events() *event.Emitter[Event] {
	return &c.events
}

// Close detaches the controller from the channel. Safe to call twice.
func (c *Controller) Close() {
	c.ch.Messages().Unsubscribe(c.subID)
}

// State returns the current lifecycle phase.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// CurrentPlan returns a copy of the cached plan, if any.
func (c *Controller) CurrentPlan() (Plan, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.plan == nil {
		return Plan{}, false
	}
	return *c.plan, true
}

// Plan builds a straight-line trajectory from the current pose to target.
func (c *Controller) Plan(ctx context.Context, target kinematics.Pose) (Plan, error) {
	return c.buildPlan(ctx, func(from kinematics.Pose) ([]kinematics.Pose, []float64) {
		return samplePath(from, target, c.cfg.Speed, c.cfg.SampleRate)
	})
}

// PlanWaypoints builds a trajectory from the current pose through every
// waypoint in order.
func (c *Controller) PlanWaypoints(ctx context.Context, waypoints []kinematics.Pose) (Plan, error) {
	if len(waypoints) == 0 {
		return Plan{}, &PlanningError{Err: ErrNoWaypoints}
	}
	return c.buildPlan(ctx, func(from kinematics.Pose) ([]kinematics.Pose, []float64) {
		route := append([]kinematics.Pose{from}, waypoints...)
		return sampleRoute(route, c.cfg.Speed, c.cfg.SampleRate)
	})
}

// buildPlan runs the shared planning phases: refresh pose, sample the
// pose path, solve to joint space, downsample, cache.
func (c *Controller) buildPlan(ctx context.Context, sample func(from kinematics.Pose) ([]kinematics.Pose, []float64)) (Plan, error) {
	c.mu.Lock()
	if err := c.transitionLocked(StatePlanning); err != nil {
		c.mu.Unlock()
		return Plan{}, err
	}
	c.plan = nil
	c.mu.Unlock()

	// Only the planning phase mutates state between here and the
	// finalize below: Clear treats Planning as busy and the message
	// handlers act on Executing alone.
	if err := c.poses.Refresh(ctx); err != nil {
		return Plan{}, c.failPlanning(err)
	}
	from := c.poses.Pose()

	path, times := sample(from)
	series, err := c.solver.Inverse(path, times)
	if err != nil {
		return Plan{}, c.failPlanning(err)
	}

	plan := &Plan{
		ID:      id.Prefixed("pl"),
		Points:  Downsample(series.Points, c.cfg.MaxPoints),
		Times:   Downsample(series.Times, c.cfg.MaxPoints),
		Elapsed: series.Elapsed,
		ready:   true,
	}

	c.mu.Lock()
	c.mustTransitionLocked(StateAwaitingSend)
	c.plan = plan
	c.mu.Unlock()

	metrics.RecordPlan(len(plan.Points))
	slog.Info("trajectory planned",
		"plan", plan.ID, "points", len(plan.Points), "sampled", len(path), "elapsed_s", plan.Elapsed)
	c.events.Emit(Event{Kind: EventPlanned, State: StateAwaitingSend, PlanID: plan.ID})
	return *plan, nil
}

func (c *Controller) failPlanning(cause error) error {
	err := &PlanningError{Err: cause}
	c.mu.Lock()
	c.mustTransitionLocked(StateFailed)
	c.mu.Unlock()

	slog.Warn("trajectory planning failed", "error", cause)
	c.events.Emit(Event{Kind: EventFailed, State: StateFailed, Err: err})
	return err
}

// Send uploads the cached plan as a single PATH_DATA command. A send
// while the link is down is rejected without disturbing the plan; a
// failure mid-transmission invalidates it.
func (c *Controller) Send() error {
	c.mu.Lock()
	if c.state != StateAwaitingSend || c.plan == nil || !c.plan.ready {
		err := c.sendRejectLocked()
		c.mu.Unlock()
		return err
	}
	plan := c.plan

	cmd := proto.PathData(c.left, c.right, pathPoints(plan.Points))
	if err := c.ch.SendAsync(cmd); err != nil {
		if errors.Is(err, link.ErrNotConnected) {
			// Nothing reached the wire; the plan stays ready for a
			// retry once the session is back.
			c.mu.Unlock()
			return &TransmissionError{Err: err}
		}
		plan.ready = false
		c.mustTransitionLocked(StateFailed)
		c.mu.Unlock()

		terr := &TransmissionError{Err: err}
		slog.Warn("trajectory upload failed", "plan", plan.ID, "error", err)
		c.events.Emit(Event{Kind: EventFailed, State: StateFailed, PlanID: plan.ID, Err: terr})
		return terr
	}
	c.mustTransitionLocked(StateSent)
	c.mu.Unlock()

	slog.Info("trajectory uploaded", "plan", plan.ID, "points", len(plan.Points))
	c.events.Emit(Event{Kind: EventSent, State: StateSent, PlanID: plan.ID})
	return nil
}

// +checklocks:c.mu
func (c *Controller) sendRejectLocked() error {
	if c.state == StateSent || c.state == StateExecuting {
		return &TransmissionError{Err: ErrBusy}
	}
	return &TransmissionError{Err: ErrNoPlan}
}

// Execute asks the controller to start tracking the uploaded plan.
func (c *Controller) Execute() error {
	c.mu.Lock()
	if c.state == StateExecuting {
		c.mu.Unlock()
		return ErrExecutionInFlight
	}
	if c.state != StateSent || c.plan == nil {
		c.mu.Unlock()
		return ErrNotSent
	}
	plan := c.plan

	if err := c.ch.SendAsync(proto.StartPath(c.left, c.right)); err != nil {
		if errors.Is(err, link.ErrNotConnected) {
			// Nothing reached the wire; the lifecycle stays at Sent.
			c.mu.Unlock()
			return &TransmissionError{Err: err}
		}
		plan.ready = false
		c.mustTransitionLocked(StateFailed)
		c.mu.Unlock()

		terr := &TransmissionError{Err: err}
		slog.Warn("trajectory start failed", "plan", plan.ID, "error", err)
		c.events.Emit(Event{Kind: EventFailed, State: StateFailed, PlanID: plan.ID, Err: terr})
		return terr
	}
	c.mustTransitionLocked(StateExecuting)
	c.mu.Unlock()

	slog.Info("trajectory execution requested", "plan", plan.ID)
	c.events.Emit(Event{Kind: EventExecuting, State: StateExecuting, PlanID: plan.ID})
	return nil
}

// Clear drops the cached plan and returns to Idle. Rejected while a plan
// is being built, is on the wire, or is executing.
func (c *Controller) Clear() error {
	c.mu.Lock()
	switch c.state {
	case StatePlanning, StateSent, StateExecuting:
		c.mu.Unlock()
		return ErrBusy
	case StateIdle:
		c.mu.Unlock()
		return nil
	}
	planID := c.planIDLocked()
	c.plan = nil
	c.mustTransitionLocked(StateIdle)
	c.mu.Unlock()

	slog.Debug("trajectory cleared", "plan", planID)
	c.events.Emit(Event{Kind: EventCleared, State: StateIdle, PlanID: planID})
	return nil
}

// Abort forces any live plan into Failed. The rig calls it when the
// connection drops: the controller-side path buffer does not survive a
// reconnect, so an uploaded or executing plan cannot be resumed.
func (c *Controller) Abort(cause error) {
	c.mu.Lock()
	switch c.state {
	case StateAwaitingSend, StateSent, StateExecuting:
	default:
		c.mu.Unlock()
		return
	}
	wasExecuting := c.state == StateExecuting
	c.mustTransitionLocked(StateFailed)
	planID := c.planIDLocked()
	if c.plan != nil {
		c.plan.ready = false
	}
	c.mu.Unlock()

	if wasExecuting {
		metrics.RecordExecution("aborted")
	}
	slog.Warn("trajectory aborted", "plan", planID, "error", cause)
	c.events.Emit(Event{Kind: EventFailed, State: StateFailed, PlanID: planID, Err: cause})
}

func (c *Controller) handleMessage(m proto.Message) {
	switch m.Kind {
	case proto.KindPathDataAck:
		c.acknowledged()
	case proto.KindPathStarted:
		c.started()
	case proto.KindPathCompleted:
		c.completed(m)
	case proto.KindError:
		c.faulted(m)
	}
}

func (c *Controller) acknowledged() {
	c.mu.RLock()
	state := c.state
	planID := c.planIDLocked()
	c.mu.RUnlock()

	slog.Debug("trajectory acknowledged by controller", "plan", planID)
	c.events.Emit(Event{Kind: EventAcknowledged, State: state, PlanID: planID})
}

func (c *Controller) started() {
	c.mu.RLock()
	state := c.state
	planID := c.planIDLocked()
	c.mu.RUnlock()

	slog.Info("trajectory tracking started", "plan", planID)
	c.events.Emit(Event{Kind: EventStarted, State: state, PlanID: planID})
}

func (c *Controller) completed(m proto.Message) {
	c.mu.Lock()
	if c.state != StateExecuting {
		c.mu.Unlock()
		slog.Debug("ignoring path completion outside execution", "line", m.Raw)
		return
	}
	c.mustTransitionLocked(StateCompleted)
	planID := c.planIDLocked()
	c.mu.Unlock()

	id1, id2, err := proto.ParsePathCompleted(m)
	if err != nil {
		slog.Warn("malformed path completion", "line", m.Raw, "error", err)
	}
	metrics.RecordExecution("completed")
	slog.Info("trajectory completed", "plan", planID, "id1", id1, "id2", id2)
	c.events.Emit(Event{Kind: EventCompleted, State: StateCompleted, PlanID: planID, IDs: [2]string{id1, id2}})
}

func (c *Controller) faulted(m proto.Message) {
	code, text := proto.ParseRemoteError(m)

	c.mu.Lock()
	if c.state != StateExecuting {
		c.mu.Unlock()
		slog.Debug("controller error outside execution", "code", code, "text", text)
		return
	}
	c.mustTransitionLocked(StateFailed)
	planID := c.planIDLocked()
	if c.plan != nil {
		c.plan.ready = false
	}
	c.mu.Unlock()

	err := &ExecutionError{Code: code, Text: text}
	metrics.RecordExecution("failed")
	slog.Warn("trajectory execution failed", "plan", planID, "code", code, "text", text)
	c.events.Emit(Event{Kind: EventFailed, State: StateFailed, PlanID: planID, Err: err})
}

// +checklocks:c.mu
func (c *Controller) transitionLocked(to State) error {
	if !canTransition(c.state, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, c.state, to)
	}
	from := c.state
	c.state = to
	slog.Debug("trajectory state change", "from", from, "to", to)
	return nil
}

// mustTransitionLocked is for transitions already validated by the
// caller's state check under the same lock hold.
// +checklocks:c.mu
func (c *Controller) mustTransitionLocked(to State) {
	if err := c.transitionLocked(to); err != nil {
		slog.Error("trajectory state invariant broken", "error", err)
	}
}

// +checklocks:c.mu
func (c *Controller) planIDLocked() string {
	if c.plan == nil {
		return ""
	}
	return c.plan.ID
}

func canTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func pathPoints(points []kinematics.JointVector) []proto.PathPoint {
	out := make([]proto.PathPoint, len(points))
	for i, p := range points {
		out[i] = proto.PathPoint{Left: p.Left, Right: p.Right}
	}
	return out
}
