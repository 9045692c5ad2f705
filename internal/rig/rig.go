// Package rig assembles the link, liveness supervisor, status monitor,
// and trajectory controller into one controller session with a single
// operational surface.
package rig

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang/geo/r3"

	"github.com/mittag-lab/maniplink/internal/config"
	"github.com/mittag-lab/maniplink/internal/event"
	"github.com/mittag-lab/maniplink/internal/heartbeat"
	"github.com/mittag-lab/maniplink/internal/kinematics"
	"github.com/mittag-lab/maniplink/internal/link"
	"github.com/mittag-lab/maniplink/internal/proto"
	"github.com/mittag-lab/maniplink/internal/status"
	"github.com/mittag-lab/maniplink/internal/trajectory"
)

// NoticeKind discriminates entries on the merged event stream.
type NoticeKind string

const (
	NoticeLink       NoticeKind = "link"
	NoticeHeartbeat  NoticeKind = "heartbeat"
	NoticeStatus     NoticeKind = "status"
	NoticeTrajectory NoticeKind = "trajectory"
)

// Notice is one entry on the merged event stream. Exactly one payload
// field is set, matching Kind.
type Notice struct {
	Kind       NoticeKind
	At         time.Time
	Link       *link.StateChange
	Heartbeat  *heartbeat.Failure
	Status     *status.Update
	Trajectory *trajectory.Event
}

// Rig is the top-level handle on a two-manipulator motion platform. All
// session state lives in the layers it composes; the rig itself only
// wires them together and relays their events.
type Rig struct {
	cfg *config.Config

	link       *link.Link
	solver     kinematics.Solver
	monitor    *status.Monitor
	controller *trajectory.Controller
	supervisor *heartbeat.Supervisor

	notices event.Emitter[Notice]
	detach  []func()
}

// New builds a disconnected rig from the configuration.
func New(cfg *config.Config) *Rig {
	solver := kinematics.NewRCM(cfg.Kinematics.ShaftLength, cfg.Kinematics.RCMLeftVec(), cfg.Kinematics.RCMRightVec())
	ln := link.New(cfg.Controller)
	monitor := status.New(ln, solver, cfg.Manipulators)

	r := &Rig{
		cfg:        cfg,
		link:       ln,
		solver:     solver,
		monitor:    monitor,
		controller: trajectory.New(ln, monitor, solver, cfg.Trajectory, cfg.Manipulators),
		supervisor: heartbeat.NewSupervisor(ln, cfg.Heartbeat),
	}
	r.relay()
	return r
}

// Connect establishes the session: dial with bounded retry, verify
// liveness with one probe, prime the status cache, and start the
// heartbeat supervisor. A failed probe closes the socket without
// re-entering retry; the controller answered the dial, it is the
// protocol that is broken.
func (r *Rig) Connect(ctx context.Context) error {
	if err := r.link.Connect(ctx); err != nil {
		return fmt.Errorf("rig: connect: %w", err)
	}

	if err := heartbeat.Probe(ctx, r.link, r.cfg.Heartbeat.Timeout.Duration); err != nil {
		_ = r.link.Close()
		return fmt.Errorf("rig: connect: %w", err)
	}

	if err := r.monitor.Refresh(ctx); err != nil {
		// The session is live; a garbled first report only means the
		// cache starts empty.
		slog.Warn("initial status refresh failed", "error", err)
	}

	r.supervisor.Start()
	return nil
}

// Disconnect stops the supervisor, retires any live plan, and closes
// the socket. Safe to call on a rig that is already down.
func (r *Rig) Disconnect() error {
	r.supervisor.Stop()
	r.controller.Abort(ErrSessionClosed)
	if err := r.controller.Clear(); err != nil {
		slog.Debug("plan kept across disconnect", "error", err)
	}
	return r.link.Close()
}

// Close tears the rig down completely, detaching every event relay.
func (r *Rig) Close() error {
	err := r.Disconnect()
	for _, d := range r.detach {
		d()
	}
	r.controller.Close()
	r.monitor.Close()
	return err
}

// Notices exposes the merged event stream of every layer.
func (r *Rig) Notices() *event.Emitter[Notice] {
	return &r.notices
}

// Connected reports whether the socket is open.
func (r *Rig) Connected() bool {
	return r.link.IsConnected()
}

// LinkState returns the connection state.
func (r *Rig) LinkState() link.State {
	return r.link.State()
}

// Addr returns the controller endpoint.
func (r *Rig) Addr() string {
	return r.link.Addr()
}

// Status queries the controller and returns the fresh snapshot.
func (r *Rig) Status(ctx context.Context) (status.Snapshot, error) {
	if err := r.monitor.Refresh(ctx); err != nil {
		return status.Snapshot{}, fmt.Errorf("rig: status: %w", err)
	}
	snap, _ := r.monitor.Snapshot()
	return snap, nil
}

// Snapshot returns the cached state without a controller round trip.
func (r *Rig) Snapshot() (status.Snapshot, bool) {
	return r.monitor.Snapshot()
}

// Step jogs both carriages by delta millimetres. The command is
// asynchronous; the resulting STEP_COMPLETED report surfaces on the
// status stream.
func (r *Rig) Step(delta r3.Vector) error {
	cmd := proto.StartStep(r.cfg.Manipulators.Left, r.cfg.Manipulators.Right, delta)
	if err := r.link.SendAsync(cmd); err != nil {
		return fmt.Errorf("rig: step: %w", err)
	}
	slog.Info("step issued", "dx", delta.X, "dy", delta.Y, "dz", delta.Z)
	return nil
}

// Home returns both carriages to their configured home positions through
// the path pipeline. The configured values are carriage coordinates, so
// the pose target is derived through the forward model.
func (r *Rig) Home(ctx context.Context) error {
	home := kinematics.JointVector{
		Left:  r.cfg.Manipulators.HomeLeftVec(),
		Right: r.cfg.Manipulators.HomeRightVec(),
	}
	target, err := r.solver.Forward(home)
	if err != nil {
		return fmt.Errorf("rig: home: %w", err)
	}
	if _, err := r.RunTo(ctx, target); err != nil {
		return fmt.Errorf("rig: home: %w", err)
	}
	return nil
}

// PlanTo builds a straight-line plan from the current pose to target.
func (r *Rig) PlanTo(ctx context.Context, target kinematics.Pose) (trajectory.Plan, error) {
	return r.controller.Plan(ctx, target)
}

// PlanWaypoints builds a plan through the given poses in order.
func (r *Rig) PlanWaypoints(ctx context.Context, waypoints []kinematics.Pose) (trajectory.Plan, error) {
	return r.controller.PlanWaypoints(ctx, waypoints)
}

// PlanFile builds a plan through the waypoints in a route file.
func (r *Rig) PlanFile(ctx context.Context, path string) (trajectory.Plan, error) {
	waypoints, err := trajectory.LoadWaypoints(path)
	if err != nil {
		return trajectory.Plan{}, err
	}
	return r.controller.PlanWaypoints(ctx, waypoints)
}

// Send uploads the pending plan to the controller.
func (r *Rig) Send() error {
	return r.controller.Send()
}

// Execute starts tracking the uploaded plan.
func (r *Rig) Execute() error {
	return r.controller.Execute()
}

// ClearPlan drops the cached plan.
func (r *Rig) ClearPlan() error {
	return r.controller.Clear()
}

// TrajectoryState returns the trajectory lifecycle phase.
func (r *Rig) TrajectoryState() trajectory.State {
	return r.controller.State()
}

// CurrentPlan returns the cached plan, if any.
func (r *Rig) CurrentPlan() (trajectory.Plan, bool) {
	return r.controller.CurrentPlan()
}

// RunTo plans a move to target and runs it to completion.
func (r *Rig) RunTo(ctx context.Context, target kinematics.Pose) (trajectory.Plan, error) {
	plan, err := r.controller.Plan(ctx, target)
	if err != nil {
		return trajectory.Plan{}, err
	}
	if err := r.RunPlanned(ctx); err != nil {
		return plan, err
	}
	return plan, nil
}

// RunFile plans a route file and runs it to completion.
func (r *Rig) RunFile(ctx context.Context, path string) (trajectory.Plan, error) {
	plan, err := r.PlanFile(ctx, path)
	if err != nil {
		return trajectory.Plan{}, err
	}
	if err := r.RunPlanned(ctx); err != nil {
		return plan, err
	}
	return plan, nil
}

// RunPlanned uploads and starts the pending plan, then blocks until the
// trajectory reaches a terminal state or ctx is done.
func (r *Rig) RunPlanned(ctx context.Context) error {
	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}
	sub := r.controller.Events().Subscribe(func(ev trajectory.Event) {
		switch ev.Kind {
		case trajectory.EventCompleted:
			finish(nil)
		case trajectory.EventFailed:
			finish(ev.Err)
		}
	})
	defer r.controller.Events().Unsubscribe(sub)

	if err := r.controller.Send(); err != nil {
		return err
	}
	if err := r.controller.Execute(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("rig: run: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("rig: run: %w", err)
		}
		return nil
	}
}

// relay fans every layer's events onto the merged notice stream and
// reacts to connection loss.
func (r *Rig) relay() {
	linkSub := r.link.States().Subscribe(func(sc link.StateChange) {
		if sc.To == link.StateDisconnected && sc.Err != nil {
			r.controller.Abort(fmt.Errorf("rig: connection lost: %w", sc.Err))
		}
		r.notices.Emit(Notice{Kind: NoticeLink, At: time.Now(), Link: &sc})
	})
	hbSub := r.supervisor.Failures().Subscribe(func(f heartbeat.Failure) {
		r.notices.Emit(Notice{Kind: NoticeHeartbeat, At: time.Now(), Heartbeat: &f})
	})
	stSub := r.monitor.Updates().Subscribe(func(u status.Update) {
		r.notices.Emit(Notice{Kind: NoticeStatus, At: time.Now(), Status: &u})
	})
	trSub := r.controller.Events().Subscribe(func(ev trajectory.Event) {
		r.notices.Emit(Notice{Kind: NoticeTrajectory, At: time.Now(), Trajectory: &ev})
	})

	r.detach = append(r.detach,
		func() { r.link.States().Unsubscribe(linkSub) },
		func() { r.supervisor.Failures().Unsubscribe(hbSub) },
		func() { r.monitor.Updates().Unsubscribe(stSub) },
		func() { r.controller.Events().Unsubscribe(trSub) },
	)
}
