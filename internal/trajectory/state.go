package trajectory

// State is the lifecycle phase of the current trajectory.
type State string

const (
	// StateIdle means no trajectory work is pending.
	StateIdle State = "idle"
	// StatePlanning means a plan is being built.
	StatePlanning State = "planning"
	// StateAwaitingSend means a ready plan is cached but not uploaded.
	StateAwaitingSend State = "awaiting_send"
	// StateSent means the plan has been uploaded to the controller.
	StateSent State = "sent"
	// StateExecuting means the controller is tracking the path.
	StateExecuting State = "executing"
	// StateCompleted means the last execution finished.
	StateCompleted State = "completed"
	// StateFailed means planning, upload, or execution failed.
	StateFailed State = "failed"
)

// Valid state transitions.
var validTransitions = map[State][]State{
	StateIdle:         {StatePlanning},
	StatePlanning:     {StateAwaitingSend, StateFailed},
	StateAwaitingSend: {StateSent, StatePlanning, StateIdle, StateFailed},
	StateSent:         {StateExecuting, StateFailed},
	StateExecuting:    {StateCompleted, StateFailed},
	StateCompleted:    {StatePlanning, StateIdle}, // re-planning resets
	StateFailed:       {StatePlanning, StateIdle}, // re-planning resets
}

// EventKind classifies controller events.
type EventKind string

const (
	// EventPlanned fires when a plan becomes ready.
	EventPlanned EventKind = "planned"
	// EventSent fires when a plan has been written to the wire.
	EventSent EventKind = "sent"
	// EventExecuting fires when execution has been requested.
	EventExecuting EventKind = "executing"
	// EventAcknowledged fires when the controller confirms a received plan.
	EventAcknowledged EventKind = "acknowledged"
	// EventStarted fires when the controller reports tracking has begun.
	EventStarted EventKind = "started"
	// EventCompleted fires when the controller reports the path finished.
	EventCompleted EventKind = "completed"
	// EventFailed fires on any terminal failure. Err carries the cause.
	EventFailed EventKind = "failed"
	// EventCleared fires when cached state is dropped.
	EventCleared EventKind = "cleared"
)

// Event is published on every observable controller change. IDs is set
// on completion only and carries the unit identifiers echoed by the
// controller's report.
type Event struct {
	Kind   EventKind
	State  State
	PlanID string
	IDs    [2]string
	Err    error
}
