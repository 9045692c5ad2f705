package trajectory

import (
	"errors"
	"fmt"
)

// Errors returned by controller operations.
var (
	ErrInvalidTransition = errors.New("trajectory: invalid state transition")
	// ErrNoPlan means Send was called without a ready plan.
	ErrNoPlan = errors.New("trajectory: no ready plan")
	// ErrNotSent means Execute was called before the plan was uploaded.
	ErrNotSent = errors.New("trajectory: plan has not been transmitted")
	// ErrExecutionInFlight rejects a second execution of the same upload.
	ErrExecutionInFlight = errors.New("trajectory: execution already in flight")
	// ErrBusy rejects operations that would disturb a transmitted plan.
	ErrBusy = errors.New("trajectory: trajectory in flight")
	// ErrNoWaypoints means a waypoint plan was requested with no points.
	ErrNoWaypoints = errors.New("trajectory: waypoint list is empty")
)

// PlanningError wraps a failure while building a plan.
type PlanningError struct {
	Err error
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("trajectory: planning failed: %v", e.Err)
}

func (e *PlanningError) Unwrap() error { return e.Err }

// TransmissionError wraps a failure while uploading or starting a plan.
type TransmissionError struct {
	Err error
}

func (e *TransmissionError) Error() string {
	return fmt.Sprintf("trajectory: transmission failed: %v", e.Err)
}

func (e *TransmissionError) Unwrap() error { return e.Err }

// ExecutionError reports a controller fault during path execution.
type ExecutionError struct {
	Code string
	Text string
}

func (e *ExecutionError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("trajectory: execution failed: %s", e.Code)
	}
	return fmt.Sprintf("trajectory: execution failed: %s: %s", e.Code, e.Text)
}
