package link

// State represents the connection lifecycle state.
type State string

const (
	// StateDisconnected means no socket is open.
	StateDisconnected State = "disconnected"

	// StateConnecting means a dial sequence is in progress.
	StateConnecting State = "connecting"

	// StateConnected means the socket is open and the listener is running.
	StateConnected State = "connected"
)

// validTransitions defines the allowed state transitions.
var validTransitions = map[State][]State{
	StateDisconnected: {StateConnecting},
	StateConnecting:   {StateConnected, StateDisconnected},
	StateConnected:    {StateDisconnected},
}

// canTransition checks if a transition is legal. Self-transitions are
// allowed for StateConnecting, which is how retry attempts surface.
func canTransition(from, to State) bool {
	if from == to {
		return from == StateConnecting
	}
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// StateChange is published on every connection state transition. Retry
// attempts appear as repeated transitions to StateConnecting carrying the
// previous dial error.
type StateChange struct {
	From State
	To   State
	// Err is non-nil when the transition was caused by a failure.
	Err error
}

// gauge maps the state to the connection_state metric value.
func (s State) gauge() float64 {
	switch s {
	case StateConnecting:
		return 1
	case StateConnected:
		return 2
	default:
		return 0
	}
}
