package link

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateDisconnected, StateConnecting, true},
		{StateConnecting, StateConnected, true},
		{StateConnecting, StateDisconnected, true},
		{StateConnected, StateDisconnected, true},
		// Retry announcements re-enter Connecting.
		{StateConnecting, StateConnecting, true},
		{StateDisconnected, StateConnected, false},
		{StateConnected, StateConnecting, false},
		{StateDisconnected, StateDisconnected, false},
		{StateConnected, StateConnected, false},
	}
	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("canTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStateGauge(t *testing.T) {
	if g := StateDisconnected.gauge(); g != 0 {
		t.Errorf("disconnected gauge = %v, want 0", g)
	}
	if g := StateConnecting.gauge(); g != 1 {
		t.Errorf("connecting gauge = %v, want 1", g)
	}
	if g := StateConnected.gauge(); g != 2 {
		t.Errorf("connected gauge = %v, want 2", g)
	}
}
