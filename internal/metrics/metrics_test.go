package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordCommand(t *testing.T) {
	before := testutil.ToFloat64(commandsTotal.WithLabelValues("HEARTBEAT", "sync"))

	RecordCommand("HEARTBEAT", "sync")
	RecordCommand("HEARTBEAT", "sync")

	after := testutil.ToFloat64(commandsTotal.WithLabelValues("HEARTBEAT", "sync"))
	require.Equal(t, before+2, after)
}

func TestRecordTimeout(t *testing.T) {
	before := testutil.ToFloat64(commandTimeouts.WithLabelValues("GET_STATUS"))

	RecordTimeout("GET_STATUS")

	after := testutil.ToFloat64(commandTimeouts.WithLabelValues("GET_STATUS"))
	require.Equal(t, before+1, after)
}

func TestSetConnectionState(t *testing.T) {
	SetConnectionState(2)
	require.Equal(t, 2.0, testutil.ToFloat64(connectionState))

	SetConnectionState(0)
	require.Equal(t, 0.0, testutil.ToFloat64(connectionState))
}

func TestRecordHelpersDoNotPanic(t *testing.T) {
	// Helpers self-register; calling them in any order must be safe.
	RecordRoundtrip("GET_STATUS", 12*time.Millisecond)
	RecordMessage("status")
	RecordReconnectAttempt()
	RecordHeartbeatFailure()
	RecordPlan(42)
	RecordExecution("completed")
}
