package proto

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	m := Classify("STATUS,1,1000.00,2000.00,3000.00,2,-1000.00,0.00,500.00")

	r, err := ParseStatus(m)
	require.NoError(t, err)

	require.Equal(t, "1", r.Left.ID)
	require.InDelta(t, 1.0, r.Left.Position.X, 1e-9)
	require.InDelta(t, 2.0, r.Left.Position.Y, 1e-9)
	require.InDelta(t, 3.0, r.Left.Position.Z, 1e-9)

	require.Equal(t, "2", r.Right.ID)
	require.InDelta(t, -1.0, r.Right.Position.X, 1e-9)
	require.InDelta(t, 0.0, r.Right.Position.Y, 1e-9)
	require.InDelta(t, 0.5, r.Right.Position.Z, 1e-9)
}

func TestParseStatus_TokenCount(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"too few", "STATUS,1,0.00,0.00,0.00,2,0.00,0.00"},
		{"too many", "STATUS,1,0.00,0.00,0.00,2,0.00,0.00,0.00,extra"},
		{"bare prefix", "STATUS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStatus(Classify(tt.line))
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			require.Equal(t, tt.line, perr.Line)
		})
	}
}

func TestParseStatus_BadCoordinate(t *testing.T) {
	_, err := ParseStatus(Classify("STATUS,1,0.00,oops,0.00,2,0.00,0.00,0.00"))

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	require.Contains(t, perr.Reason, "oops")
}

func TestParseStatus_WrongKind(t *testing.T) {
	_, err := ParseStatus(Classify("HEARTBEAT_OK"))
	require.Error(t, err)
}

func TestParsePathCompleted(t *testing.T) {
	id1, id2, err := ParsePathCompleted(Classify("PATH_COMPLETED,1,2"))

	require.NoError(t, err)
	require.Equal(t, "1", id1)
	require.Equal(t, "2", id2)
}

func TestParsePathCompleted_MissingIDs(t *testing.T) {
	_, _, err := ParsePathCompleted(Classify("PATH_COMPLETED,1"))
	require.Error(t, err)

	_, _, err = ParsePathCompleted(Classify("PATH_COMPLETED"))
	require.Error(t, err)
}

func TestParsePathCompleted_WrongKind(t *testing.T) {
	_, _, err := ParsePathCompleted(Classify("STEP_COMPLETED,1,2"))
	require.Error(t, err)
}

func TestParseRemoteError(t *testing.T) {
	code, text := ParseRemoteError(Classify("ERROR,E14,limit switch tripped"))
	require.Equal(t, "E14", code)
	require.Equal(t, "limit switch tripped", text)

	code, text = ParseRemoteError(Classify("ERROR,E05,tracking fault, axis 2"))
	require.Equal(t, "E05", code)
	require.Equal(t, "tracking fault, axis 2", text)

	code, text = ParseRemoteError(Classify("ERROR"))
	require.Empty(t, code)
	require.Empty(t, text)
}
