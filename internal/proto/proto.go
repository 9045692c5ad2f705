// Package proto defines the line protocol spoken by the motion controller.
//
// Frames are newline-terminated, comma-separated ASCII. Outbound commands
// carry linear values in micrometres with two decimal places; the engine
// works in millimetres internally and converts at this boundary. Inbound
// frames are classified by their first token only, the protocol has no
// correlation identifiers.
package proto

import (
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
)

// Mode distinguishes commands that expect an immediate reply from
// fire-and-forget commands.
type Mode string

const (
	// ModeSync commands block for one reply line (HEARTBEAT, GET_STATUS).
	ModeSync Mode = "sync"
	// ModeAsync commands return as soon as the bytes are written.
	ModeAsync Mode = "async"
)

// Outbound command verbs.
const (
	CmdHeartbeat = "HEARTBEAT"
	CmdGetStatus = "GET_STATUS"
	CmdStartStep = "START_STEP"
	CmdPathData  = "PATH_DATA"
	CmdStartPath = "START_PATH"
)

// MicronsPerMillimeter converts engine units to wire units.
const MicronsPerMillimeter = 1000.0

// Command is one outbound frame before encoding.
type Command struct {
	Verb string
	Args []string
	Mode Mode
}

// Encode renders the frame without its trailing newline.
func (c Command) Encode() string {
	if len(c.Args) == 0 {
		return c.Verb
	}
	return c.Verb + ", " + strings.Join(c.Args, ", ")
}

// PathPoint is one trajectory sample for both manipulators, in millimetres.
type PathPoint struct {
	Left  r3.Vector
	Right r3.Vector
}

// Heartbeat builds the liveness probe command.
func Heartbeat() Command {
	return Command{Verb: CmdHeartbeat, Mode: ModeSync}
}

// GetStatus builds the position query for both manipulators.
func GetStatus(id1, id2 string) Command {
	return Command{Verb: CmdGetStatus, Args: []string{id1, id2}, Mode: ModeSync}
}

// StartStep builds a single relative step command: both carriages jog by
// delta. Values are in millimetres and converted to micrometres on the
// wire.
func StartStep(id1, id2 string, delta r3.Vector) Command {
	return Command{
		Verb: CmdStartStep,
		Args: []string{id1, id2, FormatMicrons(delta.X), FormatMicrons(delta.Y), FormatMicrons(delta.Z)},
		Mode: ModeAsync,
	}
}

// PathData builds the trajectory upload command. Each point contributes
// six values, left manipulator XYZ then right manipulator XYZ.
func PathData(id1, id2 string, points []PathPoint) Command {
	args := make([]string, 0, 2+6*len(points))
	args = append(args, id1, id2)
	for _, p := range points {
		args = append(args,
			FormatMicrons(p.Left.X), FormatMicrons(p.Left.Y), FormatMicrons(p.Left.Z),
			FormatMicrons(p.Right.X), FormatMicrons(p.Right.Y), FormatMicrons(p.Right.Z),
		)
	}
	return Command{Verb: CmdPathData, Args: args, Mode: ModeAsync}
}

// StartPath builds the execution trigger for a previously uploaded trajectory.
func StartPath(id1, id2 string) Command {
	return Command{Verb: CmdStartPath, Args: []string{id1, id2}, Mode: ModeAsync}
}

// FormatMicrons renders a millimetre value as wire micrometres with two
// decimal places.
func FormatMicrons(mm float64) string {
	return strconv.FormatFloat(mm*MicronsPerMillimeter, 'f', 2, 64)
}

// ParseMicrons converts a wire micrometre token back to millimetres.
func ParseMicrons(token string) (float64, error) {
	um, err := strconv.ParseFloat(strings.TrimSpace(token), 64)
	if err != nil {
		return 0, err
	}
	return um / MicronsPerMillimeter, nil
}
