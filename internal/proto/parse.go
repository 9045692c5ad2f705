package proto

import (
	"fmt"
	"strings"

	"github.com/golang/geo/r3"
)

// statusTokens is the exact token count of a STATUS frame:
// prefix, id1, X, Y, Z, id2, X, Y, Z.
const statusTokens = 9

// ParseError reports a malformed inbound frame.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("proto: parse %q: %s", e.Line, e.Reason)
}

// UnitReport is one manipulator's slice of a STATUS frame, position in
// millimetres.
type UnitReport struct {
	ID       string
	Position r3.Vector
}

// Report is a fully parsed STATUS frame.
type Report struct {
	Left  UnitReport
	Right UnitReport
}

// ParseStatus validates and decodes a STATUS message. The frame must have
// exactly nine tokens and every coordinate must parse as a float; any
// defect returns a ParseError and no Report, so callers never observe a
// partially decoded frame.
func ParseStatus(m Message) (Report, error) {
	if m.Kind != KindStatus {
		return Report{}, &ParseError{Line: m.Raw, Reason: fmt.Sprintf("kind %s is not a status frame", m.Kind)}
	}
	if len(m.Fields) != statusTokens {
		return Report{}, &ParseError{Line: m.Raw, Reason: fmt.Sprintf("expected %d tokens, got %d", statusTokens, len(m.Fields))}
	}

	var r Report
	r.Left.ID = m.Fields[1]
	r.Right.ID = m.Fields[5]
	coords := []struct {
		dst   *float64
		token string
	}{
		{&r.Left.Position.X, m.Fields[2]},
		{&r.Left.Position.Y, m.Fields[3]},
		{&r.Left.Position.Z, m.Fields[4]},
		{&r.Right.Position.X, m.Fields[6]},
		{&r.Right.Position.Y, m.Fields[7]},
		{&r.Right.Position.Z, m.Fields[8]},
	}
	for _, c := range coords {
		mm, err := ParseMicrons(c.token)
		if err != nil {
			return Report{}, &ParseError{Line: m.Raw, Reason: fmt.Sprintf("bad coordinate %q", c.token)}
		}
		*c.dst = mm
	}
	return r, nil
}

// ParsePathCompleted extracts the manipulator IDs from a PATH_COMPLETED
// message. Frames without both IDs return a ParseError.
func ParsePathCompleted(m Message) (id1, id2 string, err error) {
	if m.Kind != KindPathCompleted {
		return "", "", &ParseError{Line: m.Raw, Reason: fmt.Sprintf("kind %s is not a path completion", m.Kind)}
	}
	if len(m.Fields) < 3 {
		return "", "", &ParseError{Line: m.Raw, Reason: "missing manipulator ids"}
	}
	return m.Fields[1], m.Fields[2], nil
}

// ParseRemoteError extracts the code and text of an error-class message.
// Missing tokens degrade to empty strings, a bare ERROR frame is still an
// error. Text spanning several tokens is rejoined.
func ParseRemoteError(m Message) (code, text string) {
	if len(m.Fields) > 1 {
		code = m.Fields[1]
	}
	if len(m.Fields) > 2 {
		text = strings.Join(m.Fields[2:], ", ")
	}
	return code, text
}
