package proto

import "strings"

// Kind is the message class derived from an inbound frame's first token.
type Kind string

const (
	// KindStatus is a position report for both manipulators.
	KindStatus Kind = "status"
	// KindHeartbeatOK acknowledges a liveness probe.
	KindHeartbeatOK Kind = "heartbeat_ok"
	// KindPathStarted reports that trajectory execution has begun.
	KindPathStarted Kind = "path_started"
	// KindPathDataAck acknowledges a trajectory upload.
	KindPathDataAck Kind = "path_data_ack"
	// KindPathCompleted reports that trajectory execution has finished.
	KindPathCompleted Kind = "path_completed"
	// KindStepCompleted reports that a single step has finished.
	KindStepCompleted Kind = "step_completed"
	// KindError is a fault report, remote or synthesized locally.
	KindError Kind = "error"
	// KindUnknown covers frames with an unrecognized prefix. They are
	// logged and published but never interpreted.
	KindUnknown Kind = "unknown"
)

// Inbound frame prefixes.
const (
	ReplyStatus        = "STATUS"
	ReplyHeartbeatOK   = "HEARTBEAT_OK"
	ReplyPathStarted   = "PATH_TRACKING_STARTED"
	ReplyPathDataAck   = "PATH_DATA_RECEIVED"
	ReplyPathCompleted = "PATH_COMPLETED"
	ReplyStepCompleted = "STEP_COMPLETED"
	ReplyError         = "ERROR"
)

// TimeoutCode is the error code carried by locally synthesized timeout
// messages, distinguishing them from controller-reported faults.
const TimeoutCode = "TIMEOUT"

var kindByPrefix = map[string]Kind{
	ReplyStatus:        KindStatus,
	ReplyHeartbeatOK:   KindHeartbeatOK,
	ReplyPathStarted:   KindPathStarted,
	ReplyPathDataAck:   KindPathDataAck,
	ReplyPathCompleted: KindPathCompleted,
	ReplyStepCompleted: KindStepCompleted,
	ReplyError:         KindError,
}

// Message is one classified inbound frame. Fields holds every
// comma-separated token including the prefix, whitespace-trimmed.
type Message struct {
	Kind   Kind
	Raw    string
	Fields []string
}

// Classify splits an inbound line into tokens and assigns its Kind by
// prefix. Unrecognized prefixes yield KindUnknown rather than an error.
func Classify(line string) Message {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, ",")
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	kind, ok := kindByPrefix[fields[0]]
	if !ok {
		kind = KindUnknown
	}
	return Message{Kind: kind, Raw: line, Fields: fields}
}

// Timeout synthesizes an error-class message for a sync command that
// received no reply in time. It is returned as a value, not a Go error,
// so callers handle it through the same path as controller faults.
func Timeout(verb string) Message {
	raw := ReplyError + "," + TimeoutCode + ",no reply to " + verb
	return Message{
		Kind:   KindError,
		Raw:    raw,
		Fields: []string{ReplyError, TimeoutCode, "no reply to " + verb},
	}
}

// IsError reports whether the message is error-class.
func (m Message) IsError() bool {
	return m.Kind == KindError
}

// IsTimeout reports whether the message is a locally synthesized timeout.
func (m Message) IsTimeout() bool {
	return m.Kind == KindError && len(m.Fields) > 1 && m.Fields[1] == TimeoutCode
}
