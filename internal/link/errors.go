package link

import (
	"errors"
	"fmt"

	"github.com/mittag-lab/maniplink/internal/proto"
)

// Sentinel errors for link operations.
// These can be checked using errors.Is().
var (
	// ErrNotConnected is returned when an operation is attempted without a connection.
	ErrNotConnected = errors.New("link: not connected")

	// ErrAlreadyConnected is returned when Connect is called on a live link.
	ErrAlreadyConnected = errors.New("link: already connected")
)

// ConnectError records an exhausted dial sequence.
type ConnectError struct {
	Addr     string
	Attempts int
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("link: connect %s failed after %d attempts: %v", e.Addr, e.Attempts, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// RemoteError represents an error-class reply to a sync command, either
// reported by the controller or synthesized locally on timeout.
type RemoteError struct {
	Verb string
	Code string
	Text string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed: %s %s", e.Verb, e.Code, e.Text)
}

// Timeout reports whether the reply was a locally synthesized timeout.
func (e *RemoteError) Timeout() bool {
	return e.Code == proto.TimeoutCode
}

// NewRemoteError builds a RemoteError from an error-class message.
func NewRemoteError(verb string, m proto.Message) *RemoteError {
	code, text := proto.ParseRemoteError(m)
	return &RemoteError{Verb: verb, Code: code, Text: text}
}
