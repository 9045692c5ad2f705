// Package link manages the TCP connection to the motion controller and the
// command channel multiplexed over it.
//
// One socket carries both command disciplines. Sync commands block for a
// single reply line; async commands return once written. A dedicated
// listener goroutine owns socket reads through an explicit gate mutex, and
// SendSync holds that gate for its whole exchange, so the listener can
// never consume a sync reply.
package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/mittag-lab/maniplink/internal/config"
	"github.com/mittag-lab/maniplink/internal/event"
	"github.com/mittag-lab/maniplink/internal/logging"
	"github.com/mittag-lab/maniplink/internal/metrics"
	"github.com/mittag-lab/maniplink/internal/proto"
)

// WriteTimeout bounds a single command write.
const WriteTimeout = 5 * time.Second

// Link is the connection manager and protocol channel.
type Link struct {
	cfg config.ControllerConfig

	mu sync.Mutex
	// +checklocks:mu
	conn net.Conn
	// +checklocks:mu
	state State
	// +checklocks:mu
	stopCh chan struct{}
	// +checklocks:mu
	doneCh chan struct{}

	// gate serializes socket reads between the listener and SendSync.
	// Whoever holds it owns the read side of the connection.
	gate sync.Mutex
	// +checklocks:gate
	pending []byte

	// writeMu serializes writes so commands leave in call order.
	writeMu sync.Mutex

	messages event.Emitter[proto.Message]
	states   event.Emitter[StateChange]
}

// New creates a disconnected link for the given controller endpoint.
func New(cfg config.ControllerConfig) *Link {
	return &Link{cfg: cfg, state: StateDisconnected}
}

// Messages returns the emitter carrying every classified inbound frame
// except sync replies, which are consumed by their SendSync call.
func (l *Link) Messages() *event.Emitter[proto.Message] {
	return &l.messages
}

// States returns the emitter carrying connection state transitions.
func (l *Link) States() *event.Emitter[StateChange] {
	return &l.states
}

// State returns the current connection state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// IsConnected returns true while the socket is open.
func (l *Link) IsConnected() bool {
	return l.State() == StateConnected
}

// Addr returns the controller endpoint this link dials.
func (l *Link) Addr() string {
	return l.cfg.Addr()
}

// Connect dials the controller. A failed dial is retried up to
// MaxRetryAttempts times with a fixed RetryDelay pause; retry never nests,
// the attempts inside one Connect call dial directly. When every attempt
// fails the last dial error is returned wrapped in a ConnectError.
func (l *Link) Connect(ctx context.Context) error {
	l.mu.Lock()
	if l.conn != nil {
		l.mu.Unlock()
		return ErrAlreadyConnected
	}
	l.mu.Unlock()

	l.setState(StateConnecting, nil)

	conn, err := l.dial(ctx)
	if err == nil {
		l.start(conn)
		return nil
	}

	attempts := 1
	for i := 0; i < l.cfg.MaxRetryAttempts; i++ {
		select {
		case <-ctx.Done():
			l.setState(StateDisconnected, ctx.Err())
			return fmt.Errorf("link: connect %s: %w", l.cfg.Addr(), ctx.Err())
		case <-time.After(l.cfg.RetryDelay.Duration):
		}

		metrics.RecordReconnectAttempt()
		slog.Info("retrying controller connection",
			"addr", l.cfg.Addr(),
			"attempt", attempts+1,
			"error", err,
		)
		// Announce the attempt to subscribers with the prior failure.
		l.setState(StateConnecting, err)

		conn, derr := l.dial(ctx)
		if derr == nil {
			l.start(conn)
			return nil
		}
		err = derr
		attempts++
	}

	l.setState(StateDisconnected, err)
	return &ConnectError{Addr: l.cfg.Addr(), Attempts: attempts, Err: err}
}

// dial makes one connection attempt.
func (l *Link) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: l.cfg.ConnectTimeout.Duration}
	return d.DialContext(ctx, "tcp", l.cfg.Addr())
}

// start installs the socket and launches the listener.
func (l *Link) start(conn net.Conn) {
	l.mu.Lock()
	l.conn = conn
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	stop, done := l.stopCh, l.doneCh
	l.mu.Unlock()

	l.gate.Lock()
	l.pending = nil
	l.gate.Unlock()

	l.setState(StateConnected, nil)
	slog.Info("controller connected", "addr", l.cfg.Addr())

	go l.listen(conn, stop, done)
}

// Close stops the listener, closes the socket, and marks the link
// disconnected, in that order. It is idempotent and safe to call
// concurrently.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.conn == nil {
		l.mu.Unlock()
		return nil
	}
	conn := l.conn
	if l.stopCh != nil {
		close(l.stopCh)
		l.stopCh = nil
	}
	done := l.doneCh
	l.mu.Unlock()

	// Poke the listener out of its current read.
	_ = conn.SetReadDeadline(time.Now())
	if done != nil {
		<-done
	}

	l.mu.Lock()
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
	l.doneCh = nil
	l.mu.Unlock()

	l.setState(StateDisconnected, nil)
	slog.Info("controller disconnected", "addr", l.cfg.Addr())
	return nil
}

// teardown is the listener's exit path for a dead socket.
func (l *Link) teardown(err error) {
	l.mu.Lock()
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
	l.stopCh = nil
	l.mu.Unlock()

	slog.Warn("controller connection lost", "addr", l.cfg.Addr(), "error", err)
	l.setState(StateDisconnected, err)
}

// current returns the live socket or ErrNotConnected.
func (l *Link) current() (net.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil, ErrNotConnected
	}
	return l.conn, nil
}

// setState applies a transition and publishes it. Redundant error-free
// transitions are dropped so teardown and Close do not double-report.
func (l *Link) setState(to State, err error) {
	l.mu.Lock()
	from := l.state
	if from == to && err == nil {
		l.mu.Unlock()
		return
	}
	if !canTransition(from, to) {
		l.mu.Unlock()
		slog.Error("invalid link state transition", "from", from, "to", to)
		return
	}
	l.state = to
	l.mu.Unlock()

	metrics.SetConnectionState(to.gauge())
	slog.Debug("link state changed", "from", from, "to", to, "error", err)
	l.states.Emit(StateChange{From: from, To: to, Err: err})
}

// listen is the dedicated reader goroutine. Each iteration acquires the
// gate, reads one slice, and releases the gate before publishing, so
// subscribers may issue commands from their handlers.
func (l *Link) listen(conn net.Conn, stop, done chan struct{}) {
	defer logging.LogPanic("link-listener", nil)
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		lines, err := l.readSlice(conn)
		for _, line := range lines {
			l.publish(line)
		}
		if err != nil {
			if isTimeout(err) {
				continue
			}
			select {
			case <-stop:
				// Close() owns the socket now.
				return
			default:
			}
			l.teardown(fmt.Errorf("link: read: %w", err))
			return
		}
	}
}

// readSlice reads under the gate for at most one ReadSlice period and
// returns any complete lines that accumulated.
func (l *Link) readSlice(conn net.Conn) ([]string, error) {
	l.gate.Lock()
	defer l.gate.Unlock()

	_ = conn.SetReadDeadline(time.Now().Add(l.cfg.ReadSlice.Duration))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if n > 0 {
		l.pending = append(l.pending, buf[:n]...)
	}
	return l.extractLinesLocked(), err
}

// publish classifies a frame and fans it out.
func (l *Link) publish(line string) {
	msg := proto.Classify(line)
	metrics.RecordMessage(string(msg.Kind))
	if msg.Kind == proto.KindUnknown {
		slog.Warn("unclassified frame", "line", line)
	} else {
		slog.Debug("frame received", "kind", msg.Kind, "line", line)
	}
	l.messages.Emit(msg)
}

// isTimeout reports whether a read failed only because its deadline hit.
func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
