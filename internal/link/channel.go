package link

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/mittag-lab/maniplink/internal/metrics"
	"github.com/mittag-lab/maniplink/internal/proto"
)

// SendSync writes a command and blocks for its reply. The gate is held for
// the entire exchange, pausing the listener, and is always released on
// return.
//
// The protocol has no correlation ids: the first complete line that
// arrives after the write is treated as the reply, whatever its kind.
// Callers classify it themselves. When no line arrives within
// ResponseTimeout the returned message is a locally synthesized
// error-class frame with code TIMEOUT; that is a reply value, not a Go
// error. Go errors are reserved for transport failures, which also close
// the connection.
func (l *Link) SendSync(ctx context.Context, cmd proto.Command) (proto.Message, error) {
	conn, err := l.current()
	if err != nil {
		return proto.Message{}, err
	}

	start := time.Now()

	l.gate.Lock()
	// Whatever sits in the buffer predates this exchange and can only be
	// a stale fragment; it must not be mistaken for the reply.
	if n := len(l.pending); n > 0 {
		slog.Debug("discarding stale bytes before sync exchange", "bytes", n)
		l.pending = nil
	}

	if err := l.write(conn, cmd); err != nil {
		l.gate.Unlock()
		_ = conn.Close()
		return proto.Message{}, fmt.Errorf("link: send %s: %w", cmd.Verb, err)
	}

	reply, trailing, err := l.awaitReply(ctx, conn, cmd.Verb)
	l.gate.Unlock()

	// Frames that rode in behind the reply are ordinary async traffic.
	for _, line := range trailing {
		l.publish(line)
	}

	if err != nil {
		_ = conn.Close()
		return proto.Message{}, err
	}

	metrics.RecordRoundtrip(cmd.Verb, time.Since(start))
	if reply.IsTimeout() {
		metrics.RecordTimeout(cmd.Verb)
		slog.Warn("sync command timed out", "verb", cmd.Verb, "timeout", l.cfg.ResponseTimeout.Duration)
	} else {
		slog.Debug("sync reply received", "verb", cmd.Verb, "kind", reply.Kind)
	}
	return reply, nil
}

// awaitReply polls reads in ReadSlice deadlines until a complete line
// arrives or ResponseTimeout elapses. Called with the gate held.
//
// +checklocks:l.gate
func (l *Link) awaitReply(ctx context.Context, conn net.Conn, verb string) (proto.Message, []string, error) {
	deadline := time.Now().Add(l.cfg.ResponseTimeout.Duration)
	buf := make([]byte, 4096)

	for {
		if err := ctx.Err(); err != nil {
			return proto.Message{}, nil, fmt.Errorf("link: send %s: %w", verb, err)
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return proto.Timeout(verb), nil, nil
		}

		slice := l.cfg.ReadSlice.Duration
		if slice > remaining {
			slice = remaining
		}
		_ = conn.SetReadDeadline(time.Now().Add(slice))

		n, err := conn.Read(buf)
		if n > 0 {
			l.pending = append(l.pending, buf[:n]...)
		}
		if lines := l.extractLinesLocked(); len(lines) > 0 {
			return proto.Classify(lines[0]), lines[1:], nil
		}
		if err != nil && !isTimeout(err) {
			return proto.Message{}, nil, fmt.Errorf("link: await %s reply: %w", verb, err)
		}
	}
}

// SendAsync writes a fire-and-forget command. It returns once the bytes
// are on the wire; any outcome arrives later as an inbound frame.
func (l *Link) SendAsync(cmd proto.Command) error {
	conn, err := l.current()
	if err != nil {
		return err
	}
	if err := l.write(conn, cmd); err != nil {
		_ = conn.Close()
		return fmt.Errorf("link: send %s: %w", cmd.Verb, err)
	}
	return nil
}

// write serializes command writes so frames leave in call order.
func (l *Link) write(conn net.Conn, cmd proto.Command) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	_, err := conn.Write([]byte(cmd.Encode() + "\n"))
	_ = conn.SetWriteDeadline(time.Time{})
	if err != nil {
		return err
	}

	metrics.RecordCommand(cmd.Verb, string(cmd.Mode))
	slog.Debug("command sent", "verb", cmd.Verb, "mode", cmd.Mode)
	return nil
}

// extractLinesLocked splits complete lines out of the pending buffer,
// leaving any trailing fragment for the next read. Lines are trimmed of
// surrounding whitespace; blank lines never reach subscribers.
//
// +checklocks:l.gate
func (l *Link) extractLinesLocked() []string {
	var lines []string
	for {
		i := bytes.IndexByte(l.pending, '\n')
		if i < 0 {
			return lines
		}
		line := strings.TrimSpace(string(l.pending[:i]))
		l.pending = l.pending[i+1:]
		if line != "" {
			lines = append(lines, line)
		}
	}
}
