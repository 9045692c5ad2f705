// Package sim implements an in-process stand-in for the motion
// controller, speaking its newline protocol over TCP. It backs the test
// suite and the bench bring-up command.
package sim

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/golang/geo/r3"

	"github.com/mittag-lab/maniplink/internal/config"
	"github.com/mittag-lab/maniplink/internal/logging"
	"github.com/mittag-lab/maniplink/internal/proto"
)

// Server is a TCP motion-controller simulator. Both carriages start at
// the configured home positions; START_STEP jogs them, an executed path
// walks them point by point.
type Server struct {
	addr  string
	left  string
	right string

	listener net.Listener // set in Start, closed in Stop

	mu sync.Mutex
	// +checklocks:mu
	conns map[net.Conn]*client
	// +checklocks:mu
	started bool
	// +checklocks:mu
	positions map[string]r3.Vector
	// +checklocks:mu
	path []proto.PathPoint
	// +checklocks:mu
	walking bool

	// Fault knobs, safe to flip while running.
	// +checklocks:mu
	muteHeartbeat bool
	// +checklocks:mu
	malformStatus bool
	// +checklocks:mu
	nextFault *fault
	// +checklocks:mu
	responseDelay time.Duration
	// +checklocks:mu
	walkTick time.Duration

	done chan struct{}
}

type fault struct {
	code string
	text string
}

// client wraps a connection with a write lock so command replies and
// walk notifications never interleave mid-frame.
type client struct {
	conn net.Conn
	mu   sync.Mutex
}

func (c *client) writeLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.conn.Write([]byte(line + "\n"))
	return err
}

// New creates a simulator bound to addr ("127.0.0.1:0" when empty).
func New(addr string, manips config.ManipulatorsConfig) *Server {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	return &Server{
		addr:  addr,
		left:  manips.Left,
		right: manips.Right,
		conns: make(map[net.Conn]*client),
		positions: map[string]r3.Vector{
			manips.Left:  manips.HomeLeftVec(),
			manips.Right: manips.HomeRightVec(),
		},
		walkTick: 2 * time.Millisecond,
		done:     make(chan struct{}),
	}
}

// Start begins listening. Returns an error if already running or the
// address cannot be bound.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("sim: server already started")
	}
	s.mu.Unlock()

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("sim: listen: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.started = true
	s.mu.Unlock()

	slog.Info("controller simulator started", "addr", listener.Addr().String())

	go s.acceptLoop()
	return nil
}

// Stop shuts the simulator down and drops every connection.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	clients := make([]*client, 0, len(s.conns))
	for _, c := range s.conns {
		clients = append(clients, c)
	}
	s.conns = make(map[net.Conn]*client)
	s.mu.Unlock()

	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}
	for _, c := range clients {
		c.conn.Close()
	}

	slog.Info("controller simulator stopped")
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				slog.Error("simulator accept failed", "error", err)
				continue
			}
		}

		c := &client{conn: conn}
		s.mu.Lock()
		s.conns[conn] = c
		count := len(s.conns)
		s.mu.Unlock()

		slog.Debug("simulator client connected", "connections", count)
		go s.serve(c)
	}
}

func (s *Server) serve(c *client) {
	defer func() {
		c.conn.Close()
		s.mu.Lock()
		delete(s.conns, c.conn)
		count := len(s.conns)
		s.mu.Unlock()
		slog.Debug("simulator client disconnected", "connections", count)
	}()

	sc := bufio.NewScanner(c.conn)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		s.mu.Lock()
		delay := s.responseDelay
		s.mu.Unlock()
		if delay > 0 {
			time.Sleep(delay)
		}

		for _, reply := range s.handle(c, line) {
			if err := c.writeLine(reply); err != nil {
				return
			}
		}
	}
}

// handle interprets one command line and returns its immediate replies.
// Path walks run on their own goroutine.
func (s *Server) handle(c *client, line string) []string {
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	switch fields[0] {
	case proto.CmdHeartbeat:
		return s.heartbeat()
	case proto.CmdGetStatus:
		return s.status()
	case proto.CmdStartStep:
		return s.step(fields)
	case proto.CmdPathData:
		return s.pathData(fields)
	case proto.CmdStartPath:
		return s.startPath(c, fields)
	default:
		slog.Debug("simulator rejecting unknown command", "line", line)
		return []string{errorFrame("UNKNOWN_COMMAND", fields[0])}
	}
}

func (s *Server) heartbeat() []string {
	s.mu.Lock()
	muted := s.muteHeartbeat
	s.mu.Unlock()
	if muted {
		return nil
	}
	return []string{proto.ReplyHeartbeatOK}
}

func (s *Server) status() []string {
	s.mu.Lock()
	left := s.positions[s.left]
	right := s.positions[s.right]
	malformed := s.malformStatus
	s.mu.Unlock()

	tokens := []string{
		proto.ReplyStatus,
		s.left,
		proto.FormatMicrons(left.X), proto.FormatMicrons(left.Y), proto.FormatMicrons(left.Z),
		s.right,
		proto.FormatMicrons(right.X), proto.FormatMicrons(right.Y), proto.FormatMicrons(right.Z),
	}
	if malformed {
		// One coordinate short of a valid frame.
		tokens = tokens[:len(tokens)-1]
	}
	return []string{strings.Join(tokens, ",")}
}

func (s *Server) step(fields []string) []string {
	if len(fields) != 6 {
		return []string{errorFrame("BAD_ARGS", "START_STEP expects 5 arguments")}
	}
	if reply := s.checkIDs(fields[1], fields[2]); reply != "" {
		return []string{reply}
	}

	var delta r3.Vector
	for i, dst := range []*float64{&delta.X, &delta.Y, &delta.Z} {
		mm, err := proto.ParseMicrons(fields[3+i])
		if err != nil {
			return []string{errorFrame("BAD_ARGS", "unparseable coordinate "+fields[3+i])}
		}
		*dst = mm
	}

	s.mu.Lock()
	s.positions[s.left] = s.positions[s.left].Add(delta)
	s.positions[s.right] = s.positions[s.right].Add(delta)
	s.mu.Unlock()

	return []string{proto.ReplyStepCompleted + "," + fields[1] + "," + fields[2]}
}

func (s *Server) pathData(fields []string) []string {
	coords := len(fields) - 3
	if len(fields) < 9 || coords%6 != 0 {
		return []string{errorFrame("BAD_PATH", "PATH_DATA expects six coordinates per point")}
	}
	if reply := s.checkIDs(fields[1], fields[2]); reply != "" {
		return []string{reply}
	}

	points := make([]proto.PathPoint, coords/6)
	for i := range points {
		var vals [6]float64
		for j := 0; j < 6; j++ {
			mm, err := proto.ParseMicrons(fields[3+i*6+j])
			if err != nil {
				return []string{errorFrame("BAD_PATH", "unparseable coordinate "+fields[3+i*6+j])}
			}
			vals[j] = mm
		}
		points[i] = proto.PathPoint{
			Left:  r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]},
			Right: r3.Vector{X: vals[3], Y: vals[4], Z: vals[5]},
		}
	}

	s.mu.Lock()
	s.path = points
	s.mu.Unlock()

	slog.Debug("simulator stored path", "points", len(points))
	return []string{proto.ReplyPathDataAck + "," + fields[1] + "," + fields[2]}
}

func (s *Server) startPath(c *client, fields []string) []string {
	if len(fields) != 3 {
		return []string{errorFrame("BAD_ARGS", "START_PATH expects 2 arguments")}
	}
	if reply := s.checkIDs(fields[1], fields[2]); reply != "" {
		return []string{reply}
	}

	s.mu.Lock()
	if s.walking {
		s.mu.Unlock()
		return []string{errorFrame("BUSY", "path execution in progress")}
	}
	if len(s.path) == 0 {
		s.mu.Unlock()
		return []string{errorFrame("NO_PATH", "no stored path")}
	}
	points := s.path
	f := s.nextFault
	s.nextFault = nil
	tick := s.walkTick
	s.walking = true
	s.mu.Unlock()

	go s.walk(c, points, f, tick, fields[1], fields[2])
	return []string{proto.ReplyPathStarted}
}

// walk replays the stored path, updating the position table, then
// reports completion. A scheduled fault fires at the halfway mark.
func (s *Server) walk(c *client, points []proto.PathPoint, f *fault, tick time.Duration, id1, id2 string) {
	defer logging.LogPanic("sim-walk", nil)
	defer func() {
		s.mu.Lock()
		s.walking = false
		s.mu.Unlock()
	}()

	for i, p := range points {
		select {
		case <-s.done:
			return
		case <-time.After(tick):
		}

		if f != nil && i >= len(points)/2 {
			if err := c.writeLine(errorFrame(f.code, f.text)); err != nil {
				slog.Debug("simulator fault write failed", "error", err)
			}
			return
		}

		s.mu.Lock()
		s.positions[s.left] = p.Left
		s.positions[s.right] = p.Right
		s.mu.Unlock()
	}

	if err := c.writeLine(proto.ReplyPathCompleted + "," + id1 + "," + id2); err != nil {
		slog.Debug("simulator completion write failed", "error", err)
	}
}

// checkIDs validates the unit ids on a command, returning an error frame
// for unknown units.
func (s *Server) checkIDs(id1, id2 string) string {
	if id1 != s.left || id2 != s.right {
		return errorFrame("UNKNOWN_UNIT", id1+"/"+id2)
	}
	return ""
}

func errorFrame(code, text string) string {
	return strings.Join([]string{proto.ReplyError, code, text}, ",")
}

// Broadcast pushes one unsolicited frame to every connected client.
func (s *Server) Broadcast(line string) {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.conns))
	for _, c := range s.conns {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.writeLine(line); err != nil {
			slog.Debug("simulator broadcast failed", "error", err)
		}
	}
}

// SetPositions moves both carriages instantly, in millimetres.
func (s *Server) SetPositions(left, right r3.Vector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[s.left] = left
	s.positions[s.right] = right
}

// Positions reports the current carriage positions in millimetres.
func (s *Server) Positions() (left, right r3.Vector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positions[s.left], s.positions[s.right]
}

// StoredPath returns a copy of the last uploaded path.
func (s *Server) StoredPath() []proto.PathPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]proto.PathPoint, len(s.path))
	copy(out, s.path)
	return out
}

// MuteHeartbeat makes the simulator swallow liveness probes.
func (s *Server) MuteHeartbeat(mute bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muteHeartbeat = mute
}

// MalformStatus makes STATUS replies come back one token short.
func (s *Server) MalformStatus(malform bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.malformStatus = malform
}

// FailNextPath schedules an ERROR frame mid-walk for the next execution.
func (s *Server) FailNextPath(code, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextFault = &fault{code: code, text: text}
}

// SetResponseDelay stalls every command reply by d.
func (s *Server) SetResponseDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responseDelay = d
}

// SetWalkTick sets the per-point pacing of path execution.
func (s *Server) SetWalkTick(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.walkTick = d
}
