package link

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mittag-lab/maniplink/internal/config"
	"github.com/mittag-lab/maniplink/internal/proto"
)

// fakeController is a scripted TCP peer. The handler returns zero or more
// reply lines for each received command line.
type fakeController struct {
	t       *testing.T
	ln      net.Listener
	handler func(line string) []string

	mu       sync.Mutex
	conn     net.Conn
	received []string
}

func newFakeController(t *testing.T, handler func(string) []string) *fakeController {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	f := &fakeController{t: t, ln: ln, handler: handler}
	go f.acceptLoop()
	t.Cleanup(f.close)
	return f
}

func (f *fakeController) acceptLoop() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()
		go f.serve(conn)
	}
}

func (f *fakeController) serve(conn net.Conn) {
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		f.mu.Lock()
		f.received = append(f.received, line)
		f.mu.Unlock()
		if f.handler == nil {
			continue
		}
		for _, reply := range f.handler(line) {
			if _, err := conn.Write([]byte(reply + "\n")); err != nil {
				return
			}
		}
	}
}

// inject writes an unsolicited frame on the live connection.
func (f *fakeController) inject(line string) {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		f.t.Fatalf("inject %q: no connection", line)
	}
	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		f.t.Errorf("inject %q: %v", line, err)
	}
}

// dropConn severs the live connection from the controller side.
func (f *fakeController) dropConn() {
	f.mu.Lock()
	conn := f.conn
	f.conn = nil
	f.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (f *fakeController) close() {
	f.ln.Close()
	f.dropConn()
}

func (f *fakeController) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.received))
	copy(out, f.received)
	return out
}

// testConfig returns channel timings tightened for tests.
func testConfig(addr string) config.ControllerConfig {
	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)
	return config.ControllerConfig{
		Host:             host,
		Port:             port,
		ConnectTimeout:   config.Duration{Duration: 2 * time.Second},
		ResponseTimeout:  config.Duration{Duration: 300 * time.Millisecond},
		MaxRetryAttempts: 2,
		RetryDelay:       config.Duration{Duration: 50 * time.Millisecond},
		ReadSlice:        config.Duration{Duration: 20 * time.Millisecond},
	}
}

func mustConnect(t *testing.T, l *Link) {
	t.Helper()
	if err := l.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
}

func TestLink_ConnectAndClose(t *testing.T) {
	f := newFakeController(t, nil)
	l := New(testConfig(f.ln.Addr().String()))

	if l.State() != StateDisconnected {
		t.Fatalf("initial state = %s, want %s", l.State(), StateDisconnected)
	}

	mustConnect(t, l)
	if !l.IsConnected() {
		t.Fatal("IsConnected() = false after Connect")
	}

	if err := l.Connect(context.Background()); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second Connect() error = %v, want ErrAlreadyConnected", err)
	}

	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if l.IsConnected() {
		t.Fatal("IsConnected() = true after Close")
	}

	// Close is idempotent.
	if err := l.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if _, err := l.SendSync(context.Background(), proto.Heartbeat()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendSync after Close error = %v, want ErrNotConnected", err)
	}
	if err := l.SendAsync(proto.StartPath("1", "2")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendAsync after Close error = %v, want ErrNotConnected", err)
	}
}

func TestLink_ConnectRetry_Bounded(t *testing.T) {
	// Reserve a port with no listener behind it.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cfg := testConfig(addr)
	l := New(cfg)

	var changes []StateChange
	var mu sync.Mutex
	l.States().Subscribe(func(c StateChange) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})

	start := time.Now()
	err = l.Connect(context.Background())
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("Connect() succeeded against a dead port")
	}
	var cerr *ConnectError
	if !errors.As(err, &cerr) {
		t.Fatalf("Connect() error = %T, want *ConnectError", err)
	}
	if cerr.Attempts != 1+cfg.MaxRetryAttempts {
		t.Errorf("attempts = %d, want %d", cerr.Attempts, 1+cfg.MaxRetryAttempts)
	}

	// Two retry delays must have elapsed, and the sequence must not run
	// unbounded.
	if min := time.Duration(cfg.MaxRetryAttempts) * cfg.RetryDelay.Duration; elapsed < min {
		t.Errorf("elapsed = %v, want at least %v", elapsed, min)
	}

	mu.Lock()
	defer mu.Unlock()
	var retryNotices int
	for _, c := range changes {
		if c.From == StateConnecting && c.To == StateConnecting {
			retryNotices++
		}
	}
	if retryNotices != cfg.MaxRetryAttempts {
		t.Errorf("retry notifications = %d, want %d", retryNotices, cfg.MaxRetryAttempts)
	}
	last := changes[len(changes)-1]
	if last.To != StateDisconnected || last.Err == nil {
		t.Errorf("final change = %+v, want disconnected with error", last)
	}
}

func TestLink_ConnectRetry_SucceedsWhenControllerReturns(t *testing.T) {
	// Reserve a port, then bring the controller up mid-retry.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cfg := testConfig(addr)
	cfg.RetryDelay = config.Duration{Duration: 150 * time.Millisecond}
	l := New(cfg)

	go func() {
		time.Sleep(50 * time.Millisecond)
		late, lerr := net.Listen("tcp", addr)
		if lerr != nil {
			return
		}
		conn, aerr := late.Accept()
		if aerr == nil {
			defer conn.Close()
			time.Sleep(2 * time.Second)
		}
	}()

	if err := l.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v, want success on retry", err)
	}
	defer l.Close()

	if !l.IsConnected() {
		t.Fatal("IsConnected() = false after successful retry")
	}
}

func TestLink_SendSync_Reply(t *testing.T) {
	f := newFakeController(t, func(line string) []string {
		if strings.HasPrefix(line, proto.CmdGetStatus) {
			return []string{"STATUS,1,100.00,200.00,300.00,2,400.00,500.00,600.00"}
		}
		return nil
	})
	l := New(testConfig(f.ln.Addr().String()))
	mustConnect(t, l)
	defer l.Close()

	reply, err := l.SendSync(context.Background(), proto.GetStatus("1", "2"))
	if err != nil {
		t.Fatalf("SendSync() error = %v", err)
	}
	if reply.Kind != proto.KindStatus {
		t.Errorf("reply kind = %s, want %s", reply.Kind, proto.KindStatus)
	}
}

func TestLink_SendSync_TimeoutIsValueNotError(t *testing.T) {
	// Controller answers heartbeats but never GET_STATUS.
	f := newFakeController(t, func(line string) []string {
		if line == proto.CmdHeartbeat {
			return []string{proto.ReplyHeartbeatOK}
		}
		return nil
	})
	cfg := testConfig(f.ln.Addr().String())
	l := New(cfg)
	mustConnect(t, l)
	defer l.Close()

	start := time.Now()
	reply, err := l.SendSync(context.Background(), proto.GetStatus("1", "2"))
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("SendSync() error = %v, want synthetic reply value", err)
	}
	if !reply.IsTimeout() {
		t.Fatalf("reply = %+v, want synthetic timeout", reply)
	}
	if elapsed < cfg.ResponseTimeout.Duration {
		t.Errorf("returned after %v, before the %v response timeout", elapsed, cfg.ResponseTimeout.Duration)
	}

	// The link survives a timeout: the listener resumes and the next
	// exchange works.
	if !l.IsConnected() {
		t.Fatal("IsConnected() = false after sync timeout")
	}
	reply, err = l.SendSync(context.Background(), proto.Heartbeat())
	if err != nil {
		t.Fatalf("SendSync(HEARTBEAT) error = %v", err)
	}
	if reply.Kind != proto.KindHeartbeatOK {
		t.Errorf("reply kind = %s, want %s", reply.Kind, proto.KindHeartbeatOK)
	}
}

func TestLink_SendSync_ContextCanceled(t *testing.T) {
	f := newFakeController(t, nil)
	l := New(testConfig(f.ln.Addr().String()))
	mustConnect(t, l)
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.SendSync(ctx, proto.Heartbeat())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("SendSync() error = %v, want context.Canceled", err)
	}
}

func TestLink_ListenerPublishesAsyncFrames(t *testing.T) {
	f := newFakeController(t, nil)
	l := New(testConfig(f.ln.Addr().String()))
	mustConnect(t, l)
	defer l.Close()

	got := make(chan proto.Message, 4)
	l.Messages().Subscribe(func(m proto.Message) {
		got <- m
	})

	f.inject("STEP_COMPLETED, 1, 2")

	select {
	case m := <-got:
		if m.Kind != proto.KindStepCompleted {
			t.Errorf("published kind = %s, want %s", m.Kind, proto.KindStepCompleted)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("async frame never published")
	}
}

func TestLink_UnknownFrameStillPublished(t *testing.T) {
	f := newFakeController(t, nil)
	l := New(testConfig(f.ln.Addr().String()))
	mustConnect(t, l)
	defer l.Close()

	got := make(chan proto.Message, 4)
	l.Messages().Subscribe(func(m proto.Message) {
		got <- m
	})

	f.inject("FIRMWARE_BANNER,v2.1")

	select {
	case m := <-got:
		if m.Kind != proto.KindUnknown {
			t.Errorf("published kind = %s, want %s", m.Kind, proto.KindUnknown)
		}
		if m.Raw != "FIRMWARE_BANNER,v2.1" {
			t.Errorf("raw = %q", m.Raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("unknown frame never published")
	}
}

func TestLink_BlankLinesDiscarded(t *testing.T) {
	f := newFakeController(t, nil)
	l := New(testConfig(f.ln.Addr().String()))
	mustConnect(t, l)
	defer l.Close()

	got := make(chan proto.Message, 4)
	l.Messages().Subscribe(func(m proto.Message) {
		got <- m
	})

	// Blank and whitespace-only lines are noise between frames; they must
	// never surface as frames of their own. Lines arrive in write order,
	// so the first published message proves the noise was dropped.
	f.inject("")
	f.inject("   \t")
	f.inject("  STEP_COMPLETED, 1, 2  ")

	select {
	case m := <-got:
		if m.Kind != proto.KindStepCompleted {
			t.Fatalf("published kind = %s, want %s", m.Kind, proto.KindStepCompleted)
		}
		if m.Raw != "STEP_COMPLETED, 1, 2" {
			t.Errorf("raw = %q, want surrounding whitespace trimmed", m.Raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("frame after blank lines never published")
	}
}

func TestLink_AsyncFramesDuringSyncNotLost(t *testing.T) {
	// The reply and a trailing async frame arrive in one burst. The
	// first line is the reply; the second must still reach subscribers.
	f := newFakeController(t, func(line string) []string {
		if line == proto.CmdHeartbeat {
			return []string{proto.ReplyHeartbeatOK, "PATH_COMPLETED,1,2"}
		}
		return nil
	})
	l := New(testConfig(f.ln.Addr().String()))
	mustConnect(t, l)
	defer l.Close()

	got := make(chan proto.Message, 4)
	l.Messages().Subscribe(func(m proto.Message) {
		if m.Kind == proto.KindPathCompleted {
			got <- m
		}
	})

	reply, err := l.SendSync(context.Background(), proto.Heartbeat())
	if err != nil {
		t.Fatalf("SendSync() error = %v", err)
	}
	if reply.Kind != proto.KindHeartbeatOK {
		t.Fatalf("reply kind = %s, want %s", reply.Kind, proto.KindHeartbeatOK)
	}

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("trailing async frame was lost")
	}
}

func TestLink_SendAsync_PreservesOrder(t *testing.T) {
	f := newFakeController(t, nil)
	l := New(testConfig(f.ln.Addr().String()))
	mustConnect(t, l)
	defer l.Close()

	points := []proto.PathPoint{{}}
	if err := l.SendAsync(proto.PathData("1", "2", points)); err != nil {
		t.Fatalf("SendAsync(PATH_DATA) error = %v", err)
	}
	if err := l.SendAsync(proto.StartPath("1", "2")); err != nil {
		t.Fatalf("SendAsync(START_PATH) error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		cmds := f.commands()
		if len(cmds) >= 2 {
			if !strings.HasPrefix(cmds[0], proto.CmdPathData) {
				t.Errorf("first command = %q, want PATH_DATA", cmds[0])
			}
			if !strings.HasPrefix(cmds[1], proto.CmdStartPath) {
				t.Errorf("second command = %q, want START_PATH", cmds[1])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("controller saw %d commands, want 2", len(cmds))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLink_ControllerDropTearsDown(t *testing.T) {
	f := newFakeController(t, nil)
	l := New(testConfig(f.ln.Addr().String()))

	changes := make(chan StateChange, 8)
	l.States().Subscribe(func(c StateChange) {
		changes <- c
	})

	mustConnect(t, l)
	f.dropConn()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.To == StateDisconnected {
				if c.Err == nil {
					t.Error("teardown change carries no error")
				}
				if l.IsConnected() {
					t.Error("IsConnected() = true after teardown")
				}
				return
			}
		case <-deadline:
			t.Fatal("link never observed the dropped connection")
		}
	}
}

func TestLink_ReconnectAfterClose(t *testing.T) {
	f := newFakeController(t, func(line string) []string {
		if line == proto.CmdHeartbeat {
			return []string{proto.ReplyHeartbeatOK}
		}
		return nil
	})
	l := New(testConfig(f.ln.Addr().String()))

	mustConnect(t, l)
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	mustConnect(t, l)
	defer l.Close()

	reply, err := l.SendSync(context.Background(), proto.Heartbeat())
	if err != nil {
		t.Fatalf("SendSync() after reconnect error = %v", err)
	}
	if reply.Kind != proto.KindHeartbeatOK {
		t.Errorf("reply kind = %s, want %s", reply.Kind, proto.KindHeartbeatOK)
	}
}
