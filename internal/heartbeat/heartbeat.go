// Package heartbeat probes controller liveness over the command channel.
package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mittag-lab/maniplink/internal/config"
	"github.com/mittag-lab/maniplink/internal/event"
	"github.com/mittag-lab/maniplink/internal/logging"
	"github.com/mittag-lab/maniplink/internal/metrics"
	"github.com/mittag-lab/maniplink/internal/proto"
)

// ErrUnhealthy means the controller failed a liveness probe.
var ErrUnhealthy = errors.New("heartbeat: controller unhealthy")

// Channel is the slice of the link the prober needs.
type Channel interface {
	SendSync(ctx context.Context, cmd proto.Command) (proto.Message, error)
}

// Probe issues one HEARTBEAT exchange and verifies the acknowledgment.
// Anything but a clean HEARTBEAT_OK within timeout is unhealthy.
//
// timeout bounds the whole exchange, including time spent waiting for
// the channel. Keep it above the channel's own response timeout so a
// silent controller comes back as a timeout reply on a live socket
// rather than a canceled exchange that closes it.
func Probe(ctx context.Context, ch Channel, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reply, err := ch.SendSync(ctx, proto.Heartbeat())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if reply.Kind != proto.KindHeartbeatOK {
		return fmt.Errorf("%w: unexpected reply %q", ErrUnhealthy, reply.Raw)
	}
	return nil
}

// Failure is published after each failed probe.
type Failure struct {
	Err         error
	Consecutive int
}

// Supervisor probes on a fixed interval and reports failures on its
// emitter. It only observes; reconnect policy stays with the caller.
type Supervisor struct {
	ch       Channel
	interval time.Duration
	timeout  time.Duration

	failures event.Emitter[Failure]

	mu sync.Mutex
	// +checklocks:mu
	consecutive int
	// +checklocks:mu
	stopCh chan struct{}
	// +checklocks:mu
	doneCh chan struct{}
}

// NewSupervisor creates a supervisor for the given channel.
func NewSupervisor(ch Channel, cfg config.HeartbeatConfig) *Supervisor {
	return &Supervisor{
		ch:       ch,
		interval: cfg.Interval.Duration,
		timeout:  cfg.Timeout.Duration,
	}
}

// Failures exposes the supervisor's failure stream.
func (s *Supervisor) Failures() *event.Emitter[Failure] {
	return &s.failures
}

// Start begins the probe loop. Starting a running supervisor is a no-op.
func (s *Supervisor) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopCh != nil {
		select {
		case <-s.stopCh:
			// Stopped earlier, fine to restart.
		default:
			return
		}
	}

	s.consecutive = 0
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.run(s.stopCh, s.doneCh)
}

// Stop halts the probe loop and waits for it to finish.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.mu.Unlock()

	if stopCh == nil {
		return
	}
	select {
	case <-stopCh:
	default:
		close(stopCh)
	}
	if doneCh != nil {
		<-doneCh
	}
}

func (s *Supervisor) run(stopCh, doneCh chan struct{}) {
	defer logging.LogPanic("heartbeat-supervisor", nil)
	defer close(doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.probe()
		}
	}
}

func (s *Supervisor) probe() {
	err := Probe(context.Background(), s.ch, s.timeout)
	if err == nil {
		s.mu.Lock()
		recovered := s.consecutive > 0
		s.consecutive = 0
		s.mu.Unlock()
		if recovered {
			slog.Info("controller heartbeat recovered")
		}
		return
	}

	s.mu.Lock()
	s.consecutive++
	n := s.consecutive
	s.mu.Unlock()

	metrics.RecordHeartbeatFailure()
	slog.Warn("controller heartbeat failed", "consecutive", n, "error", err)
	s.failures.Emit(Failure{Err: err, Consecutive: n})
}
