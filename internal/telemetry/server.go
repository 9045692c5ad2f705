// Package telemetry is the HTTP bridge: REST operations, a websocket
// event feed, and prometheus metrics for one rig session.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/golang/geo/r3"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mittag-lab/maniplink/internal/config"
	"github.com/mittag-lab/maniplink/internal/event"
	"github.com/mittag-lab/maniplink/internal/kinematics"
	"github.com/mittag-lab/maniplink/internal/link"
	"github.com/mittag-lab/maniplink/internal/logging"
	"github.com/mittag-lab/maniplink/internal/rig"
	"github.com/mittag-lab/maniplink/internal/status"
	"github.com/mittag-lab/maniplink/internal/trajectory"
)

// Engine is the slice of the rig the bridge exposes over HTTP.
type Engine interface {
	Connected() bool
	LinkState() link.State
	Addr() string
	Snapshot() (status.Snapshot, bool)
	Status(ctx context.Context) (status.Snapshot, error)
	Step(delta r3.Vector) error
	Home(ctx context.Context) error
	PlanTo(ctx context.Context, target kinematics.Pose) (trajectory.Plan, error)
	PlanWaypoints(ctx context.Context, waypoints []kinematics.Pose) (trajectory.Plan, error)
	Send() error
	Execute() error
	ClearPlan() error
	TrajectoryState() trajectory.State
	CurrentPlan() (trajectory.Plan, bool)
	Notices() *event.Emitter[rig.Notice]
}

var _ Engine = (*rig.Rig)(nil)

// Server is the bridge HTTP server.
type Server struct {
	cfg    config.TelemetryConfig
	engine Engine
	hub    *hub
	httpd  *http.Server

	mu sync.Mutex
	// +checklocks:mu
	listener net.Listener
	// +checklocks:mu
	started bool
	// +checklocks:mu
	subID int
}

// New creates a bridge server for the engine. Start binds the socket.
func New(cfg config.TelemetryConfig, engine Engine) *Server {
	s := &Server{cfg: cfg, engine: engine, hub: newHub()}
	s.httpd = &http.Server{Handler: s.routes()}
	return s
}

// routes assembles the router. Exposed to tests through Handler.
func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/api/v1/status", s.getStatus)
	r.Post("/api/v1/step", s.postStep)
	r.Post("/api/v1/home", s.postHome)
	r.Post("/api/v1/path/plan", s.postPlan)
	r.Post("/api/v1/path/send", s.postSend)
	r.Post("/api/v1/path/execute", s.postExecute)
	r.Post("/api/v1/path/clear", s.postClear)
	r.Get("/api/v1/events/ws", s.eventsWebSocket)
	return r
}

// Handler returns the HTTP handler, for serving through httptest.
func (s *Server) Handler() http.Handler {
	return s.httpd.Handler
}

// Start binds the listen address and begins serving.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("telemetry: server already started")
	}
	s.mu.Unlock()

	listener, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("telemetry: listen: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.started = true
	s.subID = s.engine.Notices().Subscribe(s.relayNotice)
	s.mu.Unlock()

	slog.Info("telemetry bridge started", "addr", listener.Addr().String())

	go func() {
		defer logging.LogPanic("telemetry-server", nil)
		if err := s.httpd.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("telemetry server failed", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down, dropping websocket feeds immediately.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	subID := s.subID
	s.mu.Unlock()

	s.engine.Notices().Unsubscribe(subID)
	// Hijacked websocket connections sit outside Shutdown's drain.
	s.hub.closeAll()

	err := s.httpd.Shutdown(ctx)
	slog.Info("telemetry bridge stopped")
	return err
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

// relayNotice pushes one rig notice to every feed client.
func (s *Server) relayNotice(n rig.Notice) {
	s.hub.publish(toNoticeJSON(n))
}
