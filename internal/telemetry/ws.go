package telemetry

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mittag-lab/maniplink/internal/id"
	"github.com/mittag-lab/maniplink/internal/rig"
)

const outboundBufferSize = 64

var upgrader = websocket.Upgrader{
	// The bridge binds to loopback; origin checks add nothing there.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// noticeJSON is the feed envelope. Exactly one payload field is set.
type noticeJSON struct {
	Kind       string               `json:"kind"`
	At         time.Time            `json:"at"`
	Link       *linkNoticeJSON      `json:"link,omitempty"`
	Heartbeat  *heartbeatJSON       `json:"heartbeat,omitempty"`
	Status     *statusNoticeJSON    `json:"status,omitempty"`
	Trajectory *trajectoryEventJSON `json:"trajectory,omitempty"`
}

type linkNoticeJSON struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Error string `json:"error,omitempty"`
}

type heartbeatJSON struct {
	Consecutive int    `json:"consecutive"`
	Error       string `json:"error"`
}

type statusNoticeJSON struct {
	Reason    string    `json:"reason"`
	Left      vec3      `json:"left_tip_mm"`
	Right     vec3      `json:"right_tip_mm"`
	UpdatedAt time.Time `json:"updated_at"`
}

type trajectoryEventJSON struct {
	Event  string   `json:"event"`
	State  string   `json:"state"`
	PlanID string   `json:"plan_id,omitempty"`
	Units  []string `json:"units,omitempty"`
	Error  string   `json:"error,omitempty"`
}

func toNoticeJSON(n rig.Notice) noticeJSON {
	out := noticeJSON{Kind: string(n.Kind), At: n.At}
	switch {
	case n.Link != nil:
		out.Link = &linkNoticeJSON{From: string(n.Link.From), To: string(n.Link.To)}
		if n.Link.Err != nil {
			out.Link.Error = n.Link.Err.Error()
		}
	case n.Heartbeat != nil:
		out.Heartbeat = &heartbeatJSON{Consecutive: n.Heartbeat.Consecutive}
		if n.Heartbeat.Err != nil {
			out.Heartbeat.Error = n.Heartbeat.Err.Error()
		}
	case n.Status != nil:
		out.Status = &statusNoticeJSON{
			Reason:    string(n.Status.Reason),
			Left:      fromVector(n.Status.Snapshot.Pose.Left),
			Right:     fromVector(n.Status.Snapshot.Pose.Right),
			UpdatedAt: n.Status.Snapshot.UpdatedAt,
		}
	case n.Trajectory != nil:
		out.Trajectory = &trajectoryEventJSON{
			Event:  string(n.Trajectory.Kind),
			State:  string(n.Trajectory.State),
			PlanID: n.Trajectory.PlanID,
		}
		if ids := n.Trajectory.IDs; ids != ([2]string{}) {
			out.Trajectory.Units = ids[:]
		}
		if n.Trajectory.Err != nil {
			out.Trajectory.Error = n.Trajectory.Err.Error()
		}
	}
	return out
}

// wsClient is one feed subscriber with a bounded outbound queue.
type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan noticeJSON
	done chan struct{}
	once sync.Once
}

func newWSClient(id string, conn *websocket.Conn) *wsClient {
	return &wsClient{
		id:   id,
		conn: conn,
		send: make(chan noticeJSON, outboundBufferSize),
		done: make(chan struct{}),
	}
}

// queue enqueues without blocking; false means the client is too slow.
func (c *wsClient) queue(msg noticeJSON) bool {
	select {
	case <-c.done:
		return true
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *wsClient) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// hub tracks feed clients and fans notices out to them.
type hub struct {
	mu sync.RWMutex
	// +checklocks:mu
	clients map[string]*wsClient
}

func newHub() *hub {
	return &hub{clients: make(map[string]*wsClient)}
}

func (h *hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

func (h *hub) unregister(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	h.mu.Unlock()

	if ok {
		c.close()
	}
}

func (h *hub) publish(msg noticeJSON) {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if c.queue(msg) {
			continue
		}
		slog.Debug("dropping slow feed client", "client", c.id)
		h.unregister(c.id)
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*wsClient)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// eventsWebSocket upgrades the request and streams notices until the
// client goes away.
func (s *Server) eventsWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := newWSClient(id.Prefixed("feed"), conn)
	s.hub.register(client)
	defer s.hub.unregister(client.id)

	slog.Debug("feed client connected", "client", client.id)
	go client.writeLoop()

	// Inbound traffic only keeps the connection alive.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
