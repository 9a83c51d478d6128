package offline

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/forgefit/forge/internal/metrics"
)

// Message types exchanged between pages and the worker.
const (
	MsgSkipWaiting = "SKIP_WAITING"
	MsgGetVersion  = "GET_VERSION"
	MsgVersion     = "SW_VERSION"
	MsgUpdated     = "SW_UPDATED"
)

const writeTimeout = 5 * time.Second

// Message is the JSON frame sent over /sw.
type Message struct {
	Type    string `json:"type"`
	Version string `json:"version,omitempty"`
}

// Controller is the worker side of the channel.
type Controller interface {
	SkipWaiting(ctx context.Context) bool
	Version() string
}

// Hub tracks connected pages and relays control messages.
type Hub struct {
	ctrl    Controller
	log     *slog.Logger
	metrics *metrics.Manager

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewHub(ctrl Controller, log *slog.Logger, m *metrics.Manager) *Hub {
	return &Hub{
		ctrl:    ctrl,
		log:     log,
		metrics: m,
		conns:   make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the request and serves messages until the page leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Error("accepting websocket", "error", err)
		return
	}
	h.register(conn)
	defer h.unregister(conn)

	ctx := r.Context()
	for {
		var msg Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				h.log.Debug("websocket read", "error", err)
			}
			return
		}
		h.handle(ctx, conn, msg)
	}
}

func (h *Hub) handle(ctx context.Context, conn *websocket.Conn, msg Message) {
	switch msg.Type {
	case MsgSkipWaiting:
		if !h.ctrl.SkipWaiting(ctx) {
			h.log.Debug("skip waiting: no worker waiting")
		}
	case MsgGetVersion:
		h.send(ctx, conn, Message{Type: MsgVersion, Version: h.ctrl.Version()})
	default:
		h.log.Debug("unknown message", "type", msg.Type)
	}
}

// Broadcast sends msg to every connected page. Failed connections are closed.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.send(ctx, c, msg)
	}
}

// Clients returns the number of connected pages.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close disconnects every page.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()
	for c := range conns {
		_ = c.Close(websocket.StatusGoingAway, "shutting down")
	}
	if h.metrics != nil {
		h.metrics.GaugeConnectedClients.Set(0)
	}
}

func (h *Hub) send(ctx context.Context, conn *websocket.Conn, msg Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		h.log.Debug("websocket write", "type", msg.Type, "error", err)
		_ = conn.Close(websocket.StatusInternalError, "write failed")
		h.unregister(conn)
	}
}

func (h *Hub) register(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.GaugeConnectedClients.Set(float64(n))
	}
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.conns[conn]
	delete(h.conns, conn)
	n := len(h.conns)
	h.mu.Unlock()
	if ok && h.metrics != nil {
		h.metrics.GaugeConnectedClients.Set(float64(n))
	}
}
