package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"piapi/internal/metrics"
	"piapi/internal/store"
	"piapi/util"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Watchers never send anything meaningful.
	maxMessageSize = 512

	// Per-watcher backlog before the watcher is dropped.
	sendBuffer = 16
)

// Update is the message pushed to watchers.
type Update struct {
	Message string `json:"message"`
	Version uint64 `json:"version"`
}

// Hub fans store snapshots out to websocket watchers.  Publish never
// blocks the caller: a burst of mutations is coalesced into the latest
// snapshot.
type Hub struct {
	logger  *util.Logger
	metrics *metrics.Collector

	mu       sync.Mutex
	latest   store.Snapshot
	pending  bool
	watchers map[*watcher]struct{}

	notify chan struct{}
	quit   chan struct{}
	once   sync.Once
}

// NewHub returns a Hub; call Run to start delivery.
func NewHub(logger *util.Logger, m *metrics.Collector) *Hub {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &Hub{
		logger:   logger.With("watch"),
		metrics:  m,
		watchers: make(map[*watcher]struct{}),
		notify:   make(chan struct{}, 1),
		quit:     make(chan struct{}),
	}
}

// Publish records snap for delivery.  It is a store.Observer.
func (h *Hub) Publish(snap store.Snapshot) {
	h.mu.Lock()
	if snap.Version > h.latest.Version {
		h.latest = snap
		h.pending = true
	}
	h.mu.Unlock()

	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Run delivers published snapshots until Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for w := range h.watchers {
				delete(h.watchers, w)
				close(w.send)
			}
			h.mu.Unlock()
			return

		case <-h.notify:
			h.mu.Lock()
			if !h.pending {
				h.mu.Unlock()
				continue
			}
			u := Update{Message: h.latest.Value, Version: h.latest.Version}
			h.pending = false
			for w := range h.watchers {
				select {
				case w.send <- u:
				default:
					h.logger.Warn("dropping slow watcher %s", w.addr)
					delete(h.watchers, w)
					close(w.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop disconnects every watcher and ends Run.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.quit) })
}

// Watchers returns the number of connected watchers.
func (h *Hub) Watchers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}

// register adds w and queues the current snapshot for it.  The
// snapshot is read under the hub lock so that no published version
// falls between it and the first broadcast w receives.  It reports
// false once the hub has stopped.
func (h *Hub) register(w *watcher, current func() store.Snapshot) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.quit:
		return false
	default:
	}
	h.watchers[w] = struct{}{}
	snap := current()
	w.send <- Update{Message: snap.Value, Version: snap.Version}
	h.metrics.WatcherJoined()
	return true
}

func (h *Hub) unregister(w *watcher) {
	h.mu.Lock()
	if _, ok := h.watchers[w]; ok {
		delete(h.watchers, w)
		close(w.send)
	}
	h.mu.Unlock()
}

// ── websocket side ───────────────────────────────────────────────────

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type watcher struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Update
	addr string
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Verbose("watch upgrade: %v", err)
		return
	}

	wt := &watcher{hub: s.hub, conn: conn, send: make(chan Update, sendBuffer), addr: r.RemoteAddr}
	if !s.hub.register(wt, s.router.Store().Snapshot) {
		conn.WriteMessage(websocket.CloseMessage, //nolint:errcheck
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	s.logger.Verbose("watcher %s joined id=%s", wt.addr, RequestID(r.Context()))

	go wt.writePump()
	wt.readPump()
}

// readPump discards client frames and notices disconnects.
func (w *watcher) readPump() {
	defer func() {
		w.hub.unregister(w)
		w.hub.metrics.WatcherLeft()
		w.hub.logger.Verbose("watcher %s left", w.addr)
	}()

	w.conn.SetReadLimit(maxMessageSize)
	_ = w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := w.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !util.IsClosed(err) {
				w.hub.logger.Debug("watcher %s: %v", w.addr, err)
			}
			return
		}
	}
}

// writePump sends updates in version order and keeps the link alive.
func (w *watcher) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		w.conn.Close()
	}()

	var last uint64
	first := true
	for {
		select {
		case u, ok := <-w.send:
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = w.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if !first && u.Version <= last {
				continue
			}
			first, last = false, u.Version

			data, err := json.Marshal(u)
			if err != nil {
				continue
			}
			if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
