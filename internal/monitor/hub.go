package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const broadcastChannelSize = 256

// hub tracks connected WebSocket clients and fans out UpdateMessages to all
// of them — the single-repository equivalent of the teacher's per-session
// client map and broadcast channel (session.go), hoisted out of a
// per-repository session since bupcask's monitor only ever serves one repo.
type hub struct {
	logger *slog.Logger

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*sync.Mutex

	broadcast chan UpdateMessage

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup // run() only

	// clientWg tracks client read/write pump goroutines separately from wg:
	// they exit only once their connection is closed, which close() does
	// after wg.Wait() returns, so waiting on the same group would deadlock.
	clientWg sync.WaitGroup
}

func newHub(ctx context.Context, logger *slog.Logger) *hub {
	hctx, cancel := context.WithCancel(ctx)
	return &hub{
		logger:    logger,
		clients:   make(map[*websocket.Conn]*sync.Mutex),
		broadcast: make(chan UpdateMessage, broadcastChannelSize),
		ctx:       hctx,
		cancel:    cancel,
	}
}

func (h *hub) start() {
	h.wg.Add(1)
	go h.run()
}

func (h *hub) run() {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			return
		case msg := <-h.broadcast:
			h.sendToAll(msg)
		}
	}
}

// publish queues a message for broadcast, dropping it rather than blocking
// if the channel is saturated by a stalled GC sweep's progress events.
func (h *hub) publish(msg UpdateMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("monitor broadcast channel full, dropping message")
	}
}

func (h *hub) sendToAll(msg UpdateMessage) {
	h.clientsMu.RLock()
	snapshot := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for conn, mu := range h.clients {
		snapshot[conn] = mu
	}
	h.clientsMu.RUnlock()

	var failed []*websocket.Conn
	for conn, mu := range snapshot {
		mu.Lock()
		err := conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err == nil {
			err = conn.WriteJSON(msg)
		}
		mu.Unlock()
		if err != nil {
			h.logger.Error("monitor broadcast failed", "addr", conn.RemoteAddr(), "err", err)
			failed = append(failed, conn)
		}
	}

	if len(failed) > 0 {
		h.clientsMu.Lock()
		for _, conn := range failed {
			delete(h.clients, conn)
			conn.Close()
		}
		h.clientsMu.Unlock()
	}
}

func (h *hub) register(conn *websocket.Conn) *sync.Mutex {
	mu := &sync.Mutex{}
	h.clientsMu.Lock()
	h.clients[conn] = mu
	count := len(h.clients)
	h.clientsMu.Unlock()
	h.logger.Info("monitor client connected", "addr", conn.RemoteAddr(), "totalClients", count)
	return mu
}

func (h *hub) remove(conn *websocket.Conn) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
		h.logger.Info("monitor client disconnected", "totalClients", len(h.clients))
	}
}

// close sends close frames to every connected client, then force-closes
// whatever remains, mirroring RepoSession.Close's grace-period shutdown.
func (h *hub) close() {
	h.cancel()
	h.wg.Wait()

	h.clientsMu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	clientCount := len(conns)
	h.clientsMu.RUnlock()

	if clientCount > 0 {
		closeMsg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		deadline := time.Now().Add(time.Second)
		for _, conn := range conns {
			conn.WriteControl(websocket.CloseMessage, closeMsg, deadline)
		}
		time.Sleep(500 * time.Millisecond)
	}

	h.clientsMu.Lock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]*sync.Mutex)
	h.clientsMu.Unlock()

	// Pump goroutines exit once their connection is closed above.
	h.clientWg.Wait()
}
