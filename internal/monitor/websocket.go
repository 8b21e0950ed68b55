package monitor

import (
	"compress/flate"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
)

// upgrader allows all origins: the monitor is a local developer tool
// reachable only from localhost, the same trust assumption the teacher's
// localUpgrader makes for its local mode.
var upgrader = websocket.Upgrader{
	CheckOrigin:       func(_ *http.Request) bool { return true },
	EnableCompression: true,
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("monitor WebSocket upgrade failed", "err", err)
		return
	}

	conn.EnableWriteCompression(true)
	if err := conn.SetCompressionLevel(flate.BestSpeed); err != nil {
		s.logger.Error("failed to set compression level", "err", err)
	}
	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Error("failed to set read deadline", "addr", conn.RemoteAddr(), "err", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	writeMu := s.hub.register(conn)

	done := make(chan struct{})
	s.hub.clientWg.Add(2)
	go s.clientReadPump(conn, done)
	go s.clientWritePump(conn, done, writeMu)
}

func (s *Server) clientReadPump(conn *websocket.Conn, done chan struct{}) {
	defer s.hub.clientWg.Done()
	defer close(done)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error("monitor WebSocket read error", "addr", conn.RemoteAddr(), "err", err)
			}
			return
		}
	}
}

func (s *Server) clientWritePump(conn *websocket.Conn, done chan struct{}, writeMu *sync.Mutex) {
	defer s.hub.clientWg.Done()
	defer s.hub.remove(conn)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			writeMu.Lock()
			err := conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err == nil {
				err = conn.WriteMessage(websocket.PingMessage, nil)
			}
			writeMu.Unlock()
			if err != nil {
				s.logger.Error("monitor WebSocket ping failed", "addr", conn.RemoteAddr(), "err", err)
				return
			}
		}
	}
}
