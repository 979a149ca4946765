package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/15532th/avtdl/record"
)

const (
	// clientBuffer bounds per-client queued deliveries. A slow reader loses
	// messages rather than backpressuring the engine.
	clientBuffer = 64

	writeTimeout = 10 * time.Second
)

// liveDelivery is the wire form of one observed delivery.
type liveDelivery struct {
	Timestamp time.Time `json:"timestamp"`
	Target    string    `json:"target"`
	Source    string    `json:"source"`
	Chain     string    `json:"chain"`
	Type      string    `json:"type"`
	Text      string    `json:"text"`
}

// liveClient is one connected websocket consumer.
type liveClient struct {
	conn *websocket.Conn
	ch   chan []byte
}

// liveHub fans observed deliveries out to websocket clients.
type liveHub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*liveClient]struct{}
	closed  bool
}

func newLiveHub(logger *slog.Logger) *liveHub {
	return &liveHub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*liveClient]struct{}),
	}
}

// observe is installed as a bus observer. It never blocks: deliveries to a
// client with a full queue are dropped.
func (h *liveHub) observe(target, source, chainName string, rec record.Record) {
	h.mu.Lock()
	if len(h.clients) == 0 || h.closed {
		h.mu.Unlock()
		return
	}

	payload, err := json.Marshal(liveDelivery{
		Timestamp: time.Now(),
		Target:    target,
		Source:    source,
		Chain:     chainName,
		Type:      rec.TypeName(),
		Text:      rec.String(),
	})
	if err != nil {
		h.mu.Unlock()
		return
	}

	for client := range h.clients {
		select {
		case client.ch <- payload:
		default:
		}
	}
	h.mu.Unlock()
}

// handleLive serves GET /api/live, streaming deliveries as JSON messages
// until the client disconnects.
func (h *liveHub) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	client := &liveClient{conn: conn, ch: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("live client connected", "remote", conn.RemoteAddr().String())

	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
		_ = conn.Close()
	}()

	// Drain client frames so close handshakes and pings are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case payload := <-client.ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if writeErr := conn.WriteMessage(websocket.TextMessage, payload); writeErr != nil {
				return
			}
		}
	}
}

// close disconnects current clients and refuses new ones.
func (h *liveHub) close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*liveClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*liveClient]struct{})
	h.mu.Unlock()

	for _, client := range clients {
		// Closing the connection unblocks the handler's read loop.
		_ = client.conn.Close()
	}
}
