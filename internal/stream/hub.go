// Package stream fans computed indicator results out to WebSocket
// subscribers. The hub holds the latest envelope per indicator so a fresh
// client gets current state immediately instead of waiting for the next bar.
package stream

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quantedge-ta/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// single-purpose internal endpoint; origin policy is the proxy's job
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub manages WebSocket clients and result fan-out.
type Hub struct {
	log zerolog.Logger

	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string][]byte // indicator name -> last committed envelope
	seq     int64

	// OnClientChange and OnDrop feed metrics, when set.
	OnClientChange func(count int)
	OnDrop         func()
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		log:     logger.With().Str("component", "stream").Logger(),
		clients: make(map[*Client]bool),
		latest:  make(map[string][]byte),
	}
}

// Broadcast sends one result to every connected client. Committed results
// also refresh the per-indicator latest cache. Slow clients are skipped, not
// waited on.
func (h *Hub) Broadcast(res model.IndicatorResult) {
	if !res.Ready {
		return
	}
	data := res.JSON()

	h.mu.Lock()
	h.seq++
	envelope := buildEnvelope(res.Name, data, time.Now().UTC(), h.seq)
	if !res.Live {
		h.latest[res.Name] = envelope
	}
	for client := range h.clients {
		select {
		case client.send <- envelope:
		default:
			if h.OnDrop != nil {
				h.OnDrop()
			}
		}
	}
	h.mu.Unlock()
}

// BroadcastBatch sends a slice of results.
func (h *Hub) BroadcastBatch(results []model.IndicatorResult) {
	for i := range results {
		h.Broadcast(results[i])
	}
}

// buildEnvelope hand-crafts the wire JSON to avoid a map allocation per
// message: {"indicator":"...","data":...,"ts":"...","seq":N}
func buildEnvelope(name string, data []byte, now time.Time, seq int64) []byte {
	buf := make([]byte, 0, len(name)+len(data)+96)
	buf = append(buf, `{"indicator":"`...)
	buf = append(buf, name...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')
	return buf
}

// HandleWS upgrades the request and registers the client.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.log.Info().Int("total", count).Msg("ws client connected")
	if h.OnClientChange != nil {
		h.OnClientChange(count)
	}

	go client.sendInitialState()
	go client.writePump()
	go client.readPump()
}

// removeClient unregisters a client and closes its send channel.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()
	close(c.send)

	h.log.Info().Int("total", count).Msg("ws client disconnected")
	if h.OnClientChange != nil {
		h.OnClientChange(count)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// LatestAll returns a copy of the latest committed envelope per indicator.
func (h *Hub) LatestAll() map[string]json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string]json.RawMessage, len(h.latest))
	for k, v := range h.latest {
		cp[k] = v
	}
	return cp
}

// Shutdown disconnects every client.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.conn.Close()
	}
}
