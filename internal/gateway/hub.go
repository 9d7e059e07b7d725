// Package gateway is the live alert feed: a WebSocket hub that receives
// alerts as a notification backend and fans them out to connected clients,
// with seq-based backfill for clients that reconnect.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1308774130/StockSentinel/internal/markethours"
	"github.com/1308774130/StockSentinel/internal/metrics"
	"github.com/1308774130/StockSentinel/internal/model"
	"github.com/1308774130/StockSentinel/internal/notification"
)

// StatusSource reports the poll loop state.
type StatusSource interface {
	Status() model.MonitorStatus
}

// Hub manages WebSocket clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	seq     int64

	replay *ReplayBuffer
	prom   *metrics.Metrics
	now    func() time.Time
}

// NewHub creates a hub keeping the last replaySize alerts for backfill.
// prom may be nil.
func NewHub(replaySize int, prom *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		replay:  NewReplayBuffer(replaySize),
		prom:    prom,
		now:     time.Now,
	}
}

// Send implements notification.Notifier.
func (h *Hub) Send(ctx context.Context, alert notification.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("gateway: marshal alert: %w", err)
	}
	h.Broadcast(KindAlert, data)
	return nil
}

// Serve registers an upgraded connection. Alerts newer than sinceSeq are
// queued before any live message; sinceSeq < 0 skips the backfill.
func (h *Hub) Serve(conn *websocket.Conn, sinceSeq int64) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	if sinceSeq >= 0 {
		for _, e := range h.replay.Since(sinceSeq) {
			select {
			case client.send <- e.Data:
			default:
			}
		}
	}
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.setClientGauge(count)
	log.Printf("[gateway] ws client connected (%d total)", count)

	go client.writePump()
	go client.readPump()
}

// RemoveClient unregisters a client and closes its send queue.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	h.setClientGauge(count)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Seq returns the last assigned sequence number.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// Missed returns buffered alert envelopes with seq in [fromSeq, toSeq].
func (h *Hub) Missed(fromSeq, toSeq int64) [][]byte {
	entries := h.replay.Range(fromSeq, toSeq)
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Data
	}
	return out
}

func (h *Hub) setClientGauge(n int) {
	if h.prom != nil {
		h.prom.WSClients.Set(float64(n))
	}
}

type statusPayload struct {
	MarketOpen   bool                `json:"market_open"`
	MarketStatus string              `json:"market_status"`
	Clients      int                 `json:"clients"`
	Monitor      model.MonitorStatus `json:"monitor"`
}

// StartStatusBroadcast sends market and poll loop status to all clients
// every interval until ctx is done. src may be nil.
func (h *Hub) StartStatusBroadcast(ctx context.Context, interval time.Duration, src StatusSource) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.broadcastStatus(src)
		}
	}
}

func (h *Hub) broadcastStatus(src StatusSource) {
	now := h.now()
	p := statusPayload{
		MarketOpen:   markethours.IsMarketOpen(now),
		MarketStatus: markethours.StatusString(now),
		Clients:      h.ClientCount(),
	}
	if src != nil {
		p.Monitor = src.Status()
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	h.Broadcast(KindStatus, data)
}
