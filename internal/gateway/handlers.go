package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/1308774130/StockSentinel/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// AlertHistory reads persisted alerts.
type AlertHistory interface {
	RecentAlerts(ctx context.Context, limit int) ([]model.AlertRecord, error)
}

// WatchSource exposes the current watch list and thresholds.
type WatchSource interface {
	List() []model.WatchedStock
	Settings() model.Settings
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// RegisterRoutes registers the feed and its read-only REST companions.
// history and watch may be nil; their endpoints are then not registered.
func RegisterRoutes(mux *http.ServeMux, hub *Hub, history AlertHistory, watch WatchSource) {
	// WebSocket feed. ?since_seq=N replays buffered alerts after N.
	mux.HandleFunc("/ws/alerts", func(w http.ResponseWriter, r *http.Request) {
		since := int64(-1)
		if v := r.URL.Query().Get("since_seq"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
				since = n
			}
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[gateway] ws upgrade error: %v", err)
			return
		}
		hub.Serve(conn, since)
	})

	// REST: alert envelopes in [from, to] still held by the replay buffer.
	mux.HandleFunc("/api/alerts/missed", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		from, err1 := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
		to, err2 := strconv.ParseInt(r.URL.Query().Get("to"), 10, 64)
		if err1 != nil || err2 != nil || from > to {
			http.Error(w, `{"error":"from and to are required, from <= to"}`, http.StatusBadRequest)
			return
		}
		msgs := hub.Missed(from, to)
		raw := make([]json.RawMessage, len(msgs))
		for i, m := range msgs {
			raw[i] = m
		}
		writeJSON(w, map[string]any{"messages": raw, "seq": hub.Seq()})
	})

	if history != nil {
		mux.HandleFunc("/api/alerts/recent", func(w http.ResponseWriter, r *http.Request) {
			SetCORS(w)
			limit := 50
			if v := r.URL.Query().Get("limit"); v != "" {
				if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
					limit = n
				}
			}
			recs, err := history.RecentAlerts(r.Context(), limit)
			if err != nil {
				log.Printf("[gateway] recent alerts: %v", err)
				http.Error(w, `{"error":"alert history unavailable"}`, http.StatusServiceUnavailable)
				return
			}
			if recs == nil {
				recs = []model.AlertRecord{}
			}
			writeJSON(w, recs)
		})
	}

	if watch != nil {
		mux.HandleFunc("/api/watchlist", func(w http.ResponseWriter, r *http.Request) {
			SetCORS(w)
			stocks := watch.List()
			if stocks == nil {
				stocks = []model.WatchedStock{}
			}
			writeJSON(w, map[string]any{
				"stocks":   stocks,
				"settings": watch.Settings(),
			})
		})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
