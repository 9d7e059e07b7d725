// Package metrics exposes Prometheus metrics and a /healthz endpoint for the
// monitor process.
package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the stock monitor.
type Metrics struct {
	Registry *prometheus.Registry

	// Poll loop
	CyclesTotal    prometheus.Counter
	CyclesSkipped  prometheus.Counter // market closed
	CycleDur       prometheus.Histogram
	FetchFailures  prometheus.Counter
	FetchRetries   prometheus.Counter
	InsufficientOK prometheus.Counter // quotes skipped for missing prev close / price

	// Alerts
	AlertsTotal      *prometheus.CounterVec // labels: signal
	AlertsSuppressed prometheus.Counter     // blocked by cooldown
	NotifyFailures   prometheus.Counter

	// Commands
	CommandsTotal *prometheus.CounterVec // labels: kind, result=ok|error

	// State
	WatchedStocks prometheus.Gauge
	MarketState   prometheus.Gauge // 0=closed, 1=open
	WSClients     prometheus.Gauge

	// Redis persister circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
}

// NewMetrics creates the metrics on a fresh registry that also carries the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stocksentinel_cycles_total",
			Help: "Poll cycles completed",
		}),
		CyclesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stocksentinel_cycles_skipped_total",
			Help: "Poll cycles skipped outside trading hours",
		}),
		CycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stocksentinel_cycle_duration_seconds",
			Help:    "Wall time of one poll cycle",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		FetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stocksentinel_fetch_failures_total",
			Help: "Quote fetches that failed after retry",
		}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stocksentinel_fetch_retries_total",
			Help: "Quote fetches retried once",
		}),
		InsufficientOK: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stocksentinel_quotes_insufficient_total",
			Help: "Quotes skipped because price or previous close was not positive",
		}),

		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stocksentinel_alerts_total",
			Help: "Signals delivered in alerts (by signal kind)",
		}, []string{"signal"}),
		AlertsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stocksentinel_alerts_suppressed_total",
			Help: "Alerts suppressed by the per-stock cooldown",
		}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stocksentinel_notify_failures_total",
			Help: "Alerts the notifier failed to deliver",
		}),

		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stocksentinel_commands_total",
			Help: "Chat commands handled (by kind and result)",
		}, []string{"kind", "result"}),

		WatchedStocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stocksentinel_watched_stocks",
			Help: "Current watch list size",
		}),
		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stocksentinel_market_state",
			Help: "A-share session state (0=closed, 1=open)",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stocksentinel_ws_clients",
			Help: "Connected alert feed WebSocket clients",
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stocksentinel_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stocksentinel_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CyclesTotal,
		m.CyclesSkipped,
		m.CycleDur,
		m.FetchFailures,
		m.FetchRetries,
		m.InsufficientOK,
		m.AlertsTotal,
		m.AlertsSuppressed,
		m.NotifyFailures,
		m.CommandsTotal,
		m.WatchedStocks,
		m.MarketState,
		m.WSClients,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
	)

	return m
}

// ObserveCommand counts one handled chat command.
func (m *Metrics) ObserveCommand(kind string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.CommandsTotal.WithLabelValues(kind, result).Inc()
}

// HistorySource reports the indicator engine's rolling history.
type HistorySource interface {
	Tickers() int
	Evicted() uint64
}

// ObserveHistory exports src, sampled at scrape time.
func (m *Metrics) ObserveHistory(src HistorySource) {
	if m == nil || src == nil {
		return
	}
	m.Registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "stocksentinel_history_tickers",
			Help: "Stocks with indicator history held in memory",
		}, func() float64 { return float64(src.Tickers()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "stocksentinel_history_evicted_samples_total",
			Help: "Samples rolled out of per-stock history windows",
		}, func() float64 { return float64(src.Evicted()) }),
	)
}

// Pinger is a dependency the liveness checker can ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus represents the process health.
type HealthStatus struct {
	mu sync.RWMutex

	StoreBackend  string    `json:"store_backend"`
	StoreOK       bool      `json:"store_ok"`
	StoreLatency  float64   `json:"store_latency_ms"`
	LastCycleAt   time.Time `json:"last_cycle_at"`
	WatchedStocks int       `json:"watched_stocks"`
	MarketOpen    bool      `json:"market_open"`
	LastCheckAt   time.Time `json:"last_check_at"`
	StartedAt     time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status. The store is assumed
// healthy until the first check says otherwise.
func NewHealthStatus(backend string) *HealthStatus {
	return &HealthStatus{
		StoreBackend: backend,
		StoreOK:      true,
		StartedAt:    time.Now(),
	}
}

func (h *HealthStatus) SetLastCycle(t time.Time, watched int, marketOpen bool) {
	h.mu.Lock()
	h.LastCycleAt = t
	h.WatchedStocks = watched
	h.MarketOpen = marketOpen
	h.mu.Unlock()
}

// CheckStore pings the persister and records latency + health.
func (h *HealthStatus) CheckStore(ctx context.Context, p Pinger) {
	start := time.Now()
	err := p.Ping(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.StoreOK = err == nil
	h.StoreLatency = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker pings p every interval until ctx is done.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, p Pinger, interval time.Duration) {
	if p == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				h.CheckStore(pingCtx, p)
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.StoreOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	lastCycle := ""
	if !h.LastCycleAt.IsZero() {
		lastCycle = h.LastCycleAt.Format(time.RFC3339)
	}

	status := struct {
		Status         string  `json:"status"`
		Uptime         string  `json:"uptime"`
		StoreBackend   string  `json:"store_backend"`
		StoreOK        bool    `json:"store_ok"`
		StoreLatencyMs float64 `json:"store_latency_ms"`
		LastCycleAt    string  `json:"last_cycle_at"`
		WatchedStocks  int     `json:"watched_stocks"`
		MarketOpen     bool    `json:"market_open"`
	}{
		Status:         overallStatus,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		StoreBackend:   h.StoreBackend,
		StoreOK:        h.StoreOK,
		StoreLatencyMs: h.StoreLatency,
		LastCycleAt:    lastCycle,
		WatchedStocks:  h.WatchedStocks,
		MarketOpen:     h.MarketOpen,
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, m *Metrics, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
