// Package monitor runs the periodic poll cycle: for every watched stock it
// fetches a quote, computes indicators, evaluates the alert rules and, when
// a rule fires and the stock is out of cooldown, notifies the chat channel.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/1308774130/StockSentinel/internal/cooldown"
	"github.com/1308774130/StockSentinel/internal/indicator"
	"github.com/1308774130/StockSentinel/internal/logger"
	"github.com/1308774130/StockSentinel/internal/markethours"
	"github.com/1308774130/StockSentinel/internal/metrics"
	"github.com/1308774130/StockSentinel/internal/model"
	"github.com/1308774130/StockSentinel/internal/notification"
	"github.com/1308774130/StockSentinel/internal/quote"
	"github.com/1308774130/StockSentinel/internal/rules"
	"github.com/1308774130/StockSentinel/internal/watchlist"
)

// Config tunes the poll loop.
type Config struct {
	Concurrency     int           // tickers processed in parallel per cycle
	MarketHoursOnly bool          // skip cycles outside A-share sessions
	RetryDelay      time.Duration // pause before the single fetch retry
	NotifyTimeout   time.Duration
}

// DefaultConfig returns 4 workers and a 500ms retry delay.
func DefaultConfig() Config {
	return Config{
		Concurrency:   4,
		RetryDelay:    500 * time.Millisecond,
		NotifyTimeout: 10 * time.Second,
	}
}

// Deps are the collaborators of a Monitor. Recorder, Metrics and Health
// are optional.
type Deps struct {
	Store    *watchlist.Store
	Quotes   quote.Source
	Engine   *indicator.Engine
	Cooldown *cooldown.Store
	Notifier notification.Notifier
	Recorder model.AlertRecorder
	Metrics  *metrics.Metrics
	Health   *metrics.HealthStatus
}

// Monitor is the poll scheduler.
type Monitor struct {
	cfg  Config
	deps Deps

	now    func() time.Time
	isOpen func(time.Time) bool

	mu     sync.Mutex
	status model.MonitorStatus
}

// New creates a monitor. Zero config fields fall back to DefaultConfig.
func New(cfg Config, deps Deps) *Monitor {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = def.NotifyTimeout
	}
	return &Monitor{
		cfg:    cfg,
		deps:   deps,
		now:    time.Now,
		isOpen: markethours.IsMarketOpen,
	}
}

// Status returns a snapshot of the loop state.
func (m *Monitor) Status() model.MonitorStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Run loops until ctx is done: run a cycle, then wait the poll interval,
// which is re-read from the store every time.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	m.status.Running = true
	m.status.StartedAt = m.now()
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.status.Running = false
		m.mu.Unlock()
	}()

	slog.Info("monitor started",
		slog.Int("stocks", m.deps.Store.Len()),
		slog.Int("concurrency", m.cfg.Concurrency),
		slog.Bool("market_hours_only", m.cfg.MarketHoursOnly))

	for {
		m.RunCycle(ctx)

		wait := m.deps.Store.Settings().PollInterval()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("monitor stopped", slog.Uint64("cycles", m.Status().Cycles))
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RunCycle checks every watched stock once. The code list is snapshotted at
// the start; one ticker failing never aborts the cycle.
func (m *Monitor) RunCycle(ctx context.Context) {
	start := m.now()
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID("cycle", start))

	open := m.isOpen(start)
	if m.deps.Metrics != nil {
		if open {
			m.deps.Metrics.MarketState.Set(1)
		} else {
			m.deps.Metrics.MarketState.Set(0)
		}
	}
	if m.cfg.MarketHoursOnly && !open {
		slog.Debug("market closed, cycle skipped",
			append(logger.LogWithTrace(ctx), slog.String("market", markethours.StatusString(start)))...)
		if m.deps.Metrics != nil {
			m.deps.Metrics.CyclesSkipped.Inc()
		}
		return
	}

	codes := m.deps.Store.Codes()
	settings := m.deps.Store.Settings()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Concurrency)
	for _, code := range codes {
		code := code
		g.Go(func() error {
			m.checkStock(gctx, code, settings)
			return nil
		})
	}
	g.Wait()

	end := m.now()
	m.mu.Lock()
	m.status.LastCheck = end
	m.status.Cycles++
	m.status.MarketOpen = open
	m.mu.Unlock()

	if m.deps.Metrics != nil {
		m.deps.Metrics.CyclesTotal.Inc()
		m.deps.Metrics.CycleDur.Observe(end.Sub(start).Seconds())
		m.deps.Metrics.WatchedStocks.Set(float64(len(codes)))
	}
	if m.deps.Health != nil {
		m.deps.Health.SetLastCycle(end, len(codes), open)
	}
	slog.Info("cycle complete",
		append(logger.LogWithTrace(ctx),
			slog.Int("stocks", len(codes)),
			slog.Duration("took", end.Sub(start)))...)
}

func (m *Monitor) checkStock(ctx context.Context, code string, settings model.Settings) {
	trace := append(logger.LogWithTrace(ctx), slog.String("code", code))

	q, err := m.fetch(ctx, code)
	if err != nil {
		if m.deps.Metrics != nil {
			m.deps.Metrics.FetchFailures.Inc()
		}
		slog.Warn("quote fetch failed, skipping", append(trace, slog.String("error", err.Error()))...)
		return
	}
	q.Code = code

	res, err := m.deps.Engine.Evaluate(q)
	if err != nil {
		if errors.Is(err, indicator.ErrInsufficientData) && m.deps.Metrics != nil {
			m.deps.Metrics.InsufficientOK.Inc()
		}
		slog.Debug("quote not evaluable", append(trace, slog.String("error", err.Error()))...)
		return
	}
	// Removed mid-cycle: drop the history the evaluation just recreated.
	if !m.deps.Store.Has(code) {
		m.deps.Engine.Forget(code)
		return
	}

	sigs := rules.Evaluate(res, settings)
	if len(sigs) == 0 {
		return
	}

	now := m.now()
	if !m.deps.Cooldown.TryAcquire(code, now, settings.Cooldown()) {
		if m.deps.Metrics != nil {
			m.deps.Metrics.AlertsSuppressed.Inc()
		}
		slog.Debug("alert suppressed by cooldown", trace...)
		return
	}

	alert := composeAlert(q, m.displayName(code, q), res, sigs, now)

	nctx, cancel := context.WithTimeout(ctx, m.cfg.NotifyTimeout)
	err = m.deps.Notifier.Send(nctx, alert)
	cancel()
	if err != nil {
		if m.deps.Metrics != nil {
			m.deps.Metrics.NotifyFailures.Inc()
		}
		slog.Error("alert delivery failed", append(trace, slog.String("error", err.Error()))...)
	} else {
		slog.Info("alert sent", append(trace, slog.Any("signals", alert.Signals))...)
	}
	if m.deps.Metrics != nil {
		for _, s := range sigs {
			m.deps.Metrics.AlertsTotal.WithLabelValues(string(s.Kind)).Inc()
		}
	}

	if m.deps.Recorder != nil {
		rec := model.AlertRecord{
			Code:      code,
			Name:      alert.Name,
			Price:     q.Price,
			PctChange: res.PctChange,
			Signals:   alert.Signals,
			At:        now,
		}
		if err := m.deps.Recorder.RecordAlert(ctx, rec); err != nil {
			slog.Warn("alert history write failed", append(trace, slog.String("error", err.Error()))...)
		}
	}
}

// fetch gets a quote, retrying once after RetryDelay. ErrNotFound and
// context cancellation are not retried.
func (m *Monitor) fetch(ctx context.Context, code string) (model.Quote, error) {
	q, err := m.deps.Quotes.Fetch(ctx, code)
	if err == nil || errors.Is(err, quote.ErrNotFound) || ctx.Err() != nil {
		return q, err
	}

	if m.deps.Metrics != nil {
		m.deps.Metrics.FetchRetries.Inc()
	}
	t := time.NewTimer(m.cfg.RetryDelay)
	select {
	case <-ctx.Done():
		t.Stop()
		return model.Quote{}, ctx.Err()
	case <-t.C:
	}
	return m.deps.Quotes.Fetch(ctx, code)
}

// displayName prefers the name stored with the watch entry, then the name
// carried by the quote.
func (m *Monitor) displayName(code string, q model.Quote) string {
	if st, ok := m.deps.Store.Get(code); ok && st.Name != "" {
		return st.Name
	}
	return q.Name
}
