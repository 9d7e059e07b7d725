package indicator

import (
	"sync"

	"github.com/1308774130/StockSentinel/internal/model"
	"github.com/1308774130/StockSentinel/internal/ringbuf"
)

// Config sizes the engine.
type Config struct {
	Window       int // samples kept per ticker
	RSIPeriod    int
	VolumeWindow int // prior samples averaged for the volume ratio
}

// DefaultConfig returns RSI(6), a 4-sample volume window and 20 samples of
// history per ticker.
func DefaultConfig() Config {
	return Config{Window: 20, RSIPeriod: 6, VolumeWindow: 4}
}

// Engine computes indicator results for many tickers, keeping a bounded
// rolling history per ticker. Safe for concurrent use.
type Engine struct {
	cfg Config

	mu      sync.Mutex
	history map[string]*ringbuf.Ring
	retired uint64 // evictions of forgotten tickers
}

// NewEngine creates an engine. Non-positive config fields fall back to
// DefaultConfig and the window is widened to hold a full RSI and volume
// lookback.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = def.RSIPeriod
	}
	if cfg.VolumeWindow <= 0 {
		cfg.VolumeWindow = def.VolumeWindow
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Window < cfg.RSIPeriod {
		cfg.Window = cfg.RSIPeriod
	}
	if cfg.Window < cfg.VolumeWindow {
		cfg.Window = cfg.VolumeWindow
	}
	return &Engine{
		cfg:     cfg,
		history: make(map[string]*ringbuf.Ring, 64),
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Evaluate computes the indicators for q against the ticker's history and then
// appends q to that history. A quote with a non-positive price or previous
// close returns ErrInsufficientData and leaves the history untouched.
func (e *Engine) Evaluate(q model.Quote) (Result, error) {
	if q.Price <= 0 {
		return Result{}, ErrInsufficientData
	}
	pct, err := PctChange(q.Price, q.PrevClose)
	if err != nil {
		return Result{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ring, ok := e.history[q.Code]
	if !ok {
		ring = ringbuf.New(e.cfg.Window)
		e.history[q.Code] = ring
	}

	prior := ring.Values()
	closes := make([]float64, 0, len(prior)+1)
	for _, s := range prior {
		closes = append(closes, s.Close)
	}
	closes = append(closes, q.Price)

	res := Result{Code: q.Code, PctChange: pct}
	res.RSI, res.RSIReady = RSI(closes, e.cfg.RSIPeriod)

	recent := ring.Last(e.cfg.VolumeWindow)
	vols := make([]float64, len(recent))
	for i, s := range recent {
		vols[i] = s.Volume
	}
	res.VolumeRatio, res.VolumeReady = VolumeRatio(q.Volume, vols)

	ring.Push(q.Sample())
	res.HistoryLen = ring.Len()
	return res, nil
}

// Forget drops the ticker's history. Re-adding the ticker starts cold.
func (e *Engine) Forget(code string) {
	e.mu.Lock()
	if r, ok := e.history[code]; ok {
		e.retired += r.Evicted()
		delete(e.history, code)
	}
	e.mu.Unlock()
}

// Len reports how many samples are held for code.
func (e *Engine) Len(code string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.history[code]; ok {
		return r.Len()
	}
	return 0
}

// Tickers returns the number of tickers with history.
func (e *Engine) Tickers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.history)
}

// Evicted returns the total samples rolled out of history windows, including
// those of forgotten tickers, so it never decreases.
func (e *Engine) Evicted() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.retired
	for _, r := range e.history {
		n += r.Evicted()
	}
	return n
}
