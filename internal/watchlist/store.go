// Package watchlist owns the shared mutable state of the bot: the list of
// watched stocks and the alerting settings. Chat commands mutate it while the
// poll loop reads it concurrently.
//
// Every mutation is persisted after the state lock is released. Saves are
// serialized and each one re-reads the current snapshot, so the last save
// always reflects the latest state.
package watchlist

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/1308774130/StockSentinel/internal/model"
)

// Persister loads and saves the durable snapshot. model.SnapshotStore
// implementations satisfy it.
type Persister interface {
	Load(ctx context.Context) (model.Snapshot, bool, error)
	Save(ctx context.Context, snap model.Snapshot) error
}

// Hooks observe list membership changes. They run under the store's write
// lock, in mutation order, and must not call back into the Store.
type Hooks struct {
	OnAdd    func(stock model.WatchedStock)
	OnRemove func(code string)
}

// Store holds the watch list and settings.
type Store struct {
	mu       sync.RWMutex
	stocks   []model.WatchedStock // insertion order
	index    map[string]int
	settings model.Settings
	hooks    []Hooks

	persister Persister
	saveMu    sync.Mutex

	now func() time.Time
}

// New creates an empty store with default settings. p may be nil, in which
// case nothing is persisted.
func New(p Persister) *Store {
	return &Store{
		index:     make(map[string]int),
		settings:  model.DefaultSettings(),
		persister: p,
		now:       time.Now,
	}
}

// Open creates a store and restores it from p. When nothing was persisted the
// seed snapshot is used; zero seed settings mean defaults. Seed stocks missing
// from a restored list are added, so an env-provided list extends the saved
// one. The merged state is saved back when it differs from what was loaded.
func Open(ctx context.Context, p Persister, seed model.Snapshot) (*Store, error) {
	s := New(p)

	snap, found := model.Snapshot{}, false
	if p != nil {
		var err error
		snap, found, err = p.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("watchlist: load: %w", err)
		}
	}

	if found {
		if err := Validate(snap.Settings); err != nil {
			log.Printf("[watchlist] WARNING: persisted settings invalid (%v), using defaults", err)
			snap.Settings = model.DefaultSettings()
		}
		s.settings = snap.Settings
	} else if seed.Settings != (model.Settings{}) {
		if err := Validate(seed.Settings); err != nil {
			return nil, fmt.Errorf("watchlist: seed settings: %w", err)
		}
		s.settings = seed.Settings
	}

	dirty := !found
	for _, st := range snap.Stocks {
		if _, ok := s.index[st.Code]; ok {
			log.Printf("[watchlist] WARNING: dropping duplicate persisted stock %s", st.Code)
			dirty = true
			continue
		}
		s.insertLocked(st)
	}
	for _, st := range seed.Stocks {
		if _, ok := s.index[st.Code]; !ok {
			s.insertLocked(st)
			dirty = true
		}
	}

	if dirty {
		s.persist(ctx)
	}
	log.Printf("[watchlist] opened: %d stocks (restored=%v)", len(s.stocks), found)
	return s, nil
}

// Subscribe registers hooks and replays OnAdd for every stock already on the
// list, so observers start in sync.
func (s *Store) Subscribe(h Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, h)
	if h.OnAdd != nil {
		for _, st := range s.stocks {
			h.OnAdd(st)
		}
	}
}

// List returns a copy of the watch list in insertion order.
func (s *Store) List() []model.WatchedStock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.WatchedStock, len(s.stocks))
	copy(out, s.stocks)
	return out
}

// Codes returns the watched codes in insertion order.
func (s *Store) Codes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.stocks))
	for i, st := range s.stocks {
		out[i] = st.Code
	}
	return out
}

// Has reports whether code is watched.
func (s *Store) Has(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[code]
	return ok
}

// Get returns the watched stock for code.
func (s *Store) Get(code string) (model.WatchedStock, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[code]
	if !ok {
		return model.WatchedStock{}, false
	}
	return s.stocks[i], true
}

// Len returns the watch list size.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stocks)
}

// Settings returns the current settings.
func (s *Store) Settings() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Snapshot returns a consistent copy of the list and settings.
func (s *Store) Snapshot() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stocks := make([]model.WatchedStock, len(s.stocks))
	copy(stocks, s.stocks)
	return model.Snapshot{Stocks: stocks, Settings: s.settings}
}

// Add appends stock to the list. AddedAt defaults to now.
func (s *Store) Add(ctx context.Context, stock model.WatchedStock) error {
	if stock.AddedAt.IsZero() {
		stock.AddedAt = s.now()
	}

	s.mu.Lock()
	if _, ok := s.index[stock.Code]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyPresent, stock.Code)
	}
	s.insertLocked(stock)
	for _, h := range s.hooks {
		if h.OnAdd != nil {
			h.OnAdd(stock)
		}
	}
	s.mu.Unlock()

	s.persist(ctx)
	return nil
}

// Remove drops code from the list.
func (s *Store) Remove(ctx context.Context, code string) error {
	s.mu.Lock()
	i, ok := s.index[code]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	s.stocks = append(s.stocks[:i], s.stocks[i+1:]...)
	s.reindexLocked()
	for _, h := range s.hooks {
		if h.OnRemove != nil {
			h.OnRemove(code)
		}
	}
	s.mu.Unlock()

	s.persist(ctx)
	return nil
}

// UpdateSetting validates and applies one settings change, returning the
// resulting settings. On error the settings are unchanged and the error is a
// *ValidationError.
func (s *Store) UpdateSetting(ctx context.Context, f Field, value float64) (model.Settings, error) {
	s.mu.Lock()
	next, err := apply(s.settings, f, value)
	if err != nil {
		cur := s.settings
		s.mu.Unlock()
		return cur, err
	}
	s.settings = next
	s.mu.Unlock()

	s.persist(ctx)
	return next, nil
}

func (s *Store) insertLocked(st model.WatchedStock) {
	s.index[st.Code] = len(s.stocks)
	s.stocks = append(s.stocks, st)
}

func (s *Store) reindexLocked() {
	for k := range s.index {
		delete(s.index, k)
	}
	for i, st := range s.stocks {
		s.index[st.Code] = i
	}
}

// persist saves the latest snapshot. Failures are logged; in-memory state
// stays authoritative and the next mutation retries the save.
func (s *Store) persist(ctx context.Context) {
	if s.persister == nil {
		return
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	snap := s.Snapshot()
	if err := s.persister.Save(ctx, snap); err != nil {
		log.Printf("[watchlist] WARNING: save failed: %v", err)
	}
}
