// Package cooldown tracks when each watched ticker last alerted so a ticker
// that keeps crossing a threshold does not spam the channel.
//
// Only tracked codes can alert. The watchlist store tracks a code when it is
// added and forgets it when removed, which keeps the alert state a subset of
// the watch list even while a poll cycle is in flight.
package cooldown

import (
	"sync"
	"time"
)

type entry struct {
	last    time.Time
	alerted bool
}

// Store holds per-ticker alert state behind a single mutex.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty store.
func New() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Track starts tracking code with no alert history. Tracking an already
// tracked code keeps its history.
func (s *Store) Track(code string) {
	s.mu.Lock()
	if _, ok := s.entries[code]; !ok {
		s.entries[code] = &entry{}
	}
	s.mu.Unlock()
}

// Forget drops code and its alert history.
func (s *Store) Forget(code string) {
	s.mu.Lock()
	delete(s.entries, code)
	s.mu.Unlock()
}

// Tracked reports whether code is tracked.
func (s *Store) Tracked(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[code]
	return ok
}

// TryAcquire checks and records in one critical section. It returns true and
// records now as the last alert time when code is tracked and either never
// alerted or last alerted at least window ago.
func (s *Store) TryAcquire(code string, now time.Time, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[code]
	if !ok || !e.allows(now, window) {
		return false
	}
	e.last = now
	e.alerted = true
	return true
}

// ShouldAlert reports whether TryAcquire would succeed, without recording.
func (s *Store) ShouldAlert(code string, now time.Time, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[code]
	return ok && e.allows(now, window)
}

// Record sets the last alert time for a tracked code. Untracked codes are
// ignored.
func (s *Store) Record(code string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[code]; ok {
		e.last = now
		e.alerted = true
	}
}

// Last returns the last alert time for code.
func (s *Store) Last(code string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[code]
	if !ok || !e.alerted {
		return time.Time{}, false
	}
	return e.last, true
}

// Len returns the number of tracked codes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (e *entry) allows(now time.Time, window time.Duration) bool {
	return !e.alerted || now.Sub(e.last) >= window
}
