package redis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/1308774130/StockSentinel/internal/metrics"
)

// ErrCircuitOpen is returned while the write breaker rejects calls.
var ErrCircuitOpen = errors.New("redis: circuit breaker is open")

// State is the write breaker state. The numeric values are exported as the
// stocksentinel_redis_circuit_breaker_state gauge.
type State int

const (
	StateClosed   State = 0
	StateOpen     State = 1
	StateHalfOpen State = 2
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// writeBreaker guards snapshot saves and alert appends. After maxFailures
// consecutive Redis errors it rejects writes for cooldown, then lets a single
// trial call through; its outcome closes or reopens it. A watch-list save
// failing fast is logged by the caller and retried on the next mutation.
type writeBreaker struct {
	maxFailures int
	cooldown    time.Duration
	prom        *metrics.Metrics
	now         func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trying   bool
	trips    uint64
	onChange func(from, to State)
}

func newWriteBreaker(maxFailures int, cooldown time.Duration, prom *metrics.Metrics) *writeBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &writeBreaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		prom:        prom,
		now:         time.Now,
	}
}

// do runs fn unless the breaker is open. Errors are wrapped with op. A call
// abandoned because ctx was cancelled does not count against Redis.
func (b *writeBreaker) do(ctx context.Context, op string, fn func() error) error {
	trial, err := b.admit()
	if err != nil {
		return fmt.Errorf("redis: %s: %w", op, err)
	}

	err = fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if trial {
		b.trying = false
	}

	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		// Half-open stays half-open; the next call is the new trial.
		return fmt.Errorf("redis: %s: %w", op, err)
	}

	if err != nil {
		b.failures++
		if trial || b.failures >= b.maxFailures {
			b.openedAt = b.now()
			b.setState(StateOpen)
		}
		return fmt.Errorf("redis: %s: %w", op, err)
	}

	b.failures = 0
	if b.state != StateClosed {
		b.setState(StateClosed)
	}
	return nil
}

// admit decides whether a call may proceed, moving an expired open breaker
// to half-open. trial is true for the single call reserved to test Redis.
func (b *writeBreaker) admit() (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false, ErrCircuitOpen
		}
		b.setState(StateHalfOpen)
	case StateHalfOpen:
		if b.trying {
			return false, ErrCircuitOpen
		}
	default:
		return false, nil
	}
	b.trying = true
	return true, nil
}

// status reports the current state and how many times the breaker opened.
func (b *writeBreaker) status() (State, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state, b.trips
}

// setState records a transition; callers hold b.mu.
func (b *writeBreaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if to == StateOpen {
		b.trips++
	}
	log.Printf("[redis] write breaker %s -> %s (failures=%d)", from, to, b.failures)
	if b.prom != nil {
		b.prom.RedisCircuitBreakerState.Set(float64(to))
		if to == StateOpen {
			b.prom.RedisCircuitBreakerTrips.Inc()
		}
	}
	if b.onChange != nil {
		b.onChange(from, to)
	}
}
