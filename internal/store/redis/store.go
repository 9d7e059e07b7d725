// Package redis persists the watch list snapshot and a capped alert history
// in Redis. Writes go through a circuit breaker so a Redis outage degrades to
// fast failures instead of stalling chat replies and the poll loop.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/1308774130/StockSentinel/internal/metrics"
	"github.com/1308774130/StockSentinel/internal/model"
)

const (
	defaultKeyPrefix = "stocksentinel:"
	defaultAlertCap  = 1000
)

// Config configures the Redis store.
type Config struct {
	Addr      string // Redis address, e.g. "localhost:6379"
	Password  string
	DB        int
	KeyPrefix string // defaults to "stocksentinel:"
	AlertCap  int    // alert history length, defaults to 1000
	Metrics   *metrics.Metrics
}

// client is the subset of *goredis.Client the store uses.
type client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	LPush(ctx context.Context, key string, values ...interface{}) *goredis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *goredis.StatusCmd
	LRange(ctx context.Context, key string, start, stop int64) *goredis.StringSliceCmd
	Ping(ctx context.Context) *goredis.StatusCmd
	Close() error
}

// Store is the Redis-backed persister. It satisfies model.SnapshotStore and
// model.AlertRecorder.
type Store struct {
	rdb      client
	cb       *writeBreaker
	snapKey  string
	alertKey string
	alertCap int
}

// New connects to Redis and pings the server.
func New(cfg Config) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return newStore(rdb, cfg), nil
}

func newStore(rdb client, cfg Config) *Store {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}
	if cfg.AlertCap <= 0 {
		cfg.AlertCap = defaultAlertCap
	}

	return &Store{
		rdb:      rdb,
		cb:       newWriteBreaker(5, 10*time.Second, cfg.Metrics),
		snapKey:  cfg.KeyPrefix + "snapshot",
		alertKey: cfg.KeyPrefix + "alerts",
		alertCap: cfg.AlertCap,
	}
}

// Load reads the JSON snapshot. A missing key means nothing was saved yet.
func (s *Store) Load(ctx context.Context) (model.Snapshot, bool, error) {
	var snap model.Snapshot
	data, err := s.rdb.Get(ctx, s.snapKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		return snap, false, nil
	}
	if err != nil {
		return snap, false, fmt.Errorf("redis get snapshot: %w", err)
	}

	snap.Settings = model.DefaultSettings()
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, false, fmt.Errorf("redis unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}

// Save writes the snapshot as JSON.
func (s *Store) Save(ctx context.Context, snap model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis marshal snapshot: %w", err)
	}
	return s.cb.do(ctx, "set snapshot", func() error {
		return s.rdb.Set(ctx, s.snapKey, data, 0).Err()
	})
}

// RecordAlert pushes rec onto the capped alert list, newest first.
func (s *Store) RecordAlert(ctx context.Context, rec model.AlertRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis marshal alert: %w", err)
	}
	return s.cb.do(ctx, "record alert", func() error {
		if err := s.rdb.LPush(ctx, s.alertKey, data).Err(); err != nil {
			return err
		}
		return s.rdb.LTrim(ctx, s.alertKey, 0, int64(s.alertCap-1)).Err()
	})
}

// RecentAlerts returns up to limit alerts, newest first.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]model.AlertRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := s.rdb.LRange(ctx, s.alertKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis range alerts: %w", err)
	}
	out := make([]model.AlertRecord, 0, len(raw))
	for _, r := range raw {
		var rec model.AlertRecord
		if err := json.Unmarshal([]byte(r), &rec); err != nil {
			log.Printf("[redis] skipping malformed alert entry: %v", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Ping checks Redis is reachable and writes are not being rejected, so the
// health check reports an open write breaker as degraded storage.
func (s *Store) Ping(ctx context.Context) error {
	if state, trips := s.cb.status(); state == StateOpen {
		return fmt.Errorf("%w (tripped %d times)", ErrCircuitOpen, trips)
	}
	return s.rdb.Ping(ctx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.rdb.Close()
}
