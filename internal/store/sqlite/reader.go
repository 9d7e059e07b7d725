package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/1308774130/StockSentinel/internal/model"
)

// Load restores the watch list and settings. found is false when neither a
// settings row nor any stock has been saved yet.
func (s *Store) Load(ctx context.Context) (model.Snapshot, bool, error) {
	var snap model.Snapshot

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, settingsKey).Scan(&raw)
	hasSettings := true
	switch {
	case errors.Is(err, sql.ErrNoRows):
		hasSettings = false
		snap.Settings = model.DefaultSettings()
	case err != nil:
		return snap, false, fmt.Errorf("sqlite read settings: %w", err)
	default:
		snap.Settings = model.DefaultSettings()
		if err := json.Unmarshal([]byte(raw), &snap.Settings); err != nil {
			return snap, false, fmt.Errorf("sqlite unmarshal settings: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, added_at
		FROM monitor_stocks
		ORDER BY position ASC
	`)
	if err != nil {
		return snap, false, fmt.Errorf("sqlite read stocks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st model.WatchedStock
		var addedAt int64
		if err := rows.Scan(&st.Code, &st.Name, &addedAt); err != nil {
			return snap, false, err
		}
		st.AddedAt = time.Unix(0, addedAt)
		snap.Stocks = append(snap.Stocks, st)
	}
	if err := rows.Err(); err != nil {
		return snap, false, err
	}

	return snap, hasSettings || len(snap.Stocks) > 0, nil
}

// RecentAlerts returns up to limit alerts, newest first.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]model.AlertRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, price, pct_change, signals, at
		FROM alert_history
		ORDER BY at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite read alerts: %w", err)
	}
	defer rows.Close()

	var out []model.AlertRecord
	for rows.Next() {
		var rec model.AlertRecord
		var signals string
		var at int64
		if err := rows.Scan(&rec.Code, &rec.Name, &rec.Price, &rec.PctChange, &signals, &at); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(signals), &rec.Signals); err != nil {
			return nil, fmt.Errorf("sqlite unmarshal signals: %w", err)
		}
		rec.At = time.Unix(0, at)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
