// Package sqlite persists the watch list, the alerting settings and the
// alert history in a local SQLite database (WAL mode).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/1308774130/StockSentinel/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const settingsKey = "alerting"

// Store is the SQLite-backed persister. It satisfies model.SnapshotStore and
// model.AlertRecorder.
type Store struct {
	db   *sql.DB
	path string
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens (creating if needed) the database at path and applies the schema.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer; the store is only touched by serialized saves and the
	// poll loop's alert appends.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", path)
	return &Store{db: db, path: path}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS monitor_stocks (
			code     TEXT    PRIMARY KEY,
			name     TEXT    NOT NULL DEFAULT '',
			added_at INTEGER NOT NULL,
			position INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS alert_history (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			code       TEXT    NOT NULL,
			name       TEXT    NOT NULL DEFAULT '',
			price      REAL    NOT NULL,
			pct_change REAL    NOT NULL,
			signals    TEXT    NOT NULL,
			at         INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_alert_history_at ON alert_history (at);
	`)
	return err
}

// Save replaces the persisted watch list and settings in one transaction.
func (s *Store) Save(ctx context.Context, snap model.Snapshot) error {
	settings, err := json.Marshal(snap.Settings)
	if err != nil {
		return fmt.Errorf("sqlite marshal settings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM monitor_stocks`); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite clear stocks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO monitor_stocks (code, name, added_at, position)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i, st := range snap.Stocks {
		if _, err := stmt.ExecContext(ctx, st.Code, st.Name, st.AddedAt.UnixNano(), i); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert stock %s: %w", st.Code, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`,
		settingsKey, string(settings),
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite save settings: %w", err)
	}

	return tx.Commit()
}

// RecordAlert appends one fired alert to alert_history.
func (s *Store) RecordAlert(ctx context.Context, rec model.AlertRecord) error {
	signals, err := json.Marshal(rec.Signals)
	if err != nil {
		return fmt.Errorf("sqlite marshal signals: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alert_history (code, name, price, pct_change, signals, at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.Code, rec.Name, rec.Price, rec.PctChange, string(signals), rec.At.UnixNano())
	if err != nil {
		return fmt.Errorf("sqlite insert alert: %w", err)
	}
	return nil
}

// PruneAlerts keeps only the newest keep rows of alert_history.
func (s *Store) PruneAlerts(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM alert_history
		WHERE id NOT IN (SELECT id FROM alert_history ORDER BY at DESC, id DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("sqlite prune alerts: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
