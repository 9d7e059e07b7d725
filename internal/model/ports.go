package model

import "context"

// ── Storage Port Interfaces ──
// These interfaces decouple the watch list and the poll loop from concrete
// storage implementations (SQLite, Redis). Each backend satisfies both.

// Snapshot is the durable part of the runtime state: the watch list plus the
// alerting settings.
type Snapshot struct {
	Stocks   []WatchedStock `json:"stocks"`
	Settings Settings       `json:"settings"`
}

// SnapshotStore loads and saves the watch list and settings.
type SnapshotStore interface {
	// Load returns the persisted snapshot. found is false when nothing has
	// been saved yet; callers then start from an empty list and defaults.
	Load(ctx context.Context) (snap Snapshot, found bool, err error)

	// Save replaces the persisted snapshot.
	Save(ctx context.Context, snap Snapshot) error

	// Close releases underlying resources.
	Close() error
}

// AlertRecorder appends fired alerts to the alert history.
type AlertRecorder interface {
	RecordAlert(ctx context.Context, rec AlertRecord) error
}
