package model

import "time"

// MonitorStatus is a point-in-time view of the poll loop.
type MonitorStatus struct {
	Running    bool      `json:"running"`
	StartedAt  time.Time `json:"started_at"`
	LastCheck  time.Time `json:"last_check"`
	Cycles     uint64    `json:"cycles"`
	MarketOpen bool      `json:"market_open"`
}
