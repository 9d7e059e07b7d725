package model

import "time"

// WatchedStock is one entry of the watch list. Code is the bare 6-digit
// exchange-agnostic ticker (e.g. "600519"); the market prefix is derived on
// demand by the quote source.
type WatchedStock struct {
	Code    string    `json:"code"`
	Name    string    `json:"name,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// Label renders "贵州茅台 (600519)", or the bare code when no name is known.
func (s WatchedStock) Label() string {
	if s.Name == "" {
		return s.Code
	}
	return s.Name + " (" + s.Code + ")"
}
