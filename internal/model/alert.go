package model

import "time"

// AlertRecord is one fired alert, kept for auditing.
type AlertRecord struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	PctChange float64   `json:"pct_change"`
	Signals   []string  `json:"signals"`
	At        time.Time `json:"at"`
}
