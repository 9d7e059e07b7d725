// Package indicator derives the alerting signals' inputs from a quote and the
// ticker's recent history: RSI over a short window, intraday % change versus
// the previous close, and the volume ratio against trailing samples.
//
// Every value that needs warm-up data carries a Ready flag instead of a
// sentinel; callers must skip rules whose input is not ready.
package indicator

import "errors"

// ErrInsufficientData is returned when a quote cannot be evaluated at all,
// e.g. a zero previous close. Nothing is recorded in that case.
var ErrInsufficientData = errors.New("indicator: insufficient data")

// Result is the indicator output for one ticker in one poll cycle.
type Result struct {
	Code string

	// PctChange is (price - prevClose) / prevClose * 100. Always set.
	PctChange float64

	RSI      float64
	RSIReady bool

	VolumeRatio float64
	VolumeReady bool

	// HistoryLen is the number of samples held for the ticker after this
	// evaluation.
	HistoryLen int
}
