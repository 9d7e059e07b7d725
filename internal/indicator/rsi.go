package indicator

// RSI computes the Relative Strength Index over the last period deltas of
// closes (oldest first) using plain averages of gains and losses.
// ok is false when fewer than period+1 closes are available.
//
// An all-gain window yields 100. A flat window (no gain, no loss) yields 50.
func RSI(closes []float64, period int) (value float64, ok bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}

	var gain, loss float64
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}

	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	switch {
	case avgLoss == 0 && avgGain == 0:
		return 50, true
	case avgLoss == 0:
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs)), true
}
