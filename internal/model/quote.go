package model

import "time"

// Quote is a single real-time snapshot for one ticker as returned by the
// quote source. Prices are in yuan; Volume is in lots (手) and Amount in
// units of 10k yuan (万), as published by the exchange feeds.
type Quote struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	PrevClose float64   `json:"prev_close"`
	Volume    float64   `json:"volume"`
	Amount    float64   `json:"amount"`
	Time      time.Time `json:"time"`
}

// Sample is one point of a ticker's rolling history.
type Sample struct {
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Sample returns the history point derived from this quote.
func (q *Quote) Sample() Sample {
	return Sample{Close: q.Price, Volume: q.Volume}
}
