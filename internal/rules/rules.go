// Package rules turns indicator results into alert signals.
//
// Evaluate is pure: it reads an indicator.Result and the current settings and
// returns the triggered signals in a fixed order (overbought, oversold, move,
// volume surge). An empty result means no alert for the ticker this cycle.
package rules

import (
	"fmt"
	"math"

	"github.com/1308774130/StockSentinel/internal/indicator"
	"github.com/1308774130/StockSentinel/internal/model"
)

// Kind identifies which rule fired.
type Kind string

const (
	KindOverbought  Kind = "overbought"
	KindOversold    Kind = "oversold"
	KindPriceMove   Kind = "price_move"
	KindVolumeSurge Kind = "volume_surge"
)

// Signal is one triggered rule.
type Signal struct {
	Kind  Kind    `json:"kind"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Evaluate applies every rule to r. Rules whose input is not ready never fire.
func Evaluate(r indicator.Result, s model.Settings) []Signal {
	var out []Signal

	if r.RSIReady && r.RSI > s.RSIOverbought {
		out = append(out, Signal{
			Kind:  KindOverbought,
			Label: fmt.Sprintf("RSI(6) = %.1f （超买）", r.RSI),
			Value: r.RSI,
		})
	}
	if r.RSIReady && r.RSI < s.RSIOversold {
		out = append(out, Signal{
			Kind:  KindOversold,
			Label: fmt.Sprintf("RSI(6) = %.1f （超卖）", r.RSI),
			Value: r.RSI,
		})
	}
	if math.Abs(r.PctChange) >= s.PctChangeThreshold {
		out = append(out, Signal{
			Kind:  KindPriceMove,
			Label: fmt.Sprintf("日内波动 %+.2f%%", r.PctChange),
			Value: r.PctChange,
		})
	}
	if r.VolumeReady && r.VolumeRatio >= s.VolumeRatioThreshold {
		out = append(out, Signal{
			Kind:  KindVolumeSurge,
			Label: fmt.Sprintf("量比 %.1fx （成交量放大）", r.VolumeRatio),
			Value: r.VolumeRatio,
		})
	}
	return out
}

// Labels returns the signal labels in order.
func Labels(sigs []Signal) []string {
	out := make([]string, len(sigs))
	for i, s := range sigs {
		out[i] = s.Label
	}
	return out
}
