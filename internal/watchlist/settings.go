package watchlist

import (
	"fmt"
	"math"

	"github.com/1308774130/StockSentinel/internal/model"
)

// Field names one mutable Settings field.
type Field int

const (
	FieldPollInterval Field = iota + 1
	FieldRSIOverbought
	FieldRSIOversold
	FieldPctChange
	FieldVolumeRatio
	FieldCooldown
)

var fieldNames = map[Field]string{
	FieldPollInterval:  "poll_interval",
	FieldRSIOverbought: "rsi_overbought",
	FieldRSIOversold:   "rsi_oversold",
	FieldPctChange:     "pct_change",
	FieldVolumeRatio:   "volume_ratio",
	FieldCooldown:      "cooldown",
}

// Label is the display name used in chat replies.
func (f Field) Label() string {
	switch f {
	case FieldPollInterval:
		return "检查间隔"
	case FieldRSIOverbought:
		return "RSI 超买线"
	case FieldRSIOversold:
		return "RSI 超卖线"
	case FieldPctChange:
		return "涨跌幅阈值"
	case FieldVolumeRatio:
		return "量比阈值"
	case FieldCooldown:
		return "冷却时间"
	}
	return "未知字段"
}

func (f Field) String() string {
	if n, ok := fieldNames[f]; ok {
		return n
	}
	return "unknown"
}

// apply validates value for f against cur and returns the updated settings.
func apply(cur model.Settings, f Field, v float64) (model.Settings, error) {
	reject := func(rng string) (model.Settings, error) {
		return cur, &ValidationError{Field: f, Value: v, Range: rng}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return reject("有效数字")
	}

	next := cur
	switch f {
	case FieldPollInterval:
		if v != math.Trunc(v) || v < 10 || v > 600 {
			return reject("10 到 600 之间的整数（秒）")
		}
		next.PollIntervalSeconds = int(v)
	case FieldRSIOverbought:
		if v <= 50 || v >= 100 {
			return reject("大于 50 且小于 100")
		}
		if v <= cur.RSIOversold {
			return reject(fmt.Sprintf("大于当前超卖线 %g", cur.RSIOversold))
		}
		next.RSIOverbought = v
	case FieldRSIOversold:
		if v <= 0 || v >= 50 {
			return reject("大于 0 且小于 50")
		}
		if v >= cur.RSIOverbought {
			return reject(fmt.Sprintf("小于当前超买线 %g", cur.RSIOverbought))
		}
		next.RSIOversold = v
	case FieldPctChange:
		if v <= 0 || v > 20 {
			return reject("大于 0 且不超过 20")
		}
		next.PctChangeThreshold = v
	case FieldVolumeRatio:
		if v <= 1 || v > 20 {
			return reject("大于 1 且不超过 20")
		}
		next.VolumeRatioThreshold = v
	case FieldCooldown:
		if v != math.Trunc(v) || v < 0 || v > 86400 {
			return reject("0 到 86400 之间的整数（秒）")
		}
		next.CooldownSeconds = int(v)
	default:
		return reject("已知字段")
	}
	return next, nil
}

// Validate checks every field of s, e.g. settings read from a seed file or a
// persisted snapshot.
func Validate(s model.Settings) error {
	// Apply field by field from a permissive base so the cross-field check
	// sees the final pair.
	base := model.Settings{RSIOverbought: 100, RSIOversold: 0}
	steps := []struct {
		f Field
		v float64
	}{
		{FieldPollInterval, float64(s.PollIntervalSeconds)},
		{FieldRSIOversold, s.RSIOversold},
		{FieldRSIOverbought, s.RSIOverbought},
		{FieldPctChange, s.PctChangeThreshold},
		{FieldVolumeRatio, s.VolumeRatioThreshold},
		{FieldCooldown, float64(s.CooldownSeconds)},
	}
	var err error
	for _, st := range steps {
		if base, err = apply(base, st.f, st.v); err != nil {
			return err
		}
	}
	return nil
}
