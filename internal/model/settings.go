package model

import "time"

// Settings are the runtime alerting thresholds. They are a singleton owned by
// the watchlist store and mutated in place by chat commands.
// Invariant: RSIOversold < RSIOverbought.
type Settings struct {
	PollIntervalSeconds  int     `json:"poll_interval_seconds" yaml:"poll_interval_seconds"`
	RSIOverbought        float64 `json:"rsi_overbought" yaml:"rsi_overbought"`
	RSIOversold          float64 `json:"rsi_oversold" yaml:"rsi_oversold"`
	PctChangeThreshold   float64 `json:"pct_change_threshold" yaml:"pct_change_threshold"`
	VolumeRatioThreshold float64 `json:"volume_ratio_threshold" yaml:"volume_ratio_threshold"`
	CooldownSeconds      int     `json:"cooldown_seconds" yaml:"cooldown_seconds"`
}

// DefaultSettings returns the thresholds used when nothing was persisted.
func DefaultSettings() Settings {
	return Settings{
		PollIntervalSeconds:  60,
		RSIOverbought:        80,
		RSIOversold:          20,
		PctChangeThreshold:   5,
		VolumeRatioThreshold: 2,
		CooldownSeconds:      1800,
	}
}

// PollInterval returns the poll cadence as a duration.
func (s Settings) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

// Cooldown returns the per-ticker alert cooldown as a duration.
func (s Settings) Cooldown() time.Duration {
	return time.Duration(s.CooldownSeconds) * time.Second
}
