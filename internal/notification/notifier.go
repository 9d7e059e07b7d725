// Package notification delivers stock alerts to external channels.
//
// Alert is the channel-neutral payload composed by the poll loop. Each
// backend (log, generic webhook, Feishu card, Telegram, WebSocket feed)
// renders it in its own format.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Direction is the sign of the intraday move.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionFlat Direction = "flat"
)

// Title is the heading used by every channel.
const Title = "【股票异动提醒】"

// Alert is one fired alert for one ticker.
type Alert struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	PrevClose float64   `json:"prev_close"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	PctChange float64   `json:"pct_change"`
	Amount    float64   `json:"amount"` // 10k CNY
	Signals   []string  `json:"signals"`
	At        time.Time `json:"at"`
}

// Direction classifies the move against the previous close.
func (a Alert) Direction() Direction {
	switch {
	case a.PctChange > 0:
		return DirectionUp
	case a.PctChange < 0:
		return DirectionDown
	}
	return DirectionFlat
}

// Subject is "name (code)", or just the code when the name is unknown.
func (a Alert) Subject() string {
	if a.Name == "" {
		return a.Code
	}
	return fmt.Sprintf("%s (%s)", a.Name, a.Code)
}

// Markdown renders the alert body with bold markers, as used by card
// messages.
func (a Alert) Markdown() string {
	return a.render("**")
}

// Text renders the alert body as plain text.
func (a Alert) Text() string {
	return a.render("")
}

func (a Alert) render(bold string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%s%s\n", bold, a.Subject(), bold)
	fmt.Fprintf(&b, "📈 当前价: %s%.2f%s (%+.2f%%) 昨收 %.2f\n", bold, a.Price, bold, a.PctChange, a.PrevClose)
	fmt.Fprintf(&b, "📊 今日: 开 %.2f | 高 %.2f | 低 %.2f\n", a.Open, a.High, a.Low)
	if a.Amount > 0 {
		fmt.Fprintf(&b, "💰 成交额: %.0f万\n", a.Amount)
	}
	fmt.Fprintf(&b, "\n⚠️ %s异动信号:%s\n", bold, bold)
	for _, s := range a.Signals {
		fmt.Fprintf(&b, "• %s\n", s)
	}
	fmt.Fprintf(&b, "\n⏰ %s", a.At.Format("2006-01-02 15:04:05"))
	return b.String()
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts. Used when no chat channel is configured.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] %s %s: %s", Title, alert.Subject(), strings.Join(alert.Signals, " | "))
	return nil
}

// Multi fans an alert out to several notifiers. Every backend is attempted;
// failures are joined.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
