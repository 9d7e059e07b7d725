// Package feishu talks to Feishu (Lark): interactive-card alerts through a
// group bot webhook, text replies through the open API with a cached
// tenant_access_token, and the event callback that turns group messages
// into commands.
package feishu

import (
	"fmt"
	"strings"

	"github.com/1308774130/StockSentinel/internal/model"
	"github.com/1308774130/StockSentinel/internal/notification"
)

// Card header templates.
const (
	ColorRed   = "red"
	ColorGreen = "green"
	ColorBlue  = "blue"
)

// Card is the "interactive" message body accepted by bot webhooks.
type Card struct {
	Config   cardConfig    `json:"config"`
	Header   cardHeader    `json:"header"`
	Elements []cardElement `json:"elements"`
}

type cardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

type cardHeader struct {
	Title    cardText `json:"title"`
	Template string   `json:"template"`
}

type cardElement struct {
	Tag  string   `json:"tag"`
	Text cardText `json:"text"`
}

type cardText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

// NewCard builds a single-block card with a colored header and a lark_md
// body.
func NewCard(title, content, color string) Card {
	return Card{
		Config: cardConfig{WideScreenMode: true},
		Header: cardHeader{
			Title:    cardText{Tag: "plain_text", Content: title},
			Template: color,
		},
		Elements: []cardElement{
			{Tag: "div", Text: cardText{Tag: "lark_md", Content: content}},
		},
	}
}

// ColorFor maps the move direction to a header color: red up, green down
// (A-share convention), blue flat.
func ColorFor(d notification.Direction) string {
	switch d {
	case notification.DirectionUp:
		return ColorRed
	case notification.DirectionDown:
		return ColorGreen
	}
	return ColorBlue
}

// AlertCard renders a fired alert.
func AlertCard(a notification.Alert) Card {
	return NewCard(notification.Title, a.Markdown(), ColorFor(a.Direction()))
}

// ListCard renders the watch list.
func ListCard(stocks []model.WatchedStock) Card {
	if len(stocks) == 0 {
		return NewCard("监控股票列表", "📭 当前没有监控的股票", ColorBlue)
	}
	var b strings.Builder
	b.WriteString("📊 **监控列表:**\n\n")
	for i, s := range stocks {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, s.Label())
	}
	return NewCard("监控股票列表", b.String(), ColorBlue)
}

// StartupCard announces the bot with the active thresholds.
func StartupCard(s model.Settings) Card {
	content := fmt.Sprintf(`股票监控机器人已成功启动！

⏱️ 检查间隔: %d秒
📊 预警条件:
• RSI超买: >%g
• RSI超卖: <%g
• 涨跌幅: >%g%%
• 量比: >%gx

💡 **飞书交互命令:**
在群里 @我 + 命令，例如：
• @我 add 600519（添加股票）
• @我 list（查看列表）
• @我 config（查看配置）
• @我 help（查看帮助）`,
		s.PollIntervalSeconds, s.RSIOverbought, s.RSIOversold,
		s.PctChangeThreshold, s.VolumeRatioThreshold)
	return NewCard("🤖 机器人已启动", content, ColorBlue)
}
