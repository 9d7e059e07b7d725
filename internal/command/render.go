package command

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/1308774130/StockSentinel/internal/model"
	"github.com/1308774130/StockSentinel/internal/quote"
	"github.com/1308774130/StockSentinel/internal/watchlist"
)

const helpText = `📖 命令帮助:

添加/删除股票
• add 600519
• remove 600519
• list（查看列表）

查看/修改配置
• config（查看当前配置）
• 改间隔 30（检查间隔，秒）
• 改超买 85（RSI 超买线）
• 改超卖 15（RSI 超卖线）
• 改涨跌 5（涨跌幅阈值，%）
• 改量比 2（量比阈值）
• 改冷却 1800（同一股票提醒间隔，秒）

其他
• status（查看状态）
• help（查看帮助）

💡 支持的股票代码: 600519, sz000001, 300750 等`

// usage examples for missing-argument replies.
var usage = map[Kind]string{
	KindAdd:    "add 600519",
	KindRemove: "remove 600519",
}

var fieldUsage = map[watchlist.Field]string{
	watchlist.FieldPollInterval:  "改间隔 30",
	watchlist.FieldRSIOverbought: "改超买 85",
	watchlist.FieldRSIOversold:   "改超卖 15",
	watchlist.FieldPctChange:     "改涨跌 5",
	watchlist.FieldVolumeRatio:   "改量比 2",
	watchlist.FieldCooldown:      "改冷却 1800",
}

func renderParseError(cmd Command) string {
	switch {
	case errors.Is(cmd.Err, ErrMissingArgument):
		ex := usage[cmd.Kind]
		if cmd.Kind == KindSet {
			ex = fieldUsage[cmd.Field]
		}
		return fmt.Sprintf("❌ 缺少参数，用法: %s", ex)
	case errors.Is(cmd.Err, ErrInvalidNumber):
		return fmt.Sprintf("❌ 请输入有效的数字: %s", cmd.Arg)
	case errors.Is(cmd.Err, quote.ErrInvalidCode):
		return fmt.Sprintf("❌ 股票代码格式错误: %s（应为 6 位数字，如 600519）", cmd.Arg)
	}
	return renderFailure(cmd.Err)
}

func renderUnknown(name string) string {
	return fmt.Sprintf("❓ 未知命令: %s\n\n发送 help 查看帮助", name)
}

func renderFailure(err error) string {
	return fmt.Sprintf("❌ 操作失败: %v", err)
}

func renderAdded(s model.WatchedStock, price float64) string {
	if s.Name == "" {
		return fmt.Sprintf("✅ 已添加: %s（名称暂未获取）", s.Code)
	}
	return fmt.Sprintf("✅ 已添加: %s\n当前价: %.2f", s.Label(), price)
}

func renderAlreadyPresent(code string) string {
	return fmt.Sprintf("ℹ️ %s 已在监控列表中", code)
}

func renderNotFound(code string) string {
	return fmt.Sprintf("❌ 未找到股票: %s", code)
}

func renderNotWatched(code string) string {
	return fmt.Sprintf("❌ %s 不在监控列表中", code)
}

func renderRemoved(s model.WatchedStock, code string) string {
	if s.Code == "" {
		s.Code = code
	}
	return fmt.Sprintf("✅ 已移除: %s", s.Label())
}

func renderList(stocks []model.WatchedStock, cooling map[string]bool) string {
	if len(stocks) == 0 {
		return "📭 当前没有监控的股票"
	}
	var b strings.Builder
	b.WriteString("📊 监控列表:\n")
	for i, s := range stocks {
		fmt.Fprintf(&b, "\n%d. %s", i+1, s.Label())
		if cooling[s.Code] {
			b.WriteString(" 🔕 冷却中")
		}
	}
	return b.String()
}

func renderConfig(s model.Settings) string {
	return fmt.Sprintf(`⚙️ 当前监控条件:

🔄 检查间隔: %d秒
📊 RSI周期: 6
⚠️ RSI超买: >%g
✅ RSI超卖: <%g
📈 涨跌幅预警: ±%g%%
💹 量比预警: ≥%g倍
⏳ 提醒冷却: %d秒

💡 修改方法: 改间隔 30`,
		s.PollIntervalSeconds, s.RSIOverbought, s.RSIOversold,
		s.PctChangeThreshold, s.VolumeRatioThreshold, s.CooldownSeconds)
}

func renderStatus(st model.MonitorStatus, watched int, now time.Time) string {
	state := "🔴 已停止"
	if st.Running {
		state = "🟢 运行中"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 监控状态: %s\n📈 监控股票: %d只", state, watched)
	if !st.StartedAt.IsZero() {
		fmt.Fprintf(&b, "\n⏱ 运行时长: %s", now.Sub(st.StartedAt).Round(time.Second))
	}
	if st.LastCheck.IsZero() {
		b.WriteString("\n🕐 上次检查: 尚未执行")
	} else {
		fmt.Fprintf(&b, "\n🕐 上次检查: %s", st.LastCheck.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&b, "\n🔁 已完成轮次: %d", st.Cycles)
	return b.String()
}

func renderUpdated(f watchlist.Field, s model.Settings) string {
	var v string
	switch f {
	case watchlist.FieldPollInterval:
		v = fmt.Sprintf("%d秒", s.PollIntervalSeconds)
	case watchlist.FieldRSIOverbought:
		v = fmt.Sprintf("%g", s.RSIOverbought)
	case watchlist.FieldRSIOversold:
		v = fmt.Sprintf("%g", s.RSIOversold)
	case watchlist.FieldPctChange:
		v = fmt.Sprintf("%g%%", s.PctChangeThreshold)
	case watchlist.FieldVolumeRatio:
		v = fmt.Sprintf("%g倍", s.VolumeRatioThreshold)
	case watchlist.FieldCooldown:
		v = fmt.Sprintf("%d秒", s.CooldownSeconds)
	}
	return fmt.Sprintf("✅ %s已改为: %s", f.Label(), v)
}

func renderValidation(ve *watchlist.ValidationError) string {
	return fmt.Sprintf("❌ %s应%s", ve.Field.Label(), ve.Range)
}
