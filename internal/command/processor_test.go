package command

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/1308774130/StockSentinel/internal/cooldown"
	"github.com/1308774130/StockSentinel/internal/model"
	"github.com/1308774130/StockSentinel/internal/quote"
	"github.com/1308774130/StockSentinel/internal/watchlist"
)

type fakeQuotes struct {
	quotes map[string]model.Quote
	err    error
	calls  int
}

func (f *fakeQuotes) Fetch(ctx context.Context, code string) (model.Quote, error) {
	f.calls++
	if f.err != nil {
		return model.Quote{}, f.err
	}
	q, ok := f.quotes[code]
	if !ok {
		return model.Quote{}, quote.ErrNotFound
	}
	return q, nil
}

type fakeStatus struct{ st model.MonitorStatus }

func (f fakeStatus) Status() model.MonitorStatus { return f.st }

func newProcessor() (*Processor, *watchlist.Store, *fakeQuotes) {
	store := watchlist.New(nil)
	quotes := &fakeQuotes{quotes: map[string]model.Quote{
		"600519": {Code: "600519", Name: "贵州茅台", Price: 1850},
		"000001": {Code: "000001", Name: "平安银行", Price: 11.2},
	}}
	return NewProcessor(store, quotes, nil, nil), store, quotes
}

func TestHandle_AddIdempotent(t *testing.T) {
	p, store, quotes := newProcessor()
	ctx := context.Background()

	reply := p.Handle(ctx, "add 600519")
	if !strings.Contains(reply, "✅") || !strings.Contains(reply, "贵州茅台 (600519)") {
		t.Fatalf("unexpected add reply %q", reply)
	}

	reply = p.Handle(ctx, "add sh600519")
	if !strings.Contains(reply, "已在监控列表中") {
		t.Fatalf("duplicate add should say already present, got %q", reply)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one stock, got %d", store.Len())
	}
	if quotes.calls != 1 {
		t.Fatalf("duplicate add must not hit the quote source, got %d calls", quotes.calls)
	}
}

func TestHandle_AddNotFound(t *testing.T) {
	p, store, _ := newProcessor()

	reply := p.Handle(context.Background(), "add 999999")
	if !strings.Contains(reply, "未找到股票") {
		t.Fatalf("unexpected reply %q", reply)
	}
	if store.Has("999999") {
		t.Fatal("unknown code must not be added")
	}
}

func TestHandle_AddTransientLookup(t *testing.T) {
	p, store, quotes := newProcessor()
	quotes.err = errors.New("timeout")

	reply := p.Handle(context.Background(), "add 300750")
	if !strings.Contains(reply, "✅") {
		t.Fatalf("transient failure should still add, got %q", reply)
	}
	st, ok := store.Get("300750")
	if !ok || st.Name != "" {
		t.Fatalf("expected nameless stock, got %+v (ok=%v)", st, ok)
	}
}

func TestHandle_Remove(t *testing.T) {
	p, store, _ := newProcessor()
	ctx := context.Background()
	p.Handle(ctx, "add 000001")

	if reply := p.Handle(ctx, "remove 000001"); !strings.Contains(reply, "已移除: 平安银行 (000001)") {
		t.Fatalf("unexpected reply %q", reply)
	}
	if store.Has("000001") {
		t.Fatal("stock must be removed")
	}
	if reply := p.Handle(ctx, "remove 000001"); !strings.Contains(reply, "不在监控列表中") {
		t.Fatalf("unexpected reply %q", reply)
	}
}

func TestHandle_SetThenConfig(t *testing.T) {
	p, store, _ := newProcessor()
	ctx := context.Background()

	reply := p.Handle(ctx, "改超买 85")
	if !strings.Contains(reply, "✅") || !strings.Contains(reply, "85") {
		t.Fatalf("unexpected reply %q", reply)
	}
	if store.Settings().RSIOverbought != 85 {
		t.Fatalf("expected overbought 85, got %v", store.Settings().RSIOverbought)
	}
	if cfg := p.Handle(ctx, "config"); !strings.Contains(cfg, "RSI超买: >85") {
		t.Fatalf("config should show the new threshold, got %q", cfg)
	}
}

func TestHandle_SetRejected(t *testing.T) {
	p, store, _ := newProcessor()
	before := store.Settings()

	reply := p.Handle(context.Background(), "改超买 10")
	if !strings.HasPrefix(reply, "❌") || !strings.Contains(reply, "RSI 超买线") {
		t.Fatalf("expected validation reply naming the field, got %q", reply)
	}
	if !strings.Contains(reply, "50") {
		t.Fatalf("reply should state the valid range, got %q", reply)
	}
	if store.Settings() != before {
		t.Fatal("settings must be unchanged")
	}
}

func TestHandle_Errors(t *testing.T) {
	p, _, _ := newProcessor()
	ctx := context.Background()

	cases := map[string]string{
		"改间隔 abc":    "请输入有效的数字",
		"改间隔":        "缺少参数",
		"add":        "缺少参数",
		"add 12ab56": "股票代码格式错误",
		"foo bar":    "未知命令: foo",
	}
	for text, want := range cases {
		if reply := p.Handle(ctx, text); !strings.Contains(reply, want) {
			t.Errorf("Handle(%q) = %q, want substring %q", text, reply, want)
		}
	}
}

func TestHandle_AlwaysReplies(t *testing.T) {
	p, _, _ := newProcessor()
	for _, text := range []string{"", "help", "list", "config", "status", "?", "@_user_1", "改冷却 -5", "超卖 99"} {
		if reply := p.Handle(context.Background(), text); reply == "" {
			t.Errorf("Handle(%q) returned an empty reply", text)
		}
	}
}

func TestHandle_ListAndStatus(t *testing.T) {
	store := watchlist.New(nil)
	started := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	status := fakeStatus{st: model.MonitorStatus{
		Running: true, StartedAt: started, LastCheck: started.Add(time.Hour), Cycles: 42,
	}}
	p := NewProcessor(store, nil, status, nil)
	p.now = func() time.Time { return started.Add(2 * time.Hour) }
	ctx := context.Background()

	if reply := p.Handle(ctx, "list"); !strings.Contains(reply, "没有监控的股票") {
		t.Fatalf("unexpected empty list reply %q", reply)
	}

	p.Handle(ctx, "add 600519")
	p.Handle(ctx, "add 000001")
	list := p.Handle(ctx, "list")
	if !strings.Contains(list, "1. 600519") || !strings.Contains(list, "2. 000001") {
		t.Fatalf("unexpected list reply %q", list)
	}

	st := p.Handle(ctx, "status")
	for _, want := range []string{"运行中", "2只", "2h0m0s", "2026-03-02 10:00:00", "42"} {
		if !strings.Contains(st, want) {
			t.Errorf("status reply missing %q: %q", want, st)
		}
	}
}

func TestHandle_ListMarksCooling(t *testing.T) {
	store := watchlist.New(nil)
	cd := cooldown.New()
	store.Subscribe(watchlist.Hooks{OnAdd: func(st model.WatchedStock) { cd.Track(st.Code) }})

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	p := NewProcessor(store, nil, nil, nil)
	p.SetCooldown(cd)
	p.now = func() time.Time { return now }
	ctx := context.Background()

	p.Handle(ctx, "add 600519")
	p.Handle(ctx, "add 000001")
	cd.Record("600519", now.Add(-10*time.Minute))
	cd.Record("000001", now.Add(-time.Hour))

	lines := strings.Split(p.Handle(ctx, "list"), "\n")
	var marked []string
	for _, l := range lines {
		if strings.Contains(l, "冷却中") {
			marked = append(marked, l)
		}
	}
	// Default cooldown is 30 minutes: only the 10-minute-old alert is cooling.
	if len(marked) != 1 || !strings.Contains(marked[0], "600519") {
		t.Fatalf("expected only 600519 marked, got %q", marked)
	}
}
