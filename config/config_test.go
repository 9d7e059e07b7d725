package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/1308774130/StockSentinel/internal/model"
	"github.com/1308774130/StockSentinel/internal/watchlist"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreBackend != BackendSQLite {
		t.Errorf("expected sqlite default, got %q", cfg.StoreBackend)
	}
	if cfg.QuoteTimeout != 5*time.Second {
		t.Errorf("expected 5s quote timeout, got %v", cfg.QuoteTimeout)
	}
	if cfg.PollConcurrency != 4 || cfg.HistoryWindow != 20 {
		t.Errorf("unexpected poll defaults %+v", cfg)
	}
	if cfg.MarketHoursOnly {
		t.Error("market hours gate should default off")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")
	t.Setenv("MARKET_HOURS_ONLY", "true")
	t.Setenv("STOCK_LIST", "600519,sz000001")
	t.Setenv("QUOTE_TIMEOUT", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreBackend != BackendRedis || cfg.RedisAddr != "redis:6379" {
		t.Errorf("unexpected redis config %+v", cfg)
	}
	if cfg.TelegramChatID != -100123 {
		t.Errorf("unexpected chat id %d", cfg.TelegramChatID)
	}
	if !cfg.MarketHoursOnly || cfg.QuoteTimeout != 2*time.Second {
		t.Errorf("unexpected poll config %+v", cfg)
	}
	if len(cfg.StockList) != 2 {
		t.Errorf("expected 2 stocks, got %v", cfg.StockList)
	}
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "mongo")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestFeishuInteractive(t *testing.T) {
	c := &Config{FeishuAppID: "cli_a"}
	if c.FeishuInteractive() {
		t.Fatal("secret missing, should not be interactive")
	}
	c.FeishuAppSecret = "s"
	if !c.FeishuInteractive() {
		t.Fatal("expected interactive with both credentials")
	}
}

func TestSeed_FileAndStockList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	yml := `settings:
  poll_interval_seconds: 30
  rsi_overbought: 75
  rsi_oversold: 25
  pct_change_threshold: 3
  volume_ratio_threshold: 2.5
  cooldown_seconds: 600
stocks:
  - code: "600519"
    name: 贵州茅台
  - code: sh601318
    name: 中国平安
  - code: "12345"
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	c := &Config{SeedFile: path, StockList: []string{"600519", " sz000001 ", "", "abc"}}
	snap, err := c.Seed()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if snap.Settings.PollIntervalSeconds != 30 || snap.Settings.RSIOverbought != 75 {
		t.Errorf("unexpected seed settings %+v", snap.Settings)
	}
	want := []struct{ code, name string }{
		{"600519", "贵州茅台"},
		{"601318", "中国平安"},
		{"000001", ""},
	}
	if len(snap.Stocks) != len(want) {
		t.Fatalf("expected %d stocks, got %+v", len(want), snap.Stocks)
	}
	for i, w := range want {
		if snap.Stocks[i].Code != w.code || snap.Stocks[i].Name != w.name {
			t.Errorf("stock %d = %+v, want %s %s", i, snap.Stocks[i], w.code, w.name)
		}
		if snap.Stocks[i].AddedAt.IsZero() {
			t.Errorf("stock %d has no AddedAt", i)
		}
	}
}

func TestSeed_NoSources(t *testing.T) {
	snap, err := (&Config{}).Seed()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(snap.Stocks) != 0 || snap.Settings.PollIntervalSeconds != 0 {
		t.Fatalf("expected empty seed, got %+v", snap)
	}
}

func TestSeed_MissingFile(t *testing.T) {
	c := &Config{SeedFile: filepath.Join(t.TempDir(), "nope.yaml")}
	if _, err := c.Seed(); err == nil {
		t.Fatal("expected error for missing seed file")
	}
}

func TestSeed_PartialSettingsKeepDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	yml := `settings:
  rsi_overbought: 85
stocks:
  - code: "600519"
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	snap, err := (&Config{SeedFile: path}).Seed()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	want := model.DefaultSettings()
	want.RSIOverbought = 85
	if snap.Settings != want {
		t.Fatalf("expected defaults with overbought 85, got %+v", snap.Settings)
	}

	s, err := watchlist.Open(context.Background(), nil, snap)
	if err != nil {
		t.Fatalf("open with partial seed settings: %v", err)
	}
	if s.Settings() != want || !s.Has("600519") {
		t.Fatalf("unexpected store state %+v", s.Snapshot())
	}
}

func TestSeed_FileWithoutSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte("stocks:\n  - code: \"000001\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	snap, err := (&Config{SeedFile: path}).Seed()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if snap.Settings != model.DefaultSettings() {
		t.Fatalf("expected default settings, got %+v", snap.Settings)
	}
}
