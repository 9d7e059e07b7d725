// Package config loads process configuration from the environment (with an
// optional .env file) and the initial watch list from an optional YAML seed
// file plus STOCK_LIST.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/1308774130/StockSentinel/internal/model"
	"github.com/1308774130/StockSentinel/internal/quote"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Persistence
	StoreBackend     string `envconfig:"STORE_BACKEND" default:"sqlite"`
	SQLitePath       string `envconfig:"SQLITE_PATH" default:"data/stocksentinel.db"`
	RedisAddr        string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword    string `envconfig:"REDIS_PASSWORD"`
	RedisDB          int    `envconfig:"REDIS_DB" default:"0"`
	RedisKeyPrefix   string `envconfig:"REDIS_KEY_PREFIX" default:"stocksentinel:"`
	AlertHistoryKeep int    `envconfig:"ALERT_HISTORY_KEEP" default:"1000"`

	// HTTP
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`

	// Feishu
	FeishuWebhook           string `envconfig:"FEISHU_WEBHOOK"`
	FeishuAppID             string `envconfig:"FEISHU_APP_ID"`
	FeishuAppSecret         string `envconfig:"FEISHU_APP_SECRET"`
	FeishuVerificationToken string `envconfig:"FEISHU_VERIFICATION_TOKEN"`

	// Telegram
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `envconfig:"TELEGRAM_CHAT_ID"`

	AlertWebhookURL string `envconfig:"ALERT_WEBHOOK_URL"`

	// Quotes and polling
	QuoteBaseURL    string        `envconfig:"QUOTE_BASE_URL" default:"http://qt.gtimg.cn/q="`
	QuoteTimeout    time.Duration `envconfig:"QUOTE_TIMEOUT" default:"5s"`
	HistoryWindow   int           `envconfig:"HISTORY_WINDOW" default:"20"`
	PollConcurrency int           `envconfig:"POLL_CONCURRENCY" default:"4"`
	MarketHoursOnly bool          `envconfig:"MARKET_HOURS_ONLY" default:"false"`

	// Seeding
	StockList []string `envconfig:"STOCK_LIST"`
	SeedFile  string   `envconfig:"SEED_FILE"`
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[config] WARNING: .env not loaded: %v", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = BackendSQLite
	}
	switch cfg.StoreBackend {
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		return nil, fmt.Errorf("config: STORE_BACKEND %q: want sqlite, redis or memory", cfg.StoreBackend)
	}
	if cfg.PollConcurrency <= 0 {
		cfg.PollConcurrency = 4
	}
	return &cfg, nil
}

// FeishuInteractive reports whether app credentials for replies are set.
func (c *Config) FeishuInteractive() bool {
	return c.FeishuAppID != "" && c.FeishuAppSecret != ""
}

type seedFile struct {
	Settings model.Settings `yaml:"settings"`
	Stocks   []seedStock     `yaml:"stocks"`
}

type seedStock struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// Seed builds the initial snapshot from SEED_FILE and STOCK_LIST. Codes are
// normalized and deduplicated; invalid ones are logged and skipped. With a
// seed file, settings start from the defaults and the file's keys override
// them; without one they stay zero.
func (c *Config) Seed() (model.Snapshot, error) {
	var snap model.Snapshot
	seen := make(map[string]bool)
	now := time.Now()

	add := func(raw, name string) {
		code, err := quote.NormalizeCode(raw)
		if err != nil {
			log.Printf("[config] skipping invalid stock code %q", raw)
			return
		}
		if seen[code] {
			return
		}
		seen[code] = true
		snap.Stocks = append(snap.Stocks, model.WatchedStock{Code: code, Name: name, AddedAt: now})
	}

	if c.SeedFile != "" {
		raw, err := os.ReadFile(c.SeedFile)
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("config: read seed file: %w", err)
		}
		sf := seedFile{Settings: model.DefaultSettings()}
		if err := yaml.Unmarshal(raw, &sf); err != nil {
			return model.Snapshot{}, fmt.Errorf("config: parse seed file: %w", err)
		}
		snap.Settings = sf.Settings
		for _, s := range sf.Stocks {
			add(s.Code, strings.TrimSpace(s.Name))
		}
	}

	for _, raw := range c.StockList {
		if raw = strings.TrimSpace(raw); raw != "" {
			add(raw, "")
		}
	}
	return snap, nil
}
