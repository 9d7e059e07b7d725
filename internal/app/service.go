// Package app wires the monitor process together: storage backend, watch
// list, indicator engine, notifiers, chat channels, poll loop and the HTTP
// servers, and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/1308774130/StockSentinel/config"
	"github.com/1308774130/StockSentinel/internal/command"
	"github.com/1308774130/StockSentinel/internal/cooldown"
	"github.com/1308774130/StockSentinel/internal/feishu"
	"github.com/1308774130/StockSentinel/internal/gateway"
	"github.com/1308774130/StockSentinel/internal/indicator"
	"github.com/1308774130/StockSentinel/internal/metrics"
	"github.com/1308774130/StockSentinel/internal/model"
	"github.com/1308774130/StockSentinel/internal/monitor"
	"github.com/1308774130/StockSentinel/internal/notification"
	"github.com/1308774130/StockSentinel/internal/quote"
	redisstore "github.com/1308774130/StockSentinel/internal/store/redis"
	sqlitestore "github.com/1308774130/StockSentinel/internal/store/sqlite"
	"github.com/1308774130/StockSentinel/internal/telegram"
	"github.com/1308774130/StockSentinel/internal/watchlist"
)

// backend is a durable store: snapshot persistence plus alert history.
type backend interface {
	model.SnapshotStore
	model.AlertRecorder
	gateway.AlertHistory
	metrics.Pinger
}

type pruner interface {
	PruneAlerts(ctx context.Context, keep int) (int64, error)
}

// statusFunc adapts a closure to the StatusSource interfaces, letting the
// command processor be built before the monitor it reports on.
type statusFunc func() model.MonitorStatus

func (f statusFunc) Status() model.MonitorStatus { return f() }

// Service is the top-level orchestrator.
type Service struct {
	cfg *config.Config

	prom   *metrics.Metrics
	health *metrics.HealthStatus

	backend  backend // nil for the memory backend
	store    *watchlist.Store
	engine   *indicator.Engine
	cooldown *cooldown.Store
	quotes   quote.Source

	hub       *gateway.Hub
	cards     *feishu.Notifier
	feishuAPI *feishu.Client
	tg        *telegram.Bot
	notifier  notification.Notifier

	monitor   *monitor.Monitor
	processor *command.Processor
}

// New opens the storage backend, restores the watch list and builds every
// component. Chat connections that fail to initialize are logged and
// skipped; a storage failure is fatal.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	svc := &Service{
		cfg:      cfg,
		prom:     metrics.NewMetrics(),
		health:   metrics.NewHealthStatus(cfg.StoreBackend),
		engine:   indicator.NewEngine(indicator.Config{Window: cfg.HistoryWindow}),
		cooldown: cooldown.New(),
		quotes:   quote.NewClient(cfg.QuoteBaseURL, cfg.QuoteTimeout),
	}

	var err error
	svc.backend, err = openBackend(cfg, svc.prom)
	if err != nil {
		return nil, err
	}

	seed, err := cfg.Seed()
	if err != nil {
		svc.closeBackend()
		return nil, err
	}

	var persister watchlist.Persister
	if svc.backend != nil {
		persister = svc.backend
	}
	svc.store, err = watchlist.Open(ctx, persister, seed)
	if err != nil {
		svc.closeBackend()
		return nil, err
	}

	// Membership changes keep cooldown tracking and indicator history in
	// step with the list. Subscribe replays existing stocks.
	svc.store.Subscribe(watchlist.Hooks{
		OnAdd: func(st model.WatchedStock) { svc.cooldown.Track(st.Code) },
		OnRemove: func(code string) {
			svc.cooldown.Forget(code)
			svc.engine.Forget(code)
		},
	})
	svc.prom.WatchedStocks.Set(float64(svc.store.Len()))
	svc.prom.ObserveHistory(svc.engine)
	svc.restoreCooldowns(ctx)

	svc.processor = command.NewProcessor(svc.store, svc.quotes,
		statusFunc(func() model.MonitorStatus {
			if svc.monitor == nil {
				return model.MonitorStatus{}
			}
			return svc.monitor.Status()
		}), svc.prom)
	svc.processor.SetCooldown(svc.cooldown)

	svc.notifier = svc.buildNotifiers()

	var recorder model.AlertRecorder
	if svc.backend != nil {
		recorder = svc.backend
	}
	svc.monitor = monitor.New(monitor.Config{
		Concurrency:     cfg.PollConcurrency,
		MarketHoursOnly: cfg.MarketHoursOnly,
	}, monitor.Deps{
		Store:    svc.store,
		Quotes:   svc.quotes,
		Engine:   svc.engine,
		Cooldown: svc.cooldown,
		Notifier: svc.notifier,
		Recorder: recorder,
		Metrics:  svc.prom,
		Health:   svc.health,
	})

	return svc, nil
}

// restoreCooldowns replays recent alert history so a restart does not
// re-alert stocks still inside their cooldown window.
func (svc *Service) restoreCooldowns(ctx context.Context) {
	if svc.backend == nil {
		return
	}
	recs, err := svc.backend.RecentAlerts(ctx, 500)
	if err != nil {
		log.Printf("[app] WARNING: cooldowns not restored: %v", err)
		return
	}

	now := time.Now()
	window := svc.store.Settings().Cooldown()
	restored := 0
	// Oldest first; each code keeps its latest alert.
	for i := len(recs) - 1; i >= 0; i-- {
		rec := recs[i]
		if now.Sub(rec.At) >= window || !svc.cooldown.Tracked(rec.Code) {
			continue
		}
		if last, ok := svc.cooldown.Last(rec.Code); ok && !rec.At.After(last) {
			continue
		}
		svc.cooldown.Record(rec.Code, rec.At)
		restored++
	}
	if restored > 0 {
		log.Printf("[app] restored %d cooldowns from alert history", restored)
	}
}

func openBackend(cfg *config.Config, prom *metrics.Metrics) (backend, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		s, err := redisstore.New(redisstore.Config{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
			AlertCap:  cfg.AlertHistoryKeep,
			Metrics:   prom,
		})
		if err != nil {
			return nil, fmt.Errorf("app: open redis store: %w", err)
		}
		return s, nil
	case config.BackendMemory:
		log.Println("[app] memory backend: watch list and alert history are not persisted")
		return nil, nil
	}
	s, err := sqlitestore.New(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("app: open sqlite store: %w", err)
	}
	return s, nil
}

// buildNotifiers assembles every configured alert backend. The WebSocket
// hub is always present; the log notifier stands in when no chat channel
// is configured.
func (svc *Service) buildNotifiers() notification.Notifier {
	cfg := svc.cfg
	svc.hub = gateway.NewHub(200, svc.prom)
	multi := notification.Multi{svc.hub}

	chat := false
	if cfg.FeishuWebhook != "" {
		svc.cards = feishu.NewNotifier(cfg.FeishuWebhook)
		multi = append(multi, svc.cards)
		chat = true
	}
	if cfg.FeishuInteractive() {
		svc.feishuAPI = feishu.NewClient(cfg.FeishuAppID, cfg.FeishuAppSecret, "")
	}
	if cfg.TelegramBotToken != "" {
		bot, err := telegram.New(cfg.TelegramBotToken, cfg.TelegramChatID, svc.processor)
		if err != nil {
			log.Printf("[app] WARNING: telegram disabled: %v", err)
		} else {
			svc.tg = bot
			if cfg.TelegramChatID != 0 {
				multi = append(multi, bot)
				chat = true
			}
		}
	}
	if cfg.AlertWebhookURL != "" {
		multi = append(multi, notification.NewWebhookNotifier(cfg.AlertWebhookURL))
	}
	if !chat {
		multi = append(multi, notification.NewLogNotifier())
	}
	return multi
}

// Processor exposes the command processor, e.g. for a console channel.
func (svc *Service) Processor() *command.Processor { return svc.processor }

// RunOnce runs a single poll cycle and returns.
func (svc *Service) RunOnce(ctx context.Context) error {
	log.Printf("[app] single-cycle mode: checking %d stocks", svc.store.Len())
	svc.monitor.RunCycle(ctx)
	log.Println("[app] single cycle complete")
	return nil
}

// Run starts every subsystem and blocks until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	cfg := svc.cfg

	if p, ok := svc.backend.(pruner); ok && cfg.AlertHistoryKeep > 0 {
		if n, err := p.PruneAlerts(ctx, cfg.AlertHistoryKeep); err != nil {
			log.Printf("[app] WARNING: prune alert history: %v", err)
		} else if n > 0 {
			log.Printf("[app] pruned %d old alerts", n)
		}
	}

	if svc.backend != nil {
		svc.health.CheckStore(ctx, svc.backend)
		svc.health.StartLivenessChecker(ctx, svc.backend, 10*time.Second)
	}

	metricsSrv := metrics.NewServer(cfg.MetricsAddr, svc.prom, svc.health)
	metricsSrv.Start()

	httpSrv := svc.httpServer(ctx)
	go func() {
		log.Printf("[app] http server listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[app] http server error: %v", err)
		}
	}()

	go svc.hub.StartStatusBroadcast(ctx, 5*time.Second, svc.monitor)

	if svc.tg != nil {
		go func() {
			if err := svc.tg.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("[app] telegram stopped: %v", err)
			}
		}()
	}

	if svc.cards != nil {
		if err := svc.cards.SendCard(ctx, feishu.StartupCard(svc.store.Settings())); err != nil {
			log.Printf("[app] WARNING: startup card: %v", err)
		}
	}

	log.Printf("[app] ✅ monitoring %d stocks, every %ds (backend=%s, history window=%d)",
		svc.store.Len(), svc.store.Settings().PollIntervalSeconds, cfg.StoreBackend,
		svc.engine.Config().Window)

	err := svc.monitor.Run(ctx)

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpSrv.Shutdown(shutCtx)
	metricsSrv.Stop(shutCtx)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// httpServer serves the alert feed and, with Feishu app credentials, the
// event callback.
func (svc *Service) httpServer(ctx context.Context) *http.Server {
	mux := http.NewServeMux()

	var history gateway.AlertHistory
	if svc.backend != nil {
		history = svc.backend
	}
	gateway.RegisterRoutes(mux, svc.hub, history, svc.store)

	if svc.feishuAPI != nil {
		mux.Handle("/feishu/event", feishu.NewEventHandler(ctx, svc.processor, svc.feishuAPI, svc.cfg.FeishuVerificationToken))
		log.Println("[app] feishu interactive mode enabled at /feishu/event")
	}

	return &http.Server{
		Addr:              svc.cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Close releases the storage backend.
func (svc *Service) Close() {
	svc.closeBackend()
	log.Println("[app] shutdown complete")
}

func (svc *Service) closeBackend() {
	if svc.backend == nil {
		return
	}
	if err := svc.backend.Close(); err != nil {
		log.Printf("[app] close backend: %v", err)
	}
}
