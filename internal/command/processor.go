package command

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/1308774130/StockSentinel/internal/logger"
	"github.com/1308774130/StockSentinel/internal/metrics"
	"github.com/1308774130/StockSentinel/internal/model"
	"github.com/1308774130/StockSentinel/internal/quote"
	"github.com/1308774130/StockSentinel/internal/watchlist"
)

// StatusSource reports the poll loop state for the status command.
type StatusSource interface {
	Status() model.MonitorStatus
}

// CooldownView reports whether a stock may alert now.
type CooldownView interface {
	ShouldAlert(code string, now time.Time, window time.Duration) bool
}

// Processor executes parsed commands.
type Processor struct {
	store    *watchlist.Store
	quotes   quote.Source
	status   StatusSource
	cooldown CooldownView
	prom     *metrics.Metrics
	timeout  time.Duration
	now      func() time.Time
}

// NewProcessor creates a processor. status and prom may be nil.
func NewProcessor(store *watchlist.Store, quotes quote.Source, status StatusSource, prom *metrics.Metrics) *Processor {
	return &Processor{
		store:   store,
		quotes:  quotes,
		status:  status,
		prom:    prom,
		timeout: 5 * time.Second,
		now:     time.Now,
	}
}

// SetCooldown lets the list reply mark stocks inside their alert cooldown.
func (p *Processor) SetCooldown(c CooldownView) { p.cooldown = c }

// Handle parses text, executes it and returns the reply.
func (p *Processor) Handle(ctx context.Context, text string) string {
	cmd := Parse(text)
	reply, ok := p.dispatch(ctx, cmd)

	p.prom.ObserveCommand(cmd.Kind.String(), ok)
	slog.Info("command handled",
		append(logger.LogWithTrace(ctx),
			slog.String("kind", cmd.Kind.String()),
			slog.String("name", cmd.Name),
			slog.Bool("ok", ok),
		)...)
	return reply
}

func (p *Processor) dispatch(ctx context.Context, cmd Command) (string, bool) {
	if cmd.Err != nil {
		return renderParseError(cmd), false
	}

	switch cmd.Kind {
	case KindHelp:
		return helpText, true
	case KindList:
		return renderList(p.store.List(), p.cooling()), true
	case KindConfig:
		return renderConfig(p.store.Settings()), true
	case KindStatus:
		var st model.MonitorStatus
		if p.status != nil {
			st = p.status.Status()
		}
		return renderStatus(st, p.store.Len(), p.now()), true
	case KindAdd:
		return p.add(ctx, cmd.Code)
	case KindRemove:
		return p.remove(ctx, cmd.Code)
	case KindSet:
		return p.set(ctx, cmd)
	}
	return renderUnknown(cmd.Name), false
}

func (p *Processor) add(ctx context.Context, code string) (string, bool) {
	if p.store.Has(code) {
		return renderAlreadyPresent(code), false
	}

	stock := model.WatchedStock{Code: code}
	var price float64
	if p.quotes != nil {
		fctx, cancel := context.WithTimeout(ctx, p.timeout)
		q, err := p.quotes.Fetch(fctx, code)
		cancel()
		switch {
		case errors.Is(err, quote.ErrNotFound):
			return renderNotFound(code), false
		case err != nil:
			slog.Warn("name lookup failed, adding without name",
				append(logger.LogWithTrace(ctx), slog.String("code", code), slog.String("error", err.Error()))...)
		default:
			stock.Name = q.Name
			price = q.Price
		}
	}

	if err := p.store.Add(ctx, stock); err != nil {
		if errors.Is(err, watchlist.ErrAlreadyPresent) {
			return renderAlreadyPresent(code), false
		}
		return renderFailure(err), false
	}
	return renderAdded(stock, price), true
}

func (p *Processor) remove(ctx context.Context, code string) (string, bool) {
	stock, _ := p.store.Get(code)
	if err := p.store.Remove(ctx, code); err != nil {
		if errors.Is(err, watchlist.ErrNotFound) {
			return renderNotWatched(code), false
		}
		return renderFailure(err), false
	}
	return renderRemoved(stock, code), true
}

func (p *Processor) set(ctx context.Context, cmd Command) (string, bool) {
	s, err := p.store.UpdateSetting(ctx, cmd.Field, cmd.Value)
	if err != nil {
		var ve *watchlist.ValidationError
		if errors.As(err, &ve) {
			return renderValidation(ve), false
		}
		return renderFailure(err), false
	}
	return renderUpdated(cmd.Field, s), true
}

// cooling returns the listed codes that would not alert right now.
func (p *Processor) cooling() map[string]bool {
	if p.cooldown == nil {
		return nil
	}
	now := p.now()
	window := p.store.Settings().Cooldown()
	out := make(map[string]bool)
	for _, code := range p.store.Codes() {
		if !p.cooldown.ShouldAlert(code, now, window) {
			out[code] = true
		}
	}
	return out
}
