// Package telegram is the Telegram chat channel: alerts are sent to one chat
// and text messages from any chat the bot is in are run as commands.
package telegram

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/1308774130/StockSentinel/internal/logger"
	"github.com/1308774130/StockSentinel/internal/notification"
)

// CommandHandler executes one chat command and returns the reply.
type CommandHandler interface {
	Handle(ctx context.Context, text string) string
}

// api is the part of *tgbotapi.BotAPI the bot uses.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot sends alerts and serves commands over the Bot API.
type Bot struct {
	api      api
	chatID   int64
	commands CommandHandler
	timeout  time.Duration
}

// New connects to the Bot API. chatID is where alerts go; commands may be
// nil when only alerting is wanted.
func New(token string, chatID int64, commands CommandHandler) (*Bot, error) {
	b, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	log.Printf("[telegram] authorized as @%s", b.Self.UserName)
	return newBot(b, chatID, commands), nil
}

func newBot(a api, chatID int64, commands CommandHandler) *Bot {
	return &Bot{
		api:      a,
		chatID:   chatID,
		commands: commands,
		timeout:  15 * time.Second,
	}
}

// Send implements notification.Notifier.
func (b *Bot) Send(ctx context.Context, alert notification.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(b.chatID, notification.Title+"\n"+alert.Text())
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("telegram: send alert: %w", err)
	}
	return nil
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || b.commands == nil {
		return
	}
	if msg.From != nil && msg.From.IsBot {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	cctx = logger.WithTraceID(cctx, logger.GenerateTraceID("telegram", time.Now()))

	reply := b.commands.Handle(cctx, text)
	out := tgbotapi.NewMessage(msg.Chat.ID, reply)
	out.ReplyToMessageID = msg.MessageID
	if _, err := b.api.Send(out); err != nil {
		slog.Warn("telegram reply failed",
			append(logger.LogWithTrace(cctx),
				slog.Int64("chat_id", msg.Chat.ID),
				slog.String("error", err.Error()),
			)...)
	}
}
