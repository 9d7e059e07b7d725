package feishu

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/core/httpserverext"
	larkevent "github.com/larksuite/oapi-sdk-go/v3/event"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"

	"github.com/1308774130/StockSentinel/internal/logger"
)

// EventReceiveMessage is the event type of an incoming chat message.
const EventReceiveMessage = "im.message.receive_v1"

// recentEventCap bounds the redelivery filter.
const recentEventCap = 512

// CommandHandler executes one chat command and returns the reply.
type CommandHandler interface {
	Handle(ctx context.Context, text string) string
}

// Replier delivers a reply to a message.
type Replier interface {
	Reply(ctx context.Context, messageID, text string) error
}

// EventHandler serves the event subscription callback. The SDK dispatcher
// answers url_verification and checks the verification token; commands run
// in the background so the callback is acknowledged within Feishu's
// deadline. Redelivered events are dropped by event id.
type EventHandler struct {
	commands CommandHandler
	replier  Replier
	token    string
	base     context.Context
	timeout  time.Duration
	seen     *recentEvents
	serve    http.HandlerFunc
}

// NewEventHandler creates the callback handler. token is the verification
// token; when empty, requests are not checked. base bounds background
// command processing and is usually the service context.
func NewEventHandler(base context.Context, commands CommandHandler, replier Replier, token string) *EventHandler {
	h := &EventHandler{
		commands: commands,
		replier:  replier,
		token:    token,
		base:     base,
		timeout:  15 * time.Second,
		seen:     newRecentEvents(recentEventCap),
	}
	d := dispatcher.NewEventDispatcher(token, "").OnP2MessageReceiveV1(h.onMessage)
	h.serve = httpserverext.NewEventHandlerFunc(d, larkevent.WithLogLevel(larkcore.LogLevelWarn))
	return h
}

func (h *EventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.serve(w, r)
}

func (h *EventHandler) onMessage(_ context.Context, ev *larkim.P2MessageReceiveV1) error {
	if ev == nil || ev.Event == nil || ev.Event.Message == nil {
		return nil
	}

	var eventID, token string
	if ev.EventV2Base != nil && ev.EventV2Base.Header != nil {
		eventID = ev.EventV2Base.Header.EventID
		token = ev.EventV2Base.Header.Token
	}
	if h.token != "" && token != h.token {
		log.Printf("[feishu] WARNING: dropped event %s with bad verification token", eventID)
		return nil
	}
	if h.seen.seen(eventID) {
		log.Printf("[feishu] duplicate event %s ignored", eventID)
		return nil
	}

	msg := ev.Event.Message
	if ev.Event.Sender != nil && deref(ev.Event.Sender.SenderType) == "app" {
		return nil
	}
	if deref(msg.MessageType) != "text" {
		return nil
	}

	var content struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(deref(msg.Content)), &content); err != nil {
		log.Printf("[feishu] bad message content: %v", err)
		return nil
	}
	text := strings.TrimSpace(content.Text)
	messageID := deref(msg.MessageId)

	go func() {
		ctx, cancel := context.WithTimeout(h.base, h.timeout)
		defer cancel()
		ctx = logger.WithTraceID(ctx, logger.GenerateTraceID("feishu", time.Now()))

		slog.Info("feishu message received",
			append(logger.LogWithTrace(ctx),
				slog.String("event_id", eventID),
				slog.String("message_id", messageID),
				slog.String("text", text),
			)...)

		reply := h.commands.Handle(ctx, text)
		if reply == "" || h.replier == nil {
			return
		}
		if err := h.replier.Reply(ctx, messageID, reply); err != nil {
			slog.Warn("feishu reply failed",
				append(logger.LogWithTrace(ctx), slog.String("error", err.Error()))...)
		}
	}()
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// recentEvents remembers the last n event ids, evicting the oldest.
type recentEvents struct {
	mu   sync.Mutex
	ids  []string
	next int
	set  map[string]struct{}
}

func newRecentEvents(n int) *recentEvents {
	return &recentEvents{
		ids: make([]string, n),
		set: make(map[string]struct{}, n),
	}
}

// seen records id and reports whether it was already present. Empty ids
// are never treated as duplicates.
func (r *recentEvents) seen(id string) bool {
	if id == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.set[id]; ok {
		return true
	}
	if old := r.ids[r.next]; old != "" {
		delete(r.set, old)
	}
	r.ids[r.next] = id
	r.set[id] = struct{}{}
	r.next = (r.next + 1) % len(r.ids)
	return false
}
