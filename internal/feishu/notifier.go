package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/1308774130/StockSentinel/internal/notification"
)

// Notifier posts cards to a group bot webhook (FEISHU_WEBHOOK).
type Notifier struct {
	webhook string
	client  *http.Client
}

// NewNotifier creates a webhook card notifier.
func NewNotifier(webhook string) *Notifier {
	return &Notifier{
		webhook: webhook,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Send implements notification.Notifier.
func (n *Notifier) Send(ctx context.Context, alert notification.Alert) error {
	return n.SendCard(ctx, AlertCard(alert))
}

// SendCard posts one interactive card.
func (n *Notifier) SendCard(ctx context.Context, card Card) error {
	body, err := json.Marshal(map[string]any{
		"msg_type": "interactive",
		"card":     card,
	})
	if err != nil {
		return fmt.Errorf("feishu: marshal card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("feishu: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("feishu: send card: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return fmt.Errorf("feishu: send card: %w", err)
	}

	log.Printf("[feishu] card sent: %s", card.Header.Title.Content)
	return nil
}

// apiResult is the webhook response envelope.
// Older webhooks answer with StatusCode/StatusMessage instead of code/msg.
type apiResult struct {
	Code          int    `json:"code"`
	Msg           string `json:"msg"`
	StatusCode    int    `json:"StatusCode"`
	StatusMessage string `json:"StatusMessage"`
}

func checkResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var r apiResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if r.Code != 0 {
		return fmt.Errorf("api error %d: %s", r.Code, r.Msg)
	}
	if r.StatusCode != 0 {
		return fmt.Errorf("api error %d: %s", r.StatusCode, r.StatusMessage)
	}
	return nil
}
