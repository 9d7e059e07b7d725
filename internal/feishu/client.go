package feishu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
)

// DefaultAPIBase is the Feishu open platform endpoint.
const DefaultAPIBase = "https://open.feishu.cn"

// ErrNoCredentials is returned when the app id or secret is missing.
var ErrNoCredentials = errors.New("feishu: app credentials not configured")

// Client calls the open API as an app (FEISHU_APP_ID / FEISHU_APP_SECRET).
// The SDK fetches and caches the tenant_access_token.
type Client struct {
	api *lark.Client
}

// NewClient creates an API client. An empty base uses DefaultAPIBase.
func NewClient(appID, appSecret, base string) *Client {
	if base == "" {
		base = DefaultAPIBase
	}
	c := &Client{}
	if appID == "" || appSecret == "" {
		return c
	}
	c.api = lark.NewClient(appID, appSecret,
		lark.WithOpenBaseUrl(base),
		lark.WithReqTimeout(5*time.Second),
		lark.WithLogLevel(larkcore.LogLevelWarn),
	)
	return c
}

// Reply answers a message with plain text.
func (c *Client) Reply(ctx context.Context, messageID, text string) error {
	if c.api == nil {
		return ErrNoCredentials
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("feishu: marshal reply: %w", err)
	}
	req := larkim.NewReplyMessageReqBuilder().
		MessageId(messageID).
		Body(larkim.NewReplyMessageReqBodyBuilder().
			MsgType("text").
			Content(string(content)).
			Build()).
		Build()

	resp, err := c.api.Im.V1.Message.Reply(ctx, req)
	if err != nil {
		return fmt.Errorf("feishu: reply: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("feishu: reply: api error %d: %s (request %s)", resp.Code, resp.Msg, resp.RequestId())
	}
	return nil
}
