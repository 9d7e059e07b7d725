package quote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/1308774130/StockSentinel/internal/model"
)

// DefaultBaseURL is the Tencent real-time quote endpoint.
const DefaultBaseURL = "http://qt.gtimg.cn/q="

// Field positions in the "~"-separated Tencent payload.
const (
	fieldName      = 1
	fieldPrice     = 3
	fieldPrevClose = 4
	fieldOpen      = 5
	fieldVolume    = 6 // lots
	fieldTime      = 30
	fieldHigh      = 33
	fieldLow       = 34
	fieldAmount    = 37 // 10k CNY
	minFields      = 38
)

// Client fetches quotes from the Tencent endpoint. The payload is GBK
// encoded and decoded to UTF-8 before parsing.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Fetch returns the latest quote for code.
func (c *Client) Fetch(ctx context.Context, code string) (model.Quote, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return model.Quote{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+Symbol(code), nil)
	if err != nil {
		return model.Quote{}, fmt.Errorf("quote: build request: %w", err)
	}
	req.Header.Set("Referer", "https://gu.qq.com")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.Quote{}, fmt.Errorf("quote: fetch %s: %w", code, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Quote{}, fmt.Errorf("quote: fetch %s: status %d", code, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Quote{}, fmt.Errorf("quote: read %s: %w", code, err)
	}

	utf8Body, err := simplifiedchinese.GBK.NewDecoder().Bytes(body)
	if err != nil {
		return model.Quote{}, fmt.Errorf("quote: decode %s: %w", code, err)
	}

	return Parse(code, string(utf8Body))
}

// Parse decodes one Tencent payload line, e.g.
// v_sh600519="1~贵州茅台~600519~1850.00~1758.00~...";
func Parse(code, payload string) (model.Quote, error) {
	if strings.Contains(payload, "pv_none_match") {
		return model.Quote{}, fmt.Errorf("%w: %s", ErrNotFound, code)
	}

	start := strings.IndexByte(payload, '"')
	end := strings.LastIndexByte(payload, '"')
	if start < 0 || end <= start {
		return model.Quote{}, fmt.Errorf("quote: malformed payload for %s", code)
	}
	fields := strings.Split(payload[start+1:end], "~")
	if len(fields) < minFields {
		return model.Quote{}, fmt.Errorf("quote: short payload for %s: %d fields", code, len(fields))
	}

	q := model.Quote{
		Code:      code,
		Name:      strings.TrimSpace(fields[fieldName]),
		Price:     num(fields[fieldPrice]),
		PrevClose: num(fields[fieldPrevClose]),
		Open:      num(fields[fieldOpen]),
		Volume:    num(fields[fieldVolume]),
		High:      num(fields[fieldHigh]),
		Low:       num(fields[fieldLow]),
		Amount:    num(fields[fieldAmount]),
		Time:      parseTime(fields[fieldTime]),
	}
	return q, nil
}

func num(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

var shanghai = time.FixedZone("CST", 8*3600)

// parseTime reads the yyyyMMddHHmmss timestamp. Zero on failure.
func parseTime(s string) time.Time {
	t, err := time.ParseInLocation("20060102150405", strings.TrimSpace(s), shanghai)
	if err != nil {
		return time.Time{}
	}
	return t
}
