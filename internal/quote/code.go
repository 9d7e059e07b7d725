package quote

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCode is returned for input that is not a 6-digit A-share code.
var ErrInvalidCode = errors.New("quote: invalid stock code")

// NormalizeCode strips an optional sh/sz/bj market prefix (any case) and
// surrounding whitespace, and requires exactly six digits.
func NormalizeCode(raw string) (string, error) {
	code := strings.ToLower(strings.TrimSpace(raw))
	for _, p := range []string{"sh", "sz", "bj"} {
		if strings.HasPrefix(code, p) {
			code = strings.TrimPrefix(code, p)
			code = strings.TrimLeft(code, ".")
			break
		}
	}
	if len(code) != 6 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCode, raw)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidCode, raw)
		}
	}
	return code, nil
}

// Market returns the exchange prefix for a 6-digit code: sh for 6xxxxx,
// sz for 0xxxxx/3xxxxx, bj for 4xxxxx/8xxxxx/9xxxxx.
func Market(code string) string {
	if code == "" {
		return ""
	}
	switch code[0] {
	case '6':
		return "sh"
	case '0', '3':
		return "sz"
	case '4', '8', '9':
		return "bj"
	}
	return ""
}

// Symbol returns the market-prefixed symbol used by the quote endpoint,
// e.g. "sh600519".
func Symbol(code string) string {
	return Market(code) + code
}
