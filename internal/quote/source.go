// Package quote fetches real-time A-share quotes.
//
// Source is the collaborator the poll loop and the add command depend on.
// Client implements it against the Tencent qt.gtimg.cn endpoint.
package quote

import (
	"context"
	"errors"

	"github.com/1308774130/StockSentinel/internal/model"
)

// ErrNotFound means the endpoint definitively does not know the code.
// Any other error from Fetch is transient.
var ErrNotFound = errors.New("quote: stock not found")

// Source fetches the latest quote for a 6-digit code.
type Source interface {
	Fetch(ctx context.Context, code string) (model.Quote, error)
}
