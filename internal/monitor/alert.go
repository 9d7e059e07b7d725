package monitor

import (
	"time"

	"github.com/1308774130/StockSentinel/internal/indicator"
	"github.com/1308774130/StockSentinel/internal/model"
	"github.com/1308774130/StockSentinel/internal/notification"
	"github.com/1308774130/StockSentinel/internal/rules"
)

func composeAlert(q model.Quote, name string, res indicator.Result, sigs []rules.Signal, at time.Time) notification.Alert {
	return notification.Alert{
		Code:      q.Code,
		Name:      name,
		Price:     q.Price,
		PrevClose: q.PrevClose,
		Open:      q.Open,
		High:      q.High,
		Low:       q.Low,
		PctChange: res.PctChange,
		Amount:    q.Amount,
		Signals:   rules.Labels(sigs),
		At:        at,
	}
}
