package usecase

import (
	"context"

	"settlement/internal/domain/model"

	"github.com/shopspring/decimal"
)

// 決済代行（infra/gateway）
type PaymentGateway interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string) (model.PaymentIntent, error)
}

// 注文イベント（infra/events）
type EventPublisher interface {
	Publish(ctx context.Context, evt model.OrderEvent) error
}

// 注文履歴キャッシュ（infra/cache）。値は整形済みJSON
// Getが返したversionでSetする。Invalidateでversionが進むので、
// 書き込みより前に読んだ内容は以後のGetに出てこない
type HistoryCache interface {
	Get(ctx context.Context, userID int64) (payload []byte, version int64, found bool, err error)
	Set(ctx context.Context, userID int64, version int64, payload []byte) error
	Invalidate(ctx context.Context, userID int64) error
}
