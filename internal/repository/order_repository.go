package repository

import (
	"context"
	"time"

	"settlement/internal/domain/model"

	"github.com/shopspring/decimal"
)

// 注文履歴の join 1行（orders x order_items）
type HistoryRow struct {
	OrderID     int64
	Amount      decimal.Decimal
	Currency    string
	Status      model.OrderStatus
	CreatedAt   time.Time
	ProductID   int64
	Name        string
	Description string
	Price       decimal.Decimal
	ImageRef    string
}

type OrderRepository interface {
	Create(ctx context.Context, order model.Order) (model.Order, error)
	FindByExternalOrderRef(ctx context.Context, ref string) (model.Order, error)

	//行ロック付き。Tx内でのみ使う
	LockByExternalOrderRef(ctx context.Context, ref string) (model.Order, error)

	//user_id が NULL の行だけ持ち主を入れる。入れられたら true
	AssignUserIfUnset(ctx context.Context, orderID int64, userID int64) (bool, error)

	//status = pending の行だけ completed にする。更新できたら true
	CompleteIfPending(ctx context.Context, ref string, paymentRef string, signature string) (bool, error)

	//新しい順（created_at desc）、明細は登録順
	ListHistoryRows(ctx context.Context, userID int64) ([]HistoryRow, error)
}
