package repository

import (
	"context"
	"time"

	"settlement/internal/domain/model"
)

type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
	CountByOrderID(ctx context.Context, orderID int64) (int64, error)

	//ユーザーの注文明細で一番新しい作成時刻
	LatestCreatedAtByUserID(ctx context.Context, userID int64) (time.Time, bool, error)
}
