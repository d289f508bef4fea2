package repository

import (
	"context"
	"database/sql"
	"time"

	"settlement/internal/domain/model"

	"gorm.io/gorm"
)

type OrderItemGormRepository struct {
	db *gorm.DB
}

func NewOrderItemGormRepository(db *gorm.DB) *OrderItemGormRepository {
	return &OrderItemGormRepository{db: db}
}

// 1行ずつINSERT。どこかで失敗したら呼び出し側のTxごとrollback
func (r *OrderItemGormRepository) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ID = 0
		items[i].OrderID = orderID
		if err := r.db.WithContext(ctx).Create(&items[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *OrderItemGormRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	var items []model.OrderItem
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id asc").Find(&items).Error
	if err != nil {
		return []model.OrderItem{}, err
	}
	return items, nil
}

func (r *OrderItemGormRepository) CountByOrderID(ctx context.Context, orderID int64) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.OrderItem{}).Where("order_id = ?", orderID).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *OrderItemGormRepository) LatestCreatedAtByUserID(ctx context.Context, userID int64) (time.Time, bool, error) {
	var res struct {
		Latest sql.NullTime
	}
	err := r.db.WithContext(ctx).
		Table("order_items AS oi").
		Select("MAX(oi.created_at) AS latest").
		Joins("JOIN orders o ON o.id = oi.order_id").
		Where("o.user_id = ?", userID).
		Scan(&res).Error
	if err != nil {
		return time.Time{}, false, err
	}
	if !res.Latest.Valid {
		return time.Time{}, false, nil
	}
	return res.Latest.Time, true, nil
}
