package repository

import (
	"context"
	"errors"
	"time"

	"settlement/internal/domain/model"
	repo "settlement/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) (model.Order, error) {
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return model.Order{}, repo.ErrDuplicate
		}
		return model.Order{}, err
	}
	return order, nil
}

func (r *OrderGormRepository) FindByExternalOrderRef(ctx context.Context, ref string) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("external_order_ref = ?", ref).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) LockByExternalOrderRef(ctx context.Context, ref string) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_order_ref = ?", ref).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) AssignUserIfUnset(ctx context.Context, orderID int64, userID int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND user_id IS NULL", orderID).
		Updates(map[string]interface{}{
			"user_id":    userID,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// pendingの行だけを条件付きUPDATE一発で遷移
func (r *OrderGormRepository) CompleteIfPending(ctx context.Context, ref string, paymentRef string, signature string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("external_order_ref = ? AND status = ?", ref, model.OrderStatusPending).
		Updates(map[string]interface{}{
			"external_payment_ref": paymentRef,
			"external_signature":   signature,
			"status":               model.OrderStatusCompleted,
			"updated_at":           time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *OrderGormRepository) ListHistoryRows(ctx context.Context, userID int64) ([]repo.HistoryRow, error) {
	var rows []repo.HistoryRow
	err := r.db.WithContext(ctx).
		Table("orders AS o").
		Select(`o.id AS order_id, o.amount, o.currency, o.status, o.created_at,
			oi.product_id, oi.name, oi.description, oi.price, oi.imgsrc AS image_ref`).
		Joins("JOIN order_items oi ON oi.order_id = o.id").
		Where("o.user_id = ?", userID).
		Order("o.created_at DESC, o.id DESC, oi.id ASC").
		Scan(&rows).Error
	if err != nil {
		return []repo.HistoryRow{}, err
	}
	return rows, nil
}
