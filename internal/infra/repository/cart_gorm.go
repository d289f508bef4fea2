package repository

import (
	"context"
	"time"

	"settlement/internal/domain/model"
	repo "settlement/internal/repository"

	"gorm.io/gorm"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// カート明細を一覧取得
func (r *CartGormRepository) ListByUserID(ctx context.Context, userID int64) ([]model.CartItem, error) {
	var items []model.CartItem

	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return []model.CartItem{}, err
	}

	return items, nil
}

func (r *CartGormRepository) Create(ctx context.Context, item model.CartItem) (model.CartItem, error) {
	if err := r.db.WithContext(ctx).Create(&item).Error; err != nil {
		return model.CartItem{}, err
	}
	return item, nil
}

// 明細を削除（本人のものだけ）
func (r *CartGormRepository) DeleteByIDForUser(ctx context.Context, cartItemID int64, userID int64) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", cartItemID, userID).
		Delete(&model.CartItem{})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// ユーザーのカートを全削除
func (r *CartGormRepository) DeleteByUserID(ctx context.Context, userID int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.CartItem{})
	return res.RowsAffected, res.Error
}

func (r *CartGormRepository) DeleteCreatedNotAfter(ctx context.Context, userID int64, t time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND created_at <= ?", userID, t).
		Delete(&model.CartItem{})
	return res.RowsAffected, res.Error
}
