package repository

import (
	"context"
	"time"

	"settlement/internal/domain/model"
)

type CartItemRepository interface {
	ListByUserID(ctx context.Context, userID int64) ([]model.CartItem, error)
	Create(ctx context.Context, item model.CartItem) (model.CartItem, error)

	//他人の明細は ErrNotFound
	DeleteByIDForUser(ctx context.Context, cartItemID int64, userID int64) error
	DeleteByUserID(ctx context.Context, userID int64) (int64, error)

	//注文確定後に消し損ねた明細の掃除
	DeleteCreatedNotAfter(ctx context.Context, userID int64, t time.Time) (int64, error)
}
