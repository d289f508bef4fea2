package repository

import (
	"context"

	"settlement/internal/domain/model"
)

// 商品は参照だけ
type ProductRepository interface {
	List(ctx context.Context) ([]model.Product, error)
	FindByID(ctx context.Context, id int64) (model.Product, error)
}
