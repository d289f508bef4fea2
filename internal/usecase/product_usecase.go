package usecase

import (
	"context"
	"errors"

	"settlement/internal/domain/model"
	repo "settlement/internal/repository"

	"github.com/rs/zerolog"
)

// 商品は参照のみ
type ProductUsecase struct {
	productRepo repo.ProductRepository
	log         zerolog.Logger
}

func NewProductUsecase(productRepo repo.ProductRepository, log zerolog.Logger) *ProductUsecase {
	return &ProductUsecase{
		productRepo: productRepo,
		log:         log.With().Str("component", "product").Logger(),
	}
}

func (u *ProductUsecase) ListProducts(ctx context.Context) ([]model.Product, error) {
	items, err := u.productRepo.List(ctx)
	if err != nil {
		u.log.Error().Err(err).Msg("list products failed")
		return nil, errStorage()
	}
	return items, nil
}

func (u *ProductUsecase) GetProduct(ctx context.Context, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, errValidation("invalid id")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, errNotFound()
	}
	if err != nil {
		u.log.Error().Err(err).Int64("product_id", productID).Msg("find product failed")
		return model.Product{}, errStorage()
	}
	return p, nil
}
