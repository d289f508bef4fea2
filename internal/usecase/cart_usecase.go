package usecase

import (
	"context"
	"errors"
	"net/http"

	"settlement/internal/domain/model"
	repo "settlement/internal/repository"

	"github.com/rs/zerolog"
)

// CartUsecase は /cart の業務ロジックです。
// 明細は追加時点の商品情報のスナップショット。
type CartUsecase struct {
	cartItems  repo.CartItemRepository
	orderItems repo.OrderItemRepository
	products   repo.ProductRepository
	log        zerolog.Logger
}

func NewCartUsecase(
	cartItems repo.CartItemRepository,
	orderItems repo.OrderItemRepository,
	products repo.ProductRepository,
	log zerolog.Logger,
) *CartUsecase {
	return &CartUsecase{
		cartItems:  cartItems,
		orderItems: orderItems,
		products:   products,
		log:        log.With().Str("component", "cart").Logger(),
	}
}

type AddCartInput struct {
	ProductID int64
}

func (u *CartUsecase) GetCart(ctx context.Context, userID int64) ([]model.CartItem, error) {
	if userID <= 0 {
		return nil, errUnauthorized()
	}
	u.purgeOrdered(ctx, userID)

	items, err := u.cartItems.ListByUserID(ctx, userID)
	if err != nil {
		u.log.Error().Err(err).Int64("user_id", userID).Msg("list cart failed")
		return nil, errStorage()
	}
	return items, nil
}

// 商品テーブルから名前・価格などを写してカートに入れる
func (u *CartUsecase) AddToCart(ctx context.Context, userID int64, in AddCartInput) (model.CartItem, error) {
	if userID <= 0 {
		return model.CartItem{}, errUnauthorized()
	}
	if in.ProductID <= 0 {
		return model.CartItem{}, errValidation("Product ID is required")
	}
	u.purgeOrdered(ctx, userID)

	p, err := u.products.FindByID(ctx, in.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.CartItem{}, NewHTTPError(http.StatusNotFound, "product not found")
	}
	if err != nil {
		u.log.Error().Err(err).Int64("product_id", in.ProductID).Msg("find product failed")
		return model.CartItem{}, errStorage()
	}

	created, err := u.cartItems.Create(ctx, model.CartItem{
		ProductID:   p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		ImageRef:    p.ImageRef,
		UserID:      userID,
	})
	if err != nil {
		u.log.Error().Err(err).Int64("user_id", userID).Msg("add cart item failed")
		return model.CartItem{}, errStorage()
	}
	return created, nil
}

// 自分の明細だけ消せる。他人/存在しない -> 404
func (u *CartUsecase) DeleteCartItem(ctx context.Context, userID int64, cartItemID int64) error {
	if userID <= 0 {
		return errUnauthorized()
	}
	if cartItemID <= 0 {
		return errValidation("invalid id")
	}

	err := u.cartItems.DeleteByIDForUser(ctx, cartItemID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "Item not found or not authorized")
	}
	if err != nil {
		u.log.Error().Err(err).Int64("cart_item_id", cartItemID).Msg("delete cart item failed")
		return errStorage()
	}
	return nil
}

// 注文保存後に消し損ねた明細（最新の注文明細より前に入れたもの）を消す
func (u *CartUsecase) purgeOrdered(ctx context.Context, userID int64) {
	latest, found, err := u.orderItems.LatestCreatedAtByUserID(ctx, userID)
	if err != nil {
		u.log.Warn().Err(err).Int64("user_id", userID).Msg("deferred cart cleanup lookup failed")
		return
	}
	if !found {
		return
	}
	n, err := u.cartItems.DeleteCreatedNotAfter(ctx, userID, latest)
	if err != nil {
		u.log.Warn().Err(err).Int64("user_id", userID).Msg("deferred cart cleanup failed")
		return
	}
	if n > 0 {
		u.log.Info().Int64("user_id", userID).Int64("removed", n).Msg("deferred cart cleanup done")
	}
}
