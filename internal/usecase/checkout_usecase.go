package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"settlement/internal/domain/model"
	"settlement/internal/payment"
	repo "settlement/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// /orders/store：決済済みの注文にカートの明細を移す
type CheckoutUsecase struct {
	ledger    *OrderLedger
	cartItems repo.CartItemRepository
	notifier  orderNotifier
	cfg       PaymentConfig
	log       zerolog.Logger
}

func NewCheckoutUsecase(
	ledger *OrderLedger,
	cartItems repo.CartItemRepository,
	events EventPublisher,
	cache HistoryCache,
	cfg PaymentConfig,
	log zerolog.Logger,
) *CheckoutUsecase {
	l := log.With().Str("component", "checkout").Logger()
	return &CheckoutUsecase{
		ledger:    ledger,
		cartItems: cartItems,
		notifier:  orderNotifier{events: events, cache: cache, log: l},
		cfg:       cfg,
		log:       l,
	}
}

// クライアントが見ていたカート
type StoreCartItemInput struct {
	ID          int64
	ProductID   int64
	Name        string
	Description string
	Price       decimal.Decimal
	ImageRef    string
}

type StoreOrderDetailsInput struct {
	Amount             decimal.Decimal
	Currency           string
	ExternalOrderRef   string
	ExternalPaymentRef string
	Signature          string
}

type StoreOrderInput struct {
	CartItems    []StoreCartItemInput
	OrderDetails StoreOrderDetailsInput
}

type StoreOrderOutput struct {
	Success bool  `json:"success"`
	OrderID int64 `json:"orderId"`
}

// StoreOrderは 検証 -> 注文+明細を1Txで保存 -> commit後にカートを空にする。
// 明細はサーバー側のカート（追加時のスナップショット）から作る
func (u *CheckoutUsecase) StoreOrder(ctx context.Context, userID int64, in StoreOrderInput) (StoreOrderOutput, error) {
	if userID <= 0 {
		return StoreOrderOutput{}, errUnauthorized()
	}
	d, err := u.normalizeDetails(in.OrderDetails)
	if err != nil {
		return StoreOrderOutput{}, err
	}
	for _, ci := range in.CartItems {
		if ci.ProductID <= 0 {
			return StoreOrderOutput{}, errValidation("invalid cart item")
		}
	}

	//クライアントの申告は信用しない
	if !payment.VerifySignature(d.ExternalOrderRef, d.ExternalPaymentRef, d.Signature, u.cfg.SignatureSecret) {
		u.log.Warn().Str("order_ref", d.ExternalOrderRef).Int64("user_id", userID).Msg("signature mismatch")
		return StoreOrderOutput{}, errInvalidSignature()
	}

	ctx, cancel := detach(ctx, u.cfg.OperationTimeout)
	defer cancel()

	cart, err := u.cartItems.ListByUserID(ctx, userID)
	if err != nil {
		u.log.Error().Err(err).Int64("user_id", userID).Msg("list cart failed")
		return StoreOrderOutput{}, errStorage()
	}
	if len(in.CartItems) > 0 && !sameProducts(in.CartItems, cart) {
		u.log.Warn().
			Int64("user_id", userID).
			Int("submitted", len(in.CartItems)).
			Int("server", len(cart)).
			Msg("submitted cart differs from stored cart")
	}

	items := snapshotOrderItems(cart)

	order, err := u.ledger.RecordPaidOrder(ctx, userID, d, items)
	switch {
	case err == nil:
	case errors.Is(err, repo.ErrAlreadyRecorded):
		u.log.Info().Str("order_ref", d.ExternalOrderRef).Int64("order_id", order.ID).Msg("order already recorded")
		return StoreOrderOutput{Success: true, OrderID: order.ID}, nil
	case errors.Is(err, ErrNoItems):
		return StoreOrderOutput{}, errValidation("cart is empty")
	case errors.Is(err, repo.ErrNotFound):
		return StoreOrderOutput{}, NewHTTPError(http.StatusNotFound, "order not found")
	case errors.Is(err, repo.ErrPaymentRefMismatch):
		return StoreOrderOutput{}, errConflict("order already paid")
	case errors.Is(err, repo.ErrDuplicate):
		return StoreOrderOutput{}, errConflict("order is being recorded")
	default:
		u.log.Error().Err(err).Str("order_ref", d.ExternalOrderRef).Msg("record order failed")
		return StoreOrderOutput{}, errStorage()
	}

	//commit後。失敗しても注文は成功扱い（次のカート読み込みで掃除）
	if _, err := u.cartItems.DeleteByUserID(ctx, userID); err != nil {
		u.log.Warn().Err(err).
			Str("condition", "CartCleanupDeferred").
			Int64("user_id", userID).
			Int64("order_id", order.ID).
			Msg("cart cleanup deferred")
	}

	uid := userID
	u.notifier.committed(ctx, model.OrderEventStored, order, len(items), &uid)

	return StoreOrderOutput{Success: true, OrderID: order.ID}, nil
}

func (u *CheckoutUsecase) normalizeDetails(in StoreOrderDetailsInput) (PaidOrderDetails, error) {
	d := PaidOrderDetails{
		ExternalOrderRef:   strings.TrimSpace(in.ExternalOrderRef),
		ExternalPaymentRef: strings.TrimSpace(in.ExternalPaymentRef),
		Signature:          strings.TrimSpace(in.Signature),
		Amount:             in.Amount,
		Currency:           strings.ToUpper(strings.TrimSpace(in.Currency)),
	}
	if d.ExternalOrderRef == "" || d.ExternalPaymentRef == "" || d.Signature == "" {
		return PaidOrderDetails{}, errValidation("razorpay_order_id, razorpay_payment_id and razorpay_signature are required")
	}
	if err := validateAmount(d.Amount); err != nil {
		return PaidOrderDetails{}, err
	}
	if d.Currency == "" {
		d.Currency = u.cfg.Currency
	}
	if len(d.Currency) != 3 {
		return PaidOrderDetails{}, errValidation("invalid currency")
	}
	return d, nil
}

// 商品IDの集合（重複込み）が同じか
func sameProducts(submitted []StoreCartItemInput, stored []model.CartItem) bool {
	if len(submitted) != len(stored) {
		return false
	}
	counts := make(map[int64]int, len(stored))
	for _, c := range stored {
		counts[c.ProductID]++
	}
	for _, s := range submitted {
		counts[s.ProductID]--
		if counts[s.ProductID] < 0 {
			return false
		}
	}
	return true
}

func snapshotOrderItems(cart []model.CartItem) []model.OrderItem {
	items := make([]model.OrderItem, 0, len(cart))
	for _, c := range cart {
		items = append(items, model.OrderItem{
			ProductID:   c.ProductID,
			Name:        c.Name,
			Description: c.Description,
			Price:       c.Price,
			ImageRef:    c.ImageRef,
		})
	}
	return items
}
