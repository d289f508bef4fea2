package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"settlement/internal/domain/model"
	"settlement/internal/payment"
	repo "settlement/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type PaymentConfig struct {
	Currency         string
	SignatureSecret  []byte
	OperationTimeout time.Duration
}

// /orders/create と /orders/verify
type PaymentUsecase struct {
	ledger   *OrderLedger
	gateway  PaymentGateway
	notifier orderNotifier
	cfg      PaymentConfig
	log      zerolog.Logger
}

func NewPaymentUsecase(
	ledger *OrderLedger,
	gateway PaymentGateway,
	events EventPublisher,
	cache HistoryCache,
	cfg PaymentConfig,
	log zerolog.Logger,
) *PaymentUsecase {
	l := log.With().Str("component", "payment").Logger()
	return &PaymentUsecase{
		ledger:   ledger,
		gateway:  gateway,
		notifier: orderNotifier{events: events, cache: cache, log: l},
		cfg:      cfg,
		log:      l,
	}
}

type CreateOrderInput struct {
	Amount decimal.Decimal
}

// amountは決済代行に渡した最小単位（paise）
type CreateOrderOutput struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type VerifyPaymentInput struct {
	PaymentID string
	OrderID   string
	Signature string
}

type VerifyPaymentOutput struct {
	Success bool `json:"success"`
}

// 決済代行に注文を作ってからpendingで台帳に入れる
func (u *PaymentUsecase) CreateOrder(ctx context.Context, userID int64, in CreateOrderInput) (CreateOrderOutput, error) {
	if userID <= 0 {
		return CreateOrderOutput{}, errUnauthorized()
	}
	if err := validateAmount(in.Amount); err != nil {
		return CreateOrderOutput{}, err
	}

	ctx, cancel := detach(ctx, u.cfg.OperationTimeout)
	defer cancel()

	intent, err := u.gateway.CreateIntent(ctx, in.Amount, u.cfg.Currency)
	if err != nil {
		u.log.Error().Err(err).Int64("user_id", userID).Str("amount", in.Amount.String()).Msg("create payment intent failed")
		return CreateOrderOutput{}, errGatewayUnavailable()
	}

	uid := userID
	order, err := u.ledger.CreatePending(ctx, &uid, in.Amount, intent.Currency, intent.ExternalOrderRef)
	if err != nil {
		u.log.Error().Err(err).Str("order_ref", intent.ExternalOrderRef).Msg("create pending order failed")
		return CreateOrderOutput{}, errStorage()
	}

	u.notifier.publish(ctx, model.OrderEventCreated, order, 0)

	return CreateOrderOutput{
		OrderID:  order.ExternalOrderRef,
		Amount:   order.Amount.Shift(2).IntPart(),
		Currency: order.Currency,
	}, nil
}

// 署名を検証してcompletedにする。2回目以降も成功を返す
func (u *PaymentUsecase) VerifyPayment(ctx context.Context, userID int64, in VerifyPaymentInput) (VerifyPaymentOutput, error) {
	if userID <= 0 {
		return VerifyPaymentOutput{}, errUnauthorized()
	}
	in.PaymentID = strings.TrimSpace(in.PaymentID)
	in.OrderID = strings.TrimSpace(in.OrderID)
	in.Signature = strings.TrimSpace(in.Signature)
	if in.PaymentID == "" || in.OrderID == "" || in.Signature == "" {
		return VerifyPaymentOutput{}, errValidation("paymentId, orderId and signature are required")
	}

	if !payment.VerifySignature(in.OrderID, in.PaymentID, in.Signature, u.cfg.SignatureSecret) {
		u.log.Warn().Str("order_ref", in.OrderID).Int64("user_id", userID).Msg("signature mismatch")
		return VerifyPaymentOutput{}, errInvalidSignature()
	}

	ctx, cancel := detach(ctx, u.cfg.OperationTimeout)
	defer cancel()

	order, err := u.ledger.Finalize(ctx, in.OrderID, in.PaymentID, in.Signature)
	switch {
	case err == nil:
		u.notifier.committed(ctx, model.OrderEventFinalized, order, 0, order.UserID)
	case errors.Is(err, repo.ErrAlreadyFinalized):
		u.log.Info().Str("order_ref", in.OrderID).Msg("order already finalized")
	case errors.Is(err, repo.ErrPaymentRefMismatch):
		u.log.Warn().Str("order_ref", in.OrderID).Str("payment_ref", in.PaymentID).Msg("order finalized with another payment")
		return VerifyPaymentOutput{}, errConflict("order already paid")
	case errors.Is(err, repo.ErrNotFound):
		return VerifyPaymentOutput{}, NewHTTPError(http.StatusNotFound, "order not found")
	default:
		u.log.Error().Err(err).Str("order_ref", in.OrderID).Msg("finalize order failed")
		return VerifyPaymentOutput{}, errStorage()
	}

	return VerifyPaymentOutput{Success: true}, nil
}

// numeric(12,2) に収まる上限
var maxAmount = decimal.New(1, 10)

// 正の数で小数2桁まで
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || amount.GreaterThanOrEqual(maxAmount) {
		return errValidation("invalid amount")
	}
	if !amount.Equal(amount.Truncate(2)) {
		return errValidation("invalid amount")
	}
	return nil
}
