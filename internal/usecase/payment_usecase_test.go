package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"settlement/internal/domain/model"
	"settlement/internal/payment"
	"settlement/internal/usecase"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("rzp_test_secret")

func testPaymentConfig() usecase.PaymentConfig {
	return usecase.PaymentConfig{
		Currency:         "INR",
		SignatureSecret:  testSecret,
		OperationTimeout: 5 * time.Second,
	}
}

type paymentFixture struct {
	store   *memStore
	gateway *GatewayMock
	events  *PublisherMock
	cache   *CacheMock
	uc      *usecase.PaymentUsecase
}

func newPaymentFixture() *paymentFixture {
	f := &paymentFixture{
		store:   newMemStore(),
		gateway: new(GatewayMock),
		events:  new(PublisherMock),
		cache:   new(CacheMock),
	}
	f.events.On("Publish", mock.Anything, mock.Anything).Return(nil)
	f.cache.On("Invalidate", mock.Anything, mock.Anything).Return(nil)
	f.uc = usecase.NewPaymentUsecase(newLedger(f.store), f.gateway, f.events, f.cache, testPaymentConfig(), zerolog.Nop())
	return f
}

func (f *paymentFixture) expectIntent(ref string, amount string) {
	f.gateway.On("CreateIntent", mock.Anything, mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.RequireFromString(amount))
	}), "INR").Return(model.PaymentIntent{
		ExternalOrderRef: ref,
		Amount:           decimal.RequireFromString(amount),
		Currency:         "INR",
		Receipt:          "rcpt_test",
	}, nil).Once()
}

func requireKind(t *testing.T, err error, kind error, status int) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, kind), "kind: %v", err)
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, status, he.Status)
}

// =====================
// CreateOrder
// =====================

func TestCreateOrder_Success(t *testing.T) {
	f := newPaymentFixture()
	f.expectIntent("order_abc", "500")

	out, err := f.uc.CreateOrder(context.Background(), 1, usecase.CreateOrderInput{Amount: decimal.NewFromInt(500)})
	require.NoError(t, err)

	assert.Equal(t, "order_abc", out.OrderID)
	assert.Equal(t, int64(50000), out.Amount)
	assert.Equal(t, "INR", out.Currency)

	rows := f.store.ordersByRef("order_abc")
	require.Len(t, rows, 1)
	assert.Equal(t, model.OrderStatusPending, rows[0].Status)
	assert.True(t, rows[0].Amount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, int64(1), *rows[0].UserID)

	assert.Equal(t, []model.OrderEventType{model.OrderEventCreated}, f.events.types())
	f.gateway.AssertExpectations(t)
}

func TestCreateOrder_InvalidAmount(t *testing.T) {
	for _, amt := range []string{"0", "-5", "10.001", "10000000000"} {
		t.Run(amt, func(t *testing.T) {
			f := newPaymentFixture()

			_, err := f.uc.CreateOrder(context.Background(), 1, usecase.CreateOrderInput{Amount: decimal.RequireFromString(amt)})
			requireKind(t, err, usecase.ErrValidation, http.StatusBadRequest)
			f.gateway.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCreateOrder_Unauthorized(t *testing.T) {
	f := newPaymentFixture()

	_, err := f.uc.CreateOrder(context.Background(), 0, usecase.CreateOrderInput{Amount: decimal.NewFromInt(500)})
	requireKind(t, err, usecase.ErrUnauthorized, http.StatusUnauthorized)
}

func TestCreateOrder_GatewayFailureLeavesNoRow(t *testing.T) {
	f := newPaymentFixture()
	f.gateway.On("CreateIntent", mock.Anything, mock.Anything, "INR").
		Return(model.PaymentIntent{}, errors.New("processor said: bad key rzp_live_xxx"))

	_, err := f.uc.CreateOrder(context.Background(), 1, usecase.CreateOrderInput{Amount: decimal.NewFromInt(500)})
	requireKind(t, err, usecase.ErrGatewayUnavailable, http.StatusBadGateway)
	assert.NotContains(t, err.Error(), "rzp_live_xxx")
	assert.Empty(t, f.store.state.orders)
	f.events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestCreateOrder_DuplicateRefIsStorageError(t *testing.T) {
	f := newPaymentFixture()
	f.expectIntent("order_abc", "500")
	f.expectIntent("order_abc", "500")

	_, err := f.uc.CreateOrder(context.Background(), 1, usecase.CreateOrderInput{Amount: decimal.NewFromInt(500)})
	require.NoError(t, err)

	_, err = f.uc.CreateOrder(context.Background(), 1, usecase.CreateOrderInput{Amount: decimal.NewFromInt(500)})
	requireKind(t, err, usecase.ErrStorage, http.StatusInternalServerError)
}

func TestCreateOrder_ClientCancellationDoesNotAbortGatewayCall(t *testing.T) {
	f := newPaymentFixture()
	f.gateway.On("CreateIntent", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}), mock.Anything, "INR").Return(model.PaymentIntent{ExternalOrderRef: "order_abc", Amount: decimal.NewFromInt(500), Currency: "INR"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.uc.CreateOrder(ctx, 1, usecase.CreateOrderInput{Amount: decimal.NewFromInt(500)})
	require.NoError(t, err)
	assert.Len(t, f.store.ordersByRef("order_abc"), 1)
}

// =====================
// VerifyPayment
// =====================

func TestVerifyPayment_InvalidSignature(t *testing.T) {
	f := newPaymentFixture()
	f.expectIntent("order_abc", "500")
	_, err := f.uc.CreateOrder(context.Background(), 1, usecase.CreateOrderInput{Amount: decimal.NewFromInt(500)})
	require.NoError(t, err)

	_, err = f.uc.VerifyPayment(context.Background(), 1, usecase.VerifyPaymentInput{
		PaymentID: "pay_1",
		OrderID:   "order_abc",
		Signature: "deadbeef",
	})
	requireKind(t, err, usecase.ErrSignatureMismatch, http.StatusBadRequest)
	he, _ := usecase.AsHTTPError(err)
	assert.Equal(t, "Invalid signature", he.Message)

	assert.Equal(t, model.OrderStatusPending, f.store.ordersByRef("order_abc")[0].Status)
}

func TestVerifyPayment_MissingFields(t *testing.T) {
	f := newPaymentFixture()

	_, err := f.uc.VerifyPayment(context.Background(), 1, usecase.VerifyPaymentInput{OrderID: "order_abc", Signature: "x"})
	requireKind(t, err, usecase.ErrValidation, http.StatusBadRequest)
}

func TestVerifyPayment_UnknownOrder(t *testing.T) {
	f := newPaymentFixture()

	_, err := f.uc.VerifyPayment(context.Background(), 1, usecase.VerifyPaymentInput{
		PaymentID: "pay_1",
		OrderID:   "order_missing",
		Signature: payment.Sign("order_missing", "pay_1", testSecret),
	})
	requireKind(t, err, usecase.ErrNotFound, http.StatusNotFound)
}

func TestVerifyPayment_OtherPaymentRefConflicts(t *testing.T) {
	f := newPaymentFixture()
	f.expectIntent("order_abc", "500")
	_, err := f.uc.CreateOrder(context.Background(), 1, usecase.CreateOrderInput{Amount: decimal.NewFromInt(500)})
	require.NoError(t, err)

	_, err = f.uc.VerifyPayment(context.Background(), 1, usecase.VerifyPaymentInput{
		PaymentID: "pay_1", OrderID: "order_abc", Signature: payment.Sign("order_abc", "pay_1", testSecret),
	})
	require.NoError(t, err)

	_, err = f.uc.VerifyPayment(context.Background(), 1, usecase.VerifyPaymentInput{
		PaymentID: "pay_2", OrderID: "order_abc", Signature: payment.Sign("order_abc", "pay_2", testSecret),
	})
	requireKind(t, err, usecase.ErrConflict, http.StatusConflict)
}

// create -> verify -> verify again
func TestPaymentFlow_EndToEnd(t *testing.T) {
	f := newPaymentFixture()
	ctx := context.Background()
	f.expectIntent("order_abc", "500")

	created, err := f.uc.CreateOrder(ctx, 1, usecase.CreateOrderInput{Amount: decimal.NewFromInt(500)})
	require.NoError(t, err)
	require.Equal(t, "order_abc", created.OrderID)

	pending := f.store.ordersByRef("order_abc")
	require.Len(t, pending, 1)
	assert.Equal(t, model.OrderStatusPending, pending[0].Status)
	assert.True(t, pending[0].Amount.Equal(decimal.NewFromInt(500)))

	in := usecase.VerifyPaymentInput{
		PaymentID: "pay_xyz",
		OrderID:   "order_abc",
		Signature: payment.Sign("order_abc", "pay_xyz", testSecret),
	}

	out, err := f.uc.VerifyPayment(ctx, 1, in)
	require.NoError(t, err)
	assert.True(t, out.Success)

	after := f.store.ordersByRef("order_abc")
	require.Len(t, after, 1)
	assert.Equal(t, model.OrderStatusCompleted, after[0].Status)
	assert.Equal(t, "pay_xyz", *after[0].ExternalPaymentRef)

	out, err = f.uc.VerifyPayment(ctx, 1, in)
	require.NoError(t, err)
	assert.True(t, out.Success)

	again := f.store.ordersByRef("order_abc")
	require.Len(t, again, 1)
	assert.Equal(t, pending[0].CreatedAt, again[0].CreatedAt)
	assert.Equal(t, after[0].UpdatedAt, again[0].UpdatedAt)

	// finalizedは最初の遷移だけ
	assert.Equal(t, []model.OrderEventType{model.OrderEventCreated, model.OrderEventFinalized}, f.events.types())
	f.cache.AssertNumberOfCalls(t, "Invalidate", 1)
}

func TestVerifyPayment_StalledPublisherStillInvalidatesHistory(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	cache := newMemCache()
	pub := &stalledPublisher{}
	cfg := testPaymentConfig()
	cfg.OperationTimeout = 200 * time.Millisecond

	ledger := newLedger(s)
	uc := usecase.NewPaymentUsecase(ledger, new(GatewayMock), pub, cache, cfg, zerolog.Nop())

	_, err := ledger.CreatePending(ctx, int64Ptr(1), decimal.NewFromInt(500), "INR", "order_abc")
	require.NoError(t, err)
	_, before, _, err := cache.Get(ctx, 1)
	require.NoError(t, err)

	out, err := uc.VerifyPayment(ctx, 1, usecase.VerifyPaymentInput{
		PaymentID: "pay_1",
		OrderID:   "order_abc",
		Signature: payment.Sign("order_abc", "pay_1", testSecret),
	})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, 1, pub.count())

	_, after, _, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}
