package handler

import (
	"context"
	"net/http"

	"settlement/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type PaymentService interface {
	CreateOrder(ctx context.Context, userID int64, in usecase.CreateOrderInput) (usecase.CreateOrderOutput, error)
	VerifyPayment(ctx context.Context, userID int64, in usecase.VerifyPaymentInput) (usecase.VerifyPaymentOutput, error)
}

type CheckoutService interface {
	StoreOrder(ctx context.Context, userID int64, in usecase.StoreOrderInput) (usecase.StoreOrderOutput, error)
}

type HistoryService interface {
	GetHistory(ctx context.Context, userID int64) ([]usecase.OrderHistoryOutput, error)
}

// /orders のHTTP
type OrderHandler struct {
	payments PaymentService
	checkout CheckoutService
	history  HistoryService
}

func NewOrderHandler(payments PaymentService, checkout CheckoutService, history HistoryService) *OrderHandler {
	return &OrderHandler{payments: payments, checkout: checkout, history: history}
}

type CreateOrderRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type VerifyPaymentRequest struct {
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
	Signature string `json:"signature"`
}

type StoreCartItemRequest struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageRef    string          `json:"imgsrc"`
}

// 決済代行のフィールド名のまま受ける
type StoreOrderDetailsRequest struct {
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	RazorpayOrderID   string          `json:"razorpay_order_id"`
	RazorpayPaymentID string          `json:"razorpay_payment_id"`
	RazorpaySignature string          `json:"razorpay_signature"`
}

type StoreOrderRequest struct {
	CartItems    []StoreCartItemRequest   `json:"cartItems"`
	OrderDetails StoreOrderDetailsRequest `json:"orderDetails"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, auth echo.MiddlewareFunc) {
	g := e.Group("/orders")
	g.Use(auth)

	g.POST("/create", h.create)
	g.POST("/verify", h.verify)
	g.POST("/store", h.store)
	g.GET("/history", h.list)
}

func (h *OrderHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.payments.CreateOrder(c.Request().Context(), userID, usecase.CreateOrderInput{Amount: req.Amount})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) verify(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req VerifyPaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.payments.VerifyPayment(c.Request().Context(), userID, usecase.VerifyPaymentInput{
		PaymentID: req.PaymentID,
		OrderID:   req.OrderID,
		Signature: req.Signature,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) store(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req StoreOrderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	items := make([]usecase.StoreCartItemInput, 0, len(req.CartItems))
	for _, it := range req.CartItems {
		items = append(items, usecase.StoreCartItemInput{
			ID:          it.ID,
			ProductID:   it.ProductID,
			Name:        it.Name,
			Description: it.Description,
			Price:       it.Price,
			ImageRef:    it.ImageRef,
		})
	}

	out, err := h.checkout.StoreOrder(c.Request().Context(), userID, usecase.StoreOrderInput{
		CartItems: items,
		OrderDetails: usecase.StoreOrderDetailsInput{
			Amount:             req.OrderDetails.Amount,
			Currency:           req.OrderDetails.Currency,
			ExternalOrderRef:   req.OrderDetails.RazorpayOrderID,
			ExternalPaymentRef: req.OrderDetails.RazorpayPaymentID,
			Signature:          req.OrderDetails.RazorpaySignature,
		},
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.history.GetHistory(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
