package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderEventType string

const (
	OrderEventCreated   OrderEventType = "order.created"
	OrderEventFinalized OrderEventType = "order.finalized"
	OrderEventStored    OrderEventType = "order.stored"
)

// 台帳の状態変化を外に流すための事実
type OrderEvent struct {
	Type               OrderEventType  `json:"type"`
	OrderID            int64           `json:"order_id"`
	UserID             *int64          `json:"user_id,omitempty"`
	ExternalOrderRef   string          `json:"external_order_ref"`
	ExternalPaymentRef string          `json:"external_payment_ref,omitempty"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	Status             OrderStatus     `json:"status"`
	ItemCount          int             `json:"item_count,omitempty"`
	OccurredAt         time.Time       `json:"occurred_at"`
}
