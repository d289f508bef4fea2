package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
)

// 決済代行の注文（payment intent）と1対1
// pendingの間はpayment_ref/signatureはNULL、completedで両方埋まる。
type Order struct {
	ID                 int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID             *int64          `gorm:"index" json:"user_id"`
	Amount             decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency           string          `gorm:"type:varchar(3);not null" json:"currency"`
	ExternalOrderRef   string          `gorm:"column:external_order_ref;type:varchar(64);not null;uniqueIndex" json:"external_order_ref"`
	ExternalPaymentRef *string         `gorm:"column:external_payment_ref;type:varchar(64)" json:"external_payment_ref"`
	ExternalSignature  *string         `gorm:"column:external_signature;type:varchar(128)" json:"-"`
	Status             OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt          time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (o Order) IsCompleted() bool {
	return o.Status == OrderStatusCompleted
}

// user_idが未確定 or 一致
func (o Order) IsAttributableTo(userID int64) bool {
	return o.UserID == nil || *o.UserID == userID
}
