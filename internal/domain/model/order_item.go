package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 購入時点のカート明細のスナップショット。作成後は更新しない。
type OrderItem struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     int64           `gorm:"not null;index" json:"order_id"`
	ProductID   int64           `gorm:"not null" json:"product_id"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	ImageRef    string          `gorm:"column:imgsrc;type:text" json:"imgsrc"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}
