package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// カートの明細
// 追加時点の商品情報を保存する。
type CartItem struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID   int64           `gorm:"not null" json:"product_id"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	ImageRef    string          `gorm:"column:imgsrc;type:text" json:"imgsrc"`
	UserID      int64           `gorm:"not null;index" json:"user_id"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (CartItem) TableName() string { return "cart" }
