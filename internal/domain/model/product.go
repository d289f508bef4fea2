package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	ImageRef    string          `gorm:"column:imgsrc;type:text" json:"imgsrc"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}
