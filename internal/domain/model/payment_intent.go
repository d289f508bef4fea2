package model

import "github.com/shopspring/decimal"

// 決済代行側で作られた注文（支払い前）
type PaymentIntent struct {
	ExternalOrderRef string
	Amount           decimal.Decimal // 主単位（500.00）
	Currency         string
	Receipt          string
}
