package usecase

import (
	"time"

	"settlement/internal/domain/model"
	repo "settlement/internal/repository"

	"github.com/shopspring/decimal"
)

type OrderHistoryItemOutput struct {
	ProductID   int64           `json:"product_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageRef    string          `json:"imgsrc"`
}

type OrderHistoryOutput struct {
	OrderID   int64                    `json:"order_id"`
	Amount    decimal.Decimal          `json:"amount"`
	Currency  string                   `json:"currency"`
	Status    model.OrderStatus        `json:"status"`
	CreatedAt time.Time                `json:"created_at"`
	Items     []OrderHistoryItemOutput `json:"items"`
}

// ProjectHistoryはjoin行を注文ごとにまとめる。
// 並びは行の順番のまま（注文は最初に出てきた位置、明細は出てきた順）
func ProjectHistory(rows []repo.HistoryRow) []OrderHistoryOutput {
	out := make([]OrderHistoryOutput, 0)
	index := make(map[int64]int, len(rows))

	for _, r := range rows {
		i, ok := index[r.OrderID]
		if !ok {
			out = append(out, OrderHistoryOutput{
				OrderID:   r.OrderID,
				Amount:    r.Amount,
				Currency:  r.Currency,
				Status:    r.Status,
				CreatedAt: r.CreatedAt,
				Items:     []OrderHistoryItemOutput{},
			})
			i = len(out) - 1
			index[r.OrderID] = i
		}
		out[i].Items = append(out[i].Items, OrderHistoryItemOutput{
			ProductID:   r.ProductID,
			Name:        r.Name,
			Description: r.Description,
			Price:       r.Price,
			ImageRef:    r.ImageRef,
		})
	}
	return out
}
