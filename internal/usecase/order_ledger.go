package usecase

import (
	"context"
	"errors"
	"fmt"

	"settlement/internal/domain/model"
	repo "settlement/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// 明細が1件も無い
var ErrNoItems = errors.New("no items to record")

// OrderLedgerは orders / order_items の状態遷移を持つ。
// 返すerrorは repository の sentinel（ErrNotFound等）か、そのままのDBエラー
type OrderLedger struct {
	tx  repo.TransactionManager
	log zerolog.Logger
}

func NewOrderLedger(tx repo.TransactionManager, log zerolog.Logger) *OrderLedger {
	return &OrderLedger{tx: tx, log: log.With().Str("component", "ledger").Logger()}
}

// 決済済みとして保存する注文の情報（署名検証済み）
type PaidOrderDetails struct {
	ExternalOrderRef   string
	ExternalPaymentRef string
	Signature          string
	Amount             decimal.Decimal
	Currency           string
}

// pendingで作成（決済代行の注文作成が成功した後）
func (l *OrderLedger) CreatePending(ctx context.Context, userID *int64, amount decimal.Decimal, currency, externalOrderRef string) (model.Order, error) {
	var out model.Order
	err := l.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		created, err := r.Orders().Create(ctx, model.Order{
			UserID:           userID,
			Amount:           amount,
			Currency:         currency,
			ExternalOrderRef: externalOrderRef,
			Status:           model.OrderStatusPending,
		})
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	return out, nil
}

// Finalizeは pending -> completed。
// 2回目以降は行を返しつつ ErrAlreadyFinalized（別のpayment_refなら ErrPaymentRefMismatch）
func (l *OrderLedger) Finalize(ctx context.Context, externalOrderRef, externalPaymentRef, signature string) (model.Order, error) {
	var out model.Order
	err := l.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		updated, err := r.Orders().CompleteIfPending(ctx, externalOrderRef, externalPaymentRef, signature)
		if err != nil {
			return err
		}

		o, err := r.Orders().FindByExternalOrderRef(ctx, externalOrderRef)
		if err != nil {
			return err
		}
		out = o
		if updated {
			return nil
		}

		if !o.IsCompleted() {
			return fmt.Errorf("order %s still %s after finalize", externalOrderRef, o.Status)
		}
		if o.ExternalPaymentRef == nil || *o.ExternalPaymentRef != externalPaymentRef {
			return repo.ErrPaymentRefMismatch
		}
		return repo.ErrAlreadyFinalized
	})
	if err != nil {
		if errors.Is(err, repo.ErrAlreadyFinalized) || errors.Is(err, repo.ErrPaymentRefMismatch) {
			return out, err
		}
		return model.Order{}, err
	}
	return out, nil
}

// RecordPaidOrderWithItemsは注文と明細を1トランザクションで保存する。
// 明細のどれかで失敗したら注文ごとrollback。
// 保存済みなら注文IDと ErrAlreadyRecorded を返す
func (l *OrderLedger) RecordPaidOrderWithItems(ctx context.Context, userID int64, d PaidOrderDetails, items []model.OrderItem) (int64, error) {
	o, err := l.RecordPaidOrder(ctx, userID, d, items)
	return o.ID, err
}

// RecordPaidOrderWithItemsと同じ。保存後の注文行を返す
func (l *OrderLedger) RecordPaidOrder(ctx context.Context, userID int64, d PaidOrderDetails, items []model.OrderItem) (model.Order, error) {
	var out model.Order
	err := l.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().LockByExternalOrderRef(ctx, d.ExternalOrderRef)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			if len(items) == 0 {
				return ErrNoItems
			}
			//台帳に無い注文（クライアント側で決済確認済みの経路）
			uid := userID
			paymentRef := d.ExternalPaymentRef
			sig := d.Signature
			o, err = r.Orders().Create(ctx, model.Order{
				UserID:             &uid,
				Amount:             d.Amount,
				Currency:           d.Currency,
				ExternalOrderRef:   d.ExternalOrderRef,
				ExternalPaymentRef: &paymentRef,
				ExternalSignature:  &sig,
				Status:             model.OrderStatusCompleted,
			})
			if err != nil {
				return err
			}
			l.log.Warn().
				Str("order_ref", d.ExternalOrderRef).
				Int64("user_id", userID).
				Msg("recording order without pending ledger row")

		case err != nil:
			return err

		default:
			if !o.IsAttributableTo(userID) {
				return repo.ErrNotFound
			}
			//持ち主未確定の行はここで購入者に紐付ける（履歴はuser_idで引く）
			if o.UserID == nil {
				ok, err := r.Orders().AssignUserIfUnset(ctx, o.ID, userID)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("order %s changed while locked", d.ExternalOrderRef)
				}
				uid := userID
				o.UserID = &uid
			}

			n, err := r.OrderItems().CountByOrderID(ctx, o.ID)
			if err != nil {
				return err
			}
			if n > 0 {
				out = o
				return repo.ErrAlreadyRecorded
			}
			if len(items) == 0 {
				return ErrNoItems
			}

			//金額は台帳の値を使う
			if !d.Amount.Equal(o.Amount) || (d.Currency != "" && d.Currency != o.Currency) {
				l.log.Warn().
					Str("order_ref", d.ExternalOrderRef).
					Str("ledger_amount", o.Amount.String()).
					Str("client_amount", d.Amount.String()).
					Str("ledger_currency", o.Currency).
					Str("client_currency", d.Currency).
					Msg("client order amount differs from ledger")
			}

			if o.IsCompleted() {
				if o.ExternalPaymentRef == nil || *o.ExternalPaymentRef != d.ExternalPaymentRef {
					return repo.ErrPaymentRefMismatch
				}
			} else {
				ok, err := r.Orders().CompleteIfPending(ctx, d.ExternalOrderRef, d.ExternalPaymentRef, d.Signature)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("order %s changed while locked", d.ExternalOrderRef)
				}
				paymentRef := d.ExternalPaymentRef
				sig := d.Signature
				o.Status = model.OrderStatusCompleted
				o.ExternalPaymentRef = &paymentRef
				o.ExternalSignature = &sig
			}
		}

		if err := r.OrderItems().CreateBulk(ctx, o.ID, items); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		if errors.Is(err, repo.ErrAlreadyRecorded) {
			return out, err
		}
		return model.Order{}, err
	}
	return out, nil
}

// 注文履歴（注文ごとにまとめたもの）
func (l *OrderLedger) History(ctx context.Context, userID int64) ([]OrderHistoryOutput, error) {
	var rows []repo.HistoryRow
	err := l.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		rows, err = r.Orders().ListHistoryRows(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ProjectHistory(rows), nil
}
