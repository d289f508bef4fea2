package usecase

import (
	"context"
	"time"

	"settlement/internal/domain/model"

	"github.com/rs/zerolog"
)

// キャッシュ破棄・イベント発行それぞれの上限時間
const notifyTimeout = 2 * time.Second

// 台帳変更後の通知（履歴キャッシュ破棄＋イベント）。失敗はログのみ
type orderNotifier struct {
	events EventPublisher
	cache  HistoryCache
	log    zerolog.Logger
}

// commit後に呼ぶ。キャッシュを先に消してからイベントを出す
func (n orderNotifier) committed(ctx context.Context, typ model.OrderEventType, o model.Order, itemCount int, userID *int64) {
	n.invalidateHistory(ctx, userID)
	n.publish(ctx, typ, o, itemCount)
}

func (n orderNotifier) publish(ctx context.Context, typ model.OrderEventType, o model.Order, itemCount int) {
	if n.events == nil {
		return
	}
	evt := model.OrderEvent{
		Type:             typ,
		OrderID:          o.ID,
		UserID:           o.UserID,
		ExternalOrderRef: o.ExternalOrderRef,
		Amount:           o.Amount,
		Currency:         o.Currency,
		Status:           o.Status,
		ItemCount:        itemCount,
		OccurredAt:       time.Now().UTC(),
	}
	if o.ExternalPaymentRef != nil {
		evt.ExternalPaymentRef = *o.ExternalPaymentRef
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := n.events.Publish(ctx, evt); err != nil {
		n.log.Error().Err(err).
			Str("event", string(typ)).
			Str("order_ref", o.ExternalOrderRef).
			Msg("publish order event failed")
	}
}

func (n orderNotifier) invalidateHistory(ctx context.Context, userID *int64) {
	if n.cache == nil || userID == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := n.cache.Invalidate(ctx, *userID); err != nil {
		n.log.Warn().Err(err).Int64("user_id", *userID).Msg("invalidate history cache failed")
	}
}

// クライアント切断で決済系の処理を止めない
func detach(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if timeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, timeout)
}
