package usecase

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
)

// /orders/history。cacheはnil可
type OrderHistoryUsecase struct {
	ledger *OrderLedger
	cache  HistoryCache
	log    zerolog.Logger
}

func NewOrderHistoryUsecase(ledger *OrderLedger, cache HistoryCache, log zerolog.Logger) *OrderHistoryUsecase {
	return &OrderHistoryUsecase{
		ledger: ledger,
		cache:  cache,
		log:    log.With().Str("component", "history").Logger(),
	}
}

func (u *OrderHistoryUsecase) GetHistory(ctx context.Context, userID int64) ([]OrderHistoryOutput, error) {
	if userID <= 0 {
		return nil, errUnauthorized()
	}

	var (
		version  int64
		canStore bool
	)
	if u.cache != nil {
		out, v, ok, hit := u.fromCache(ctx, userID)
		if hit {
			return out, nil
		}
		version, canStore = v, ok
	}

	out, err := u.ledger.History(ctx, userID)
	if err != nil {
		u.log.Error().Err(err).Int64("user_id", userID).Msg("list order history failed")
		return nil, errStorage()
	}

	//versionは台帳を読む前に取ったもの
	if canStore {
		b, err := json.Marshal(out)
		if err == nil {
			err = u.cache.Set(ctx, userID, version, b)
		}
		if err != nil {
			u.log.Warn().Err(err).Int64("user_id", userID).Msg("store history cache failed")
		}
	}
	return out, nil
}

// キャッシュの失敗は読み直しで済ませる。
// ok=false ならversionが分からないのでSetしない
func (u *OrderHistoryUsecase) fromCache(ctx context.Context, userID int64) (out []OrderHistoryOutput, version int64, ok bool, hit bool) {
	b, version, found, err := u.cache.Get(ctx, userID)
	if err != nil {
		u.log.Warn().Err(err).Int64("user_id", userID).Msg("read history cache failed")
		return nil, 0, false, false
	}
	if !found {
		return nil, version, true, false
	}
	if err := json.Unmarshal(b, &out); err != nil {
		u.log.Warn().Err(err).Int64("user_id", userID).Msg("decode history cache failed")
		return nil, version, true, false
	}
	return out, version, true, true
}
