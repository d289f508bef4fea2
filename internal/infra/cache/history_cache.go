// Package cache keeps per-user order history snapshots in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// order_history_version:{user_id} -> 書き込みごとに+1
// order_history:{user_id}:v{version} -> 整形済み注文履歴(JSON)
const (
	keyHistoryVersion = "order_history_version:%d"
	keyOrderHistory   = "order_history:%d:v%d"
)

const DefaultHistoryTTL = 5 * time.Minute

func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

type HistoryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewHistoryCache(rdb *redis.Client, ttl time.Duration) *HistoryCache {
	if ttl <= 0 {
		ttl = DefaultHistoryTTL
	}
	return &HistoryCache{rdb: rdb, ttl: ttl}
}

func versionKey(userID int64) string {
	return fmt.Sprintf(keyHistoryVersion, userID)
}

func historyKey(userID, version int64) string {
	return fmt.Sprintf(keyOrderHistory, userID, version)
}

// versionキーは中身より長く残す
func (c *HistoryCache) versionTTL() time.Duration {
	return 2 * c.ttl
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func currentVersion(ctx context.Context, rdb stringGetter, userID int64) (int64, error) {
	v, err := rdb.Get(ctx, versionKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// 今のversionと、そのversionの履歴。無ければ found=false
func (c *HistoryCache) Get(ctx context.Context, userID int64) ([]byte, int64, bool, error) {
	version, err := currentVersion(ctx, c.rdb, userID)
	if err != nil {
		return nil, 0, false, fmt.Errorf("get history version: %w", err)
	}
	b, err := c.rdb.Get(ctx, historyKey(userID, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, version, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("get history cache: %w", err)
	}
	return b, version, true, nil
}

// versionが進んでいたら（間に注文が入った）何もしない
func (c *HistoryCache) Set(ctx context.Context, userID int64, version int64, payload []byte) error {
	vkey := versionKey(userID)
	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := currentVersion(ctx, tx, userID)
		if err != nil {
			return err
		}
		if cur != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, historyKey(userID, version), payload, c.ttl)
			pipe.Expire(ctx, vkey, c.versionTTL())
			return nil
		})
		return err
	}, vkey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("set history cache: %w", err)
	}
	return nil
}

func (c *HistoryCache) Invalidate(ctx context.Context, userID int64) error {
	vkey := versionKey(userID)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, vkey)
		pipe.Expire(ctx, vkey, c.versionTTL())
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate history cache: %w", err)
	}
	return nil
}
