package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	lastPriceKeyPrefix = "md:last:"
	volumeKeyPrefix    = "md:volume:"

	defaultReadTimeout = 200 * time.Millisecond
)

func LastPriceKey(symbol string) string { return lastPriceKeyPrefix + symbol }

func VolumeKey(symbol string) string { return volumeKeyPrefix + symbol }

// RedisFeed reads prices written by an upstream market data process:
// md:last:<symbol> holds the last trade price, md:volume:<symbol> a list
// of historical volume buckets oldest first.
type RedisFeed struct {
	rdb     redis.Cmdable
	timeout time.Duration
}

func NewRedisFeed(rdb redis.Cmdable, timeout time.Duration) *RedisFeed {
	if timeout <= 0 {
		timeout = defaultReadTimeout
	}
	return &RedisFeed{rdb: rdb, timeout: timeout}
}

func (f *RedisFeed) LastPrice(symbol string) (decimal.Decimal, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	raw, err := f.rdb.Get(ctx, LastPriceKey(symbol)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.S().Warnf("read last price %s: %v", symbol, err)
		}
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(raw)
	if err != nil || !price.IsPositive() {
		zap.S().Warnf("bad last price %s=%q", symbol, raw)
		return decimal.Zero, false
	}
	return price, true
}

// VolumeProfile returns nil when the list is missing or unreadable; the
// VWAP planner then falls back to an equal split.
func (f *RedisFeed) VolumeProfile(symbol string) []decimal.Decimal {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	raw, err := f.rdb.LRange(ctx, VolumeKey(symbol), 0, -1).Result()
	if err != nil {
		zap.S().Warnf("read volume profile %s: %v", symbol, err)
		return nil
	}
	profile := make([]decimal.Decimal, 0, len(raw))
	for _, s := range raw {
		v, err := decimal.NewFromString(s)
		if err != nil {
			zap.S().Warnf("bad volume bucket %s=%q", symbol, s)
			return nil
		}
		profile = append(profile, v)
	}
	return profile
}

// Publish writes a last price and replaces the volume profile in one
// transaction. A nil profile leaves the stored one alone.
func (f *RedisFeed) Publish(ctx context.Context, symbol string, last decimal.Decimal, profile []decimal.Decimal) error {
	_, err := f.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, LastPriceKey(symbol), last.String(), 0)
		if profile != nil {
			pipe.Del(ctx, VolumeKey(symbol))
			values := make([]interface{}, len(profile))
			for i, v := range profile {
				values[i] = v.String()
			}
			if len(values) > 0 {
				pipe.RPush(ctx, VolumeKey(symbol), values...)
			}
		}
		return nil
	})
	return err
}
