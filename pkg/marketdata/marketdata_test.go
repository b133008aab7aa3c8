package marketdata

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestStatic(t *testing.T) {
	f := NewStatic()

	_, ok := f.LastPrice("BTC")
	assert.False(t, ok)

	f.SetLastPrice("BTC", d("45000.5"))
	p, ok := f.LastPrice("BTC")
	require.True(t, ok)
	assert.True(t, p.Equal(d("45000.5")))

	profile := []decimal.Decimal{d("1"), d("2")}
	f.SetVolumeProfile("BTC", profile)
	profile[0] = d("99")
	assert.True(t, f.VolumeProfile("BTC")[0].Equal(d("1")))
	assert.Nil(t, f.VolumeProfile("ETH"))
}

func newRedisFeed(t *testing.T) (*RedisFeed, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisFeed(rdb, 0), mr
}

func TestRedisFeedRoundTrip(t *testing.T) {
	f, _ := newRedisFeed(t)
	ctx := context.Background()

	require.NoError(t, f.Publish(ctx, "ETH", d("3100.25"), []decimal.Decimal{d("10"), d("10"), d("20")}))

	p, ok := f.LastPrice("ETH")
	require.True(t, ok)
	assert.True(t, p.Equal(d("3100.25")))

	profile := f.VolumeProfile("ETH")
	require.Len(t, profile, 3)
	assert.True(t, profile[2].Equal(d("20")))

	// price-only update keeps the profile
	require.NoError(t, f.Publish(ctx, "ETH", d("3101"), nil))
	assert.Len(t, f.VolumeProfile("ETH"), 3)
}

func TestRedisFeedMissingOrBadData(t *testing.T) {
	f, mr := newRedisFeed(t)

	_, ok := f.LastPrice("BTC")
	assert.False(t, ok)
	assert.Empty(t, f.VolumeProfile("BTC"))

	require.NoError(t, mr.Set(LastPriceKey("BTC"), "not-a-number"))
	_, ok = f.LastPrice("BTC")
	assert.False(t, ok)

	_, err := mr.Push(VolumeKey("BTC"), "1", "x")
	require.NoError(t, err)
	assert.Nil(t, f.VolumeProfile("BTC"))
}
