package venue

import (
	"context"
	"sync"
	"testing"

	"github.com/joripage/oms-core/pkg/marketdata"
	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPlaceOrderPricing(t *testing.T) {
	feed := marketdata.NewStatic()
	feed.SetLastPrice("ETH", d("3000"))
	v := NewSimulated(Config{}, feed, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		req   model.OrderRequest
		price string
	}{
		{"limit fills at its price", model.OrderRequest{Symbol: "ETH", Side: model.OrderSideBuy, Quantity: d("2"), Price: d("2990")}, "2990"},
		{"market uses last price", model.OrderRequest{Symbol: "ETH", Side: model.OrderSideBuy, Quantity: d("2")}, "3000"},
		{"market without data uses fallback", model.OrderRequest{Symbol: "BTC", Side: model.OrderSideSell, Quantity: d("2")}, DefaultFallbackPrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, err := v.PlaceOrder(ctx, tt.req)
			require.NoError(t, err)
			assert.NotEmpty(t, exec.VenueOrderID)
			assert.True(t, exec.Quantity.Equal(d("2")))
			assert.True(t, exec.Price.Equal(d(tt.price)))
			assert.True(t, exec.Commission.Equal(d("2").Mul(d(tt.price)).Mul(d("0.001"))))
		})
	}

	_, err := v.PlaceOrder(ctx, model.OrderRequest{Symbol: "ETH", Quantity: decimal.Zero})
	assert.Error(t, err)
}

func TestRestingLimitOrders(t *testing.T) {
	feed := marketdata.NewStatic()
	feed.SetLastPrice("ETH", d("3000"))
	v := NewSimulated(Config{RestLimitOrders: true}, feed, nil)
	ctx := context.Background()

	var mu sync.Mutex
	reported := map[string]model.Execution{}
	v.SetReporter(func(_ context.Context, clientOrderID string, exec model.Execution) error {
		mu.Lock()
		defer mu.Unlock()
		reported[clientOrderID] = exec
		return nil
	})

	buy, err := v.PlaceOrder(ctx, model.OrderRequest{ClientOrderID: "B1", Symbol: "ETH", Side: model.OrderSideBuy, Quantity: d("1"), Price: d("2900")})
	require.NoError(t, err)
	assert.True(t, buy.Quantity.IsZero())

	sell, err := v.PlaceOrder(ctx, model.OrderRequest{ClientOrderID: "S1", Symbol: "ETH", Side: model.OrderSideSell, Quantity: d("1"), Price: d("3100")})
	require.NoError(t, err)
	assert.True(t, sell.Quantity.IsZero())

	assert.Equal(t, 0, v.Sweep(ctx, "ETH", d("3000")))
	assert.Equal(t, 1, v.Sweep(ctx, "ETH", d("2899")))
	require.Contains(t, reported, "B1")
	assert.True(t, reported["B1"].Price.Equal(d("2900")))
	assert.Equal(t, buy.VenueOrderID, reported["B1"].VenueOrderID)

	assert.ErrorIs(t, v.CancelOrder(ctx, buy.VenueOrderID), ErrOrderClosed)
	require.NoError(t, v.CancelOrder(ctx, sell.VenueOrderID))
	assert.Equal(t, 0, v.Sweep(ctx, "ETH", d("4000")))
	assert.ErrorIs(t, v.CancelOrder(ctx, "nope"), ErrUnknownOrder)
}
