package algo

import (
	"fmt"
	"testing"
	"time"

	"github.com/joripage/oms-core/pkg/oms/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func parent(typ model.OrderType, side model.OrderSide, qty string) model.Order {
	return model.Order{
		OrderID:       "O1",
		ClientOrderID: "C1",
		Symbol:        "ETH",
		Side:          side,
		Type:          typ,
		Quantity:      d(qty),
		TimeInForce:   model.OrderTimeInForceGTC,
		StrategyID:    "s1",
	}
}

func TestTWAPSixEthOverFiveMinutes(t *testing.T) {
	children := TWAP{Duration: 300 * time.Second}.Plan(parent(model.OrderTypeTWAP, model.OrderSideSell, "6.0"), PlanContext{})

	require.Len(t, children, 5)
	for i, c := range children {
		assert.Equal(t, model.OrderTypeMarket, c.Type)
		assert.Equal(t, model.OrderSideSell, c.Side)
		assert.True(t, c.Quantity.Equal(d("1.2")), "slice %d = %s", i, c.Quantity)
		assert.Equal(t, fmt.Sprintf("C1_twap_%d", i), c.ClientOrderID)
		assert.Equal(t, time.Duration(i)*time.Minute, c.ScheduledOffset)
		assert.Equal(t, "s1", c.StrategyID)
	}
}

func TestTWAPSlicesAndSum(t *testing.T) {
	tests := []struct {
		duration time.Duration
		qty      string
		slices   int
	}{
		{30 * time.Second, "1", 1},
		{59 * time.Second, "1", 1},
		{60 * time.Second, "1", 1},
		{119 * time.Second, "1", 1},
		{180 * time.Second, "10", 3},
		{700 * time.Second, "0.007", 11},
		{3600 * time.Second, "123.456789", 60},
	}

	for _, tt := range tests {
		t.Run(tt.duration.String(), func(t *testing.T) {
			children := TWAP{Duration: tt.duration}.Plan(parent(model.OrderTypeTWAP, model.OrderSideBuy, tt.qty), PlanContext{})
			assert.Len(t, children, tt.slices)
			assert.True(t, Sum(children).Equal(d(tt.qty)), "sum %s", Sum(children))
		})
	}
}

func TestIcebergTenBtcVisibleTwo(t *testing.T) {
	p := parent(model.OrderTypeIceberg, model.OrderSideBuy, "10.0")
	p.Symbol = "BTC"
	children := Iceberg{VisibleQty: d("2.0")}.Plan(p, PlanContext{})

	require.Len(t, children, 5)
	for i, c := range children {
		assert.True(t, c.Quantity.Equal(d("2")))
		assert.Equal(t, fmt.Sprintf("C1_iceberg_%d", i), c.ClientOrderID)
		assert.Equal(t, model.OrderTypeMarket, c.Type)
	}
}

func TestIcebergChildCount(t *testing.T) {
	tests := []struct {
		qty, visible string
		count        int
	}{
		{"10", "3", 4},
		{"1", "5", 1},
		{"7.5", "2.5", 3},
		{"0.01", "0.003", 4},
	}
	for _, tt := range tests {
		t.Run(tt.qty+"/"+tt.visible, func(t *testing.T) {
			children := Iceberg{VisibleQty: d(tt.visible)}.Plan(parent(model.OrderTypeIceberg, model.OrderSideBuy, tt.qty), PlanContext{})
			require.Len(t, children, tt.count)
			for _, c := range children[:len(children)-1] {
				assert.True(t, c.Quantity.Equal(d(tt.visible)))
			}
			assert.True(t, Sum(children).Equal(d(tt.qty)))
		})
	}
}

func TestIcebergInheritsPrice(t *testing.T) {
	p := parent(model.OrderTypeIceberg, model.OrderSideBuy, "4")
	p.Price = d("45000")
	children := Iceberg{VisibleQty: d("1")}.Plan(p, PlanContext{})

	require.Len(t, children, 4)
	for _, c := range children {
		assert.Equal(t, model.OrderTypeLimit, c.Type)
		assert.True(t, c.Price.Equal(d("45000")))
	}
}

func TestVWAPWeightsSumToOne(t *testing.T) {
	profile := []decimal.Decimal{d("100"), d("250"), d("33.3"), d("0"), d("616.7"), d("17")}
	weights := Weights(profile)

	total := decimal.Zero
	for _, w := range weights {
		total = total.Add(w)
	}
	assert.True(t, total.Sub(decimal.NewFromInt(1)).Abs().LessThan(d("1e-9")), "sum %s", total)
}

func TestVWAPSliceQuantities(t *testing.T) {
	p := parent(model.OrderTypeVWAP, model.OrderSideBuy, "4")
	children := VWAP{}.Plan(p, PlanContext{VolumeProfile: []decimal.Decimal{d("10"), d("10"), d("20")}})

	require.Len(t, children, 3)
	assert.True(t, children[0].Quantity.Equal(d("1")))
	assert.True(t, children[1].Quantity.Equal(d("1")))
	assert.True(t, children[2].Quantity.Equal(d("2")))
	for i, c := range children {
		assert.Equal(t, fmt.Sprintf("C1_vwap_%d", i), c.ClientOrderID)
		assert.Equal(t, model.OrderTypeMarket, c.Type)
	}
}

func TestVWAPSkipsTinySlices(t *testing.T) {
	p := parent(model.OrderTypeVWAP, model.OrderSideBuy, "1")
	// the middle bucket is worth 0.0001 units
	profile := []decimal.Decimal{d("4999.5"), d("1"), d("4999.5")}
	children := VWAP{}.Plan(p, PlanContext{VolumeProfile: profile})

	require.Len(t, children, 2)
	assert.Equal(t, "C1_vwap_0", children[0].ClientOrderID)
	assert.Equal(t, "C1_vwap_2", children[1].ClientOrderID)
	assert.Equal(t, 2*time.Minute, children[1].ScheduledOffset)
	assert.True(t, Sum(children).Equal(d("1")))
}

func TestVWAPSumWithinEpsilon(t *testing.T) {
	p := parent(model.OrderTypeVWAP, model.OrderSideSell, "7.77")
	profile := []decimal.Decimal{d("3"), d("7"), d("11"), d("13"), d("17"), d("19")}
	children := VWAP{}.Plan(p, PlanContext{VolumeProfile: profile})

	assert.Len(t, children, 6)
	assert.True(t, Sum(children).Sub(d("7.77")).Abs().LessThan(d("1e-9")))
}

func TestVWAPFallsBackToEqualSplit(t *testing.T) {
	for name, profile := range map[string][]decimal.Decimal{
		"empty":    nil,
		"all zero": {decimal.Zero, decimal.Zero},
	} {
		t.Run(name, func(t *testing.T) {
			p := parent(model.OrderTypeVWAP, model.OrderSideBuy, "1")
			children := VWAP{}.Plan(p, PlanContext{VolumeProfile: profile})

			require.Len(t, children, DefaultSplitSlices)
			assert.Equal(t, "C1_split_0", children[0].ClientOrderID)
			assert.True(t, children[0].Quantity.Equal(d("0.1")))
			assert.True(t, Sum(children).Equal(d("1")))
		})
	}
}

func TestImmediateIsParent(t *testing.T) {
	p := parent(model.OrderTypeLimit, model.OrderSideBuy, "2")
	p.Price = d("100")
	children := Immediate{}.Plan(p, PlanContext{})

	require.Len(t, children, 1)
	assert.Equal(t, "C1", children[0].ClientOrderID)
	assert.Equal(t, model.OrderTypeLimit, children[0].Type)
	assert.True(t, children[0].Price.Equal(d("100")))
}

func TestSelect(t *testing.T) {
	req := &model.OrderRequest{Type: model.OrderTypeTWAP, Quantity: d("5")}
	assert.Equal(t, TWAP{Duration: DefaultTWAPDuration}, Select(req, Config{}))

	req.TWAPDuration = 120 * time.Second
	assert.Equal(t, TWAP{Duration: 120 * time.Second}, Select(req, Config{}))

	req = &model.OrderRequest{Type: model.OrderTypeIceberg, Quantity: d("5")}
	ib, ok := Select(req, Config{}).(Iceberg)
	require.True(t, ok)
	assert.True(t, ib.VisibleQty.Equal(d("0.5")))

	req.IcebergQty = d("2")
	ib = Select(req, Config{}).(Iceberg)
	assert.True(t, ib.VisibleQty.Equal(d("2")))

	assert.IsType(t, VWAP{}, Select(&model.OrderRequest{Type: model.OrderTypeVWAP}, Config{}))
	for _, typ := range []model.OrderType{model.OrderTypeMarket, model.OrderTypeLimit, model.OrderTypeStop, model.OrderTypeStopLimit} {
		assert.IsType(t, Immediate{}, Select(&model.OrderRequest{Type: typ}, Config{}))
	}

	assert.True(t, Scheduled(TWAP{}))
	assert.True(t, Scheduled(VWAP{}))
	assert.False(t, Scheduled(Iceberg{}))
	assert.False(t, Scheduled(Immediate{}))
}

func TestCheckSlices(t *testing.T) {
	tests := []struct {
		name    string
		planner Planner
		qty     string
		wantErr bool
	}{
		{"iceberg within bound", Iceberg{VisibleQty: d("0.001")}, "10", false},
		{"iceberg exactly at bound", Iceberg{VisibleQty: d("1")}, "10000", false},
		{"iceberg one over", Iceberg{VisibleQty: d("1")}, "10000.5", true},
		{"tiny visible size", Iceberg{VisibleQty: d("0.000001")}, "1000000", true},
		{"visible above quantity", Iceberg{VisibleQty: d("5")}, "1", false},
		{"twap one week", TWAP{Duration: 7 * 24 * time.Hour}, "1", true},
		{"twap default", TWAP{Duration: DefaultTWAPDuration}, "1", false},
		{"vwap unchecked", VWAP{}, "1000000", false},
		{"immediate", Immediate{}, "1000000", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSlices(tt.planner, d(tt.qty))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrTooManySlices)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
