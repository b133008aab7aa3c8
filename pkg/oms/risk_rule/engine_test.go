package riskrule

import (
	"sync"
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

func buy(symbol, qty string) *model.OrderRequest {
	return &model.OrderRequest{Symbol: symbol, Side: model.OrderSideBuy, Type: model.OrderTypeMarket, Quantity: d(qty), StrategyID: "s1"}
}

func sell(symbol, qty string) *model.OrderRequest {
	return &model.OrderRequest{Symbol: symbol, Side: model.OrderSideSell, Type: model.OrderTypeMarket, Quantity: d(qty), StrategyID: "s1"}
}

// single-symbol books are always fully concentrated
var noConcentration = d("1")

func TestPositionLimitScenario(t *testing.T) {
	e := NewEngine(Config{PositionLimits: map[string]decimal.Decimal{"BTC": d("10")}, ConcentrationCeiling: noConcentration})
	e.ApplyFill("BTC", model.OrderSideBuy, d("9.5"))

	res := e.PreTradeCheck(buy("BTC", "1.0"))
	assert.False(t, res.Passed)
	assert.Equal(t, RulePositionLimit, res.Rule)
	assert.Contains(t, res.Reason, "10.5 > 10")

	// selling away from the limit is fine
	assert.True(t, e.PreTradeCheck(sell("BTC", "1.0")).Passed)
}

func TestPositionLimitAbsentIsUnconstrained(t *testing.T) {
	e := NewEngine(Config{ConcentrationCeiling: noConcentration})
	e.ApplyFill("ETH", model.OrderSideBuy, d("1000000"))
	assert.True(t, e.PreTradeCheck(buy("ETH", "1000000")).Passed)
}

func TestDailyLossLimit(t *testing.T) {
	e := NewEngine(Config{DailyLossLimits: map[string]decimal.Decimal{"s1": d("1000")}})
	assert.True(t, e.PreTradeCheck(buy("BTC", "1")).Passed)

	e.UpdatePnL("s1", d("-1000"))
	assert.True(t, e.PreTradeCheck(buy("BTC", "1")).Passed, "at the limit is still allowed")

	e.UpdatePnL("s1", d("-0.01"))
	res := e.PreTradeCheck(buy("BTC", "1"))
	assert.False(t, res.Passed)
	assert.Equal(t, RuleDailyLoss, res.Rule)
	assert.Contains(t, res.Reason, "-1000.01 < -1000")

	e.ResetDaily()
	assert.True(t, e.PreTradeCheck(buy("BTC", "1")).Passed)
}

func TestConcentrationLimit(t *testing.T) {
	e := NewEngine(Config{})
	e.ApplyFill("BTC", model.OrderSideBuy, d("3"))
	e.ApplyFill("ETH", model.OrderSideSell, d("1"))

	res := e.PreTradeCheck(buy("BTC", "1"))
	assert.False(t, res.Passed)
	assert.Equal(t, RuleConcentration, res.Rule)
	assert.Contains(t, res.Reason, "75.00% > 50%")

	assert.True(t, e.PreTradeCheck(buy("ETH", "1")).Passed)
}

func TestVelocityLimit(t *testing.T) {
	day := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	now := day
	e := NewEngine(Config{MaxOrdersPerDay: 3}, WithClock(func() time.Time { return now }))

	for i := 0; i < 3; i++ {
		res, r := e.Reserve(buy("BTC", "0.1"))
		require.True(t, res.Passed)
		e.Release(r)
	}
	res, r := e.Reserve(buy("BTC", "0.1"))
	assert.False(t, res.Passed)
	assert.Nil(t, r)
	assert.Equal(t, RuleVelocity, res.Rule)
	assert.Contains(t, res.Reason, "3 >= 3")

	// other symbols have their own counter
	assert.True(t, e.PreTradeCheck(buy("ETH", "0.1")).Passed)

	// next day starts fresh
	now = day.Add(24 * time.Hour)
	assert.True(t, e.PreTradeCheck(buy("BTC", "0.1")).Passed)
}

func TestMarketCondition(t *testing.T) {
	e := NewEngine(Config{
		HaltedSymbols: []string{"LUNA"},
		PriceBands:    map[string]PriceBand{"BTC": {Floor: d("40000"), Ceil: d("50000")}},
	})

	res := e.PreTradeCheck(buy("LUNA", "1"))
	assert.False(t, res.Passed)
	assert.Equal(t, RuleMarket, res.Rule)

	limit := buy("BTC", "1")
	limit.Type = model.OrderTypeLimit
	limit.Price = d("60000")
	assert.False(t, e.PreTradeCheck(limit).Passed)

	limit.Price = d("45000")
	assert.True(t, e.PreTradeCheck(limit).Passed)

	// market orders carry no price and are not banded
	assert.True(t, e.PreTradeCheck(buy("BTC", "1")).Passed)
}

func TestChainOrderFirstFailureWins(t *testing.T) {
	e := NewEngine(Config{
		PositionLimits:  map[string]decimal.Decimal{"BTC": d("1")},
		DailyLossLimits: map[string]decimal.Decimal{"s1": d("10")},
		HaltedSymbols:   []string{"BTC"},
	})
	e.UpdatePnL("s1", d("-100"))

	res := e.PreTradeCheck(buy("BTC", "5"))
	assert.Equal(t, RulePositionLimit, res.Rule)

	res = e.PreTradeCheck(buy("BTC", "0.5"))
	assert.Equal(t, RuleDailyLoss, res.Rule)
}

func TestPreTradeCheckIsIdempotent(t *testing.T) {
	e := NewEngine(Config{PositionLimits: map[string]decimal.Decimal{"BTC": d("10")}, MaxOrdersPerDay: 1})
	req := buy("BTC", "2")

	first := e.PreTradeCheck(req)
	second := e.PreTradeCheck(req)
	assert.Equal(t, first.Passed, second.Passed)
	assert.Equal(t, first.Reason, second.Reason)
	assert.Equal(t, first.Rule, second.Rule)

	snap := e.Snapshot()
	assert.Empty(t, snap.OrderCount)
	assert.Empty(t, snap.PendingBuy)
}

func TestReservationLifecycle(t *testing.T) {
	e := NewEngine(Config{PositionLimits: map[string]decimal.Decimal{"BTC": d("10")}})

	res, r := e.Reserve(buy("BTC", "6"))
	require.True(t, res.Passed)

	// reserved quantity blocks a second order that would jointly breach
	res2, _ := e.Reserve(buy("BTC", "5"))
	assert.False(t, res2.Passed)

	e.Fill(r, d("2"))
	snap := e.Snapshot()
	assert.True(t, snap.Positions["BTC"].Equal(d("2")))
	assert.True(t, snap.PendingBuy["BTC"].Equal(d("4")))

	assert.False(t, e.Amend(r, d("9")).Passed, "2 filled + 9 open > 10")
	assert.True(t, e.Amend(r, d("8")).Passed)

	e.Release(r)
	snap = e.Snapshot()
	assert.True(t, snap.PendingBuy["BTC"].IsZero())

	// late fill after release still moves the position
	e.Fill(r, d("1"))
	snap = e.Snapshot()
	assert.True(t, snap.Positions["BTC"].Equal(d("3")))
	assert.True(t, snap.PendingBuy["BTC"].IsZero())
}

func TestConcurrentReserveNoDoubleBreach(t *testing.T) {
	for run := 0; run < 50; run++ {
		e := NewEngine(Config{PositionLimits: map[string]decimal.Decimal{"BTC": d("10")}, ConcentrationCeiling: noConcentration})
		e.ApplyFill("BTC", model.OrderSideBuy, d("4"))

		var wg sync.WaitGroup
		results := make([]bool, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, _ := e.Reserve(buy("BTC", "4"))
				results[i] = res.Passed
			}(i)
		}
		wg.Wait()

		passed := 0
		for _, ok := range results {
			if ok {
				passed++
			}
		}
		require.Equal(t, 1, passed, "run %d", run)
	}
}
